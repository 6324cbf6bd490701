package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// AddressToBytes32 left pads a 20 byte address with 12 zero bytes, the CCTP mintRecipient layout.
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[:], common.LeftPadBytes(addr.Bytes(), 32))
	return out
}

// HexToBytes32 validates a hex address string and pads it to 32 bytes.
func HexToBytes32(addr string) ([32]byte, error) {
	if !common.IsHexAddress(addr) {
		return [32]byte{}, fmt.Errorf("%q is not a 20 byte hex address", addr)
	}
	return AddressToBytes32(common.HexToAddress(addr)), nil
}

func newCall(to common.Address, data []byte) *types.CallRequest {
	return &types.CallRequest{
		To:    to,
		Data:  data,
		Value: (*hexutil.Big)(new(big.Int)),
	}
}

// EncodeApprove builds token.approve(spender, amount).
func EncodeApprove(token, spender common.Address, amount *big.Int) (*types.CallRequest, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("unable to pack approve: %w", err)
	}
	return newCall(token, data), nil
}

// EncodeDepositForBurn builds tokenMessenger.depositForBurn(amount, destinationDomain, mintRecipient, burnToken).
func EncodeDepositForBurn(
	tokenMessenger common.Address,
	amount *big.Int,
	destinationDomain types.Domain,
	mintRecipient [32]byte,
	burnToken common.Address,
) (*types.CallRequest, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if mintRecipient == ([32]byte{}) {
		return nil, fmt.Errorf("mint recipient cannot be zero")
	}
	data, err := tokenMessengerABI.Pack("depositForBurn", amount, uint32(destinationDomain), mintRecipient, burnToken)
	if err != nil {
		return nil, fmt.Errorf("unable to pack depositForBurn: %w", err)
	}
	return newCall(tokenMessenger, data), nil
}

// EncodeReceiveMessage builds messageTransmitter.receiveMessage(message, attestation).
func EncodeReceiveMessage(messageTransmitter common.Address, message, attestation []byte) (*types.CallRequest, error) {
	if len(message) == 0 || len(attestation) == 0 {
		return nil, fmt.Errorf("message and attestation are required")
	}
	data, err := messageTransmitterABI.Pack("receiveMessage", message, attestation)
	if err != nil {
		return nil, fmt.Errorf("unable to pack receiveMessage: %w", err)
	}
	return newCall(messageTransmitter, data), nil
}

// DepositForBurnArgs are the decoded arguments of a depositForBurn call.
type DepositForBurnArgs struct {
	Amount            *big.Int
	DestinationDomain types.Domain
	MintRecipient     [32]byte
	BurnToken         common.Address
}

// DecodeDepositForBurn reverses EncodeDepositForBurn.
func DecodeDepositForBurn(data []byte) (*DepositForBurnArgs, error) {
	method, err := tokenMessengerABI.MethodById(data)
	if err != nil {
		return nil, err
	}
	if method.Name != "depositForBurn" {
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unable to unpack depositForBurn: %w", err)
	}
	return &DepositForBurnArgs{
		Amount:            args[0].(*big.Int),
		DestinationDomain: types.Domain(args[1].(uint32)),
		MintRecipient:     args[2].([32]byte),
		BurnToken:         args[3].(common.Address),
	}, nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("amount must be a positive integer in smallest units")
	}
	if amount.BitLen() > types.MaxAmountBits {
		return fmt.Errorf("amount %s exceeds the uint256 range", amount)
	}
	return nil
}

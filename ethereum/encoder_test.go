package ethereum_test

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/cctp-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

var (
	usdc           = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	tokenMessenger = common.HexToAddress("0x9f3b8679c73c2fef8b59b4f3444d4e156fb70aa5")
	transmitter    = common.HexToAddress("0x7865fafc2db2093669d92c0f33aeef291086befd")
)

func TestAddressToBytes32(t *testing.T) {
	got := ethereum.AddressToBytes32(common.HexToAddress("0x1234567890123456789012345678901234567890"))
	require.Equal(t, "0000000000000000000000001234567890123456789012345678901234567890", hex.EncodeToString(got[:]))

	padded, err := ethereum.HexToBytes32("0x1234567890123456789012345678901234567890")
	require.NoError(t, err)
	require.Equal(t, got, padded)

	_, err = ethereum.HexToBytes32("0x1234")
	require.Error(t, err)
}

func TestEncodeDepositForBurnRoundTrip(t *testing.T) {
	recipient := ethereum.AddressToBytes32(common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"))

	tests := []struct {
		name   string
		amount *big.Int
		domain types.Domain
	}{
		{"one usdc to arbitrum", big.NewInt(1000000), 3},
		{"fraction to linea", big.NewInt(100000), 11},
		{"large to sepolia", new(big.Int).Mul(big.NewInt(1000000000), big.NewInt(1000000)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := ethereum.EncodeDepositForBurn(tokenMessenger, tt.amount, tt.domain, recipient, usdc)
			require.NoError(t, err)
			require.Equal(t, tokenMessenger, call.To)
			require.Equal(t, 0, call.Value.ToInt().Sign())
			require.Equal(t, "6fd3504e", hex.EncodeToString(call.Data[:4]))

			args, err := ethereum.DecodeDepositForBurn(call.Data)
			require.NoError(t, err)
			require.Equal(t, 0, tt.amount.Cmp(args.Amount))
			require.Equal(t, tt.domain, args.DestinationDomain)
			require.Equal(t, recipient, args.MintRecipient)
			require.Equal(t, usdc, args.BurnToken)
		})
	}
}

func TestEncodeDepositForBurnRejects(t *testing.T) {
	recipient := ethereum.AddressToBytes32(common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"))

	_, err := ethereum.EncodeDepositForBurn(tokenMessenger, big.NewInt(0), 3, recipient, usdc)
	require.Error(t, err)
	_, err = ethereum.EncodeDepositForBurn(tokenMessenger, nil, 3, recipient, usdc)
	require.Error(t, err)
	_, err = ethereum.EncodeDepositForBurn(tokenMessenger, big.NewInt(1), 3, [32]byte{}, usdc)
	require.Error(t, err)

	// the ABI packer would reduce this mod 2^256
	tooLarge := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err = ethereum.EncodeDepositForBurn(tokenMessenger, tooLarge, 3, recipient, usdc)
	require.ErrorContains(t, err, "uint256")
	_, err = ethereum.EncodeApprove(usdc, tokenMessenger, tooLarge)
	require.ErrorContains(t, err, "uint256")
}

func TestEncodeApprove(t *testing.T) {
	call, err := ethereum.EncodeApprove(usdc, tokenMessenger, big.NewInt(2500000))
	require.NoError(t, err)
	require.Equal(t, usdc, call.To)
	require.Len(t, call.Data, 4+32+32)
	require.Equal(t, "095ea7b3", hex.EncodeToString(call.Data[:4]))
	require.Equal(t, common.LeftPadBytes(tokenMessenger.Bytes(), 32), []byte(call.Data[4:36]))
	require.Equal(t, int64(2500000), new(big.Int).SetBytes(call.Data[36:]).Int64())
}

func TestEncodeReceiveMessage(t *testing.T) {
	call, err := ethereum.EncodeReceiveMessage(transmitter, []byte{1, 2, 3}, []byte{4, 5})
	require.NoError(t, err)
	require.Equal(t, transmitter, call.To)
	require.Equal(t, "57ecfd28", hex.EncodeToString(call.Data[:4]))

	_, err = ethereum.EncodeReceiveMessage(transmitter, nil, []byte{4})
	require.Error(t, err)
}

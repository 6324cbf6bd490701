package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cosmossdk.io/log"
	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// Backend is the subset of ethclient.Client the reader needs.
type Backend interface {
	CallContract(ctx context.Context, call geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Reader performs read-only queries against one chain.
type Reader struct {
	chain   types.ChainDescriptor
	backend Backend
	closer  func()
	logger  log.Logger
}

// Dial connects a Reader to the chain's RPC endpoint.
func Dial(ctx context.Context, chain types.ChainDescriptor, logger log.Logger) (*Reader, error) {
	client, err := ethclient.DialContext(ctx, chain.RPC)
	if err != nil {
		return nil, fmt.Errorf("unable to dial %s rpc: %w", chain.Name, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to query %s chain id: %w", chain.Name, err)
	}
	if chain.ChainID != 0 && chainID.Uint64() != chain.ChainID {
		client.Close()
		return nil, fmt.Errorf("rpc for %s reports chain id %d, configured %d", chain.Name, chainID.Uint64(), chain.ChainID)
	}

	r := NewReader(chain, client, logger)
	r.closer = client.Close
	return r, nil
}

func NewReader(chain types.ChainDescriptor, backend Backend, logger log.Logger) *Reader {
	return &Reader{
		chain:   chain,
		backend: backend,
		logger:  logger.With("chain", chain.Name, "domain", chain.Domain),
	}
}

func (r *Reader) Chain() types.ChainDescriptor {
	return r.chain
}

// AllowanceOf returns the USDC allowance owner granted spender.
func (r *Reader) AllowanceOf(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, r.chain.USDC, data)
	if err != nil {
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}
	res, err := erc20ABI.Unpack("allowance", out)
	if err != nil {
		return nil, fmt.Errorf("unable to unpack allowance: %w", err)
	}
	allowance, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", res[0])
	}
	return allowance, nil
}

// ReceiptFor returns the receipt of txHash, or nil without error while the tx is not yet mined.
func (r *Reader) ReceiptFor(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := r.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, geth.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("receipt query failed: %w", err)
	}
	if receipt.BlockNumber == nil || receipt.BlockNumber.Sign() == 0 {
		return nil, nil
	}
	return receipt, nil
}

// MessageReceived reports whether the MessageTransmitter already consumed the (sourceDomain, nonce) pair.
func (r *Reader) MessageReceived(ctx context.Context, sourceDomain types.Domain, nonce uint64) (bool, error) {
	data, err := messageTransmitterABI.Pack("usedNonces", UsedNonceKey(sourceDomain, nonce))
	if err != nil {
		return false, err
	}
	out, err := r.call(ctx, r.chain.MessageTransmitter, data)
	if err != nil {
		return false, fmt.Errorf("usedNonces call failed: %w", err)
	}
	res, err := messageTransmitterABI.Unpack("usedNonces", out)
	if err != nil {
		return false, fmt.Errorf("unable to unpack usedNonces: %w", err)
	}
	used, ok := res[0].(*big.Int)
	if !ok {
		return false, fmt.Errorf("unexpected usedNonces type %T", res[0])
	}
	return used.Sign() != 0, nil
}

func (r *Reader) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return r.backend.CallContract(ctx, geth.CallMsg{To: &to, Data: data}, nil)
}

func (r *Reader) Close() {
	if r.closer != nil {
		r.closer()
	}
}

package testutil

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/strangelove-ventures/cctp-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// FakeChain is an in-memory chain view: allowances per owner, receipts per hash and consumed nonces.
type FakeChain struct {
	mu         sync.Mutex
	allowances map[common.Address]*big.Int
	receipts   map[common.Hash]*ethtypes.Receipt
	received   map[[32]byte]bool

	AllowanceErr error
	ReceiptErr   error

	AllowanceCalls atomic.Int32
	ReceiptCalls   atomic.Int32
}

func NewFakeChain() *FakeChain {
	return &FakeChain{
		allowances: make(map[common.Address]*big.Int),
		receipts:   make(map[common.Hash]*ethtypes.Receipt),
		received:   make(map[[32]byte]bool),
	}
}

func (f *FakeChain) SetAllowance(owner common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowances[owner] = new(big.Int).Set(amount)
}

func (f *FakeChain) SetReceipt(receipt *ethtypes.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[receipt.TxHash] = receipt
}

func (f *FakeChain) MarkReceived(sourceDomain types.Domain, nonce uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received[ethereum.UsedNonceKey(sourceDomain, nonce)] = true
}

func (f *FakeChain) AllowanceOf(_ context.Context, owner, _ common.Address) (*big.Int, error) {
	f.AllowanceCalls.Add(1)
	if f.AllowanceErr != nil {
		return nil, f.AllowanceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.allowances[owner]; ok {
		return new(big.Int).Set(a), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeChain) ReceiptFor(_ context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	f.ReceiptCalls.Add(1)
	if f.ReceiptErr != nil {
		return nil, f.ReceiptErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipts[txHash], nil
}

func (f *FakeChain) MessageReceived(_ context.Context, sourceDomain types.Domain, nonce uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received[ethereum.UsedNonceKey(sourceDomain, nonce)], nil
}

// Receipt returns a successful receipt for txHash with no logs.
func Receipt(txHash string) *ethtypes.Receipt {
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, TxHash: common.HexToHash(txHash)}
}

// RevertedReceipt returns a failed receipt for txHash.
func RevertedReceipt(txHash string) *ethtypes.Receipt {
	return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, TxHash: common.HexToHash(txHash)}
}

// BurnReceipt returns a successful receipt carrying one MessageSent event emitted by transmitter.
func BurnReceipt(txHash string, transmitter common.Address, message []byte) *ethtypes.Receipt {
	data, err := ethereum.PackMessageSentData(message)
	if err != nil {
		panic(err)
	}
	r := Receipt(txHash)
	r.Logs = []*ethtypes.Log{{
		Address: transmitter,
		Topics:  []common.Hash{ethereum.MessageSentTopic()},
		Data:    data,
		TxHash:  r.TxHash,
	}}
	return r
}

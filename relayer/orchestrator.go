package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/strangelove-ventures/cctp-orchestrator/circle"
	"github.com/strangelove-ventures/cctp-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// ChainReader is the read-only view of one chain used by the orchestrator.
type ChainReader interface {
	AllowanceOf(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	// ReceiptFor returns nil, nil while the transaction is not yet mined.
	ReceiptFor(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	MessageReceived(ctx context.Context, sourceDomain types.Domain, nonce uint64) (bool, error)
}

type AttestationPoller interface {
	AwaitAttestation(ctx context.Context, q circle.Query, maxAttempts int, interval time.Duration) (*types.AttestationRecord, error)
}

// Readers maps chain names to their reader.
type Readers map[string]ChainReader

type OrchestratorConfig struct {
	AttestationMaxAttempts int
	AttestationInterval    time.Duration
	ReceiptPollInterval    time.Duration
	ReceiptMaxPolls        int
}

// Orchestrator drives transfers through approve, burn, attestation and mint.
// Calls for one correlation id must carry the stage the caller last observed.
type Orchestrator struct {
	cfg      OrchestratorConfig
	registry *types.ChainRegistry
	readers  Readers
	poller   AttestationPoller
	store    Store
	filters  *types.FilterRegistry
	metrics  *PromMetrics
	logger   log.Logger
	now      func() time.Time

	locks sync.Map // id -> *sync.Mutex

	mu         sync.Mutex
	inflight   map[string]context.CancelFunc
	abandoning map[string]int // pending Abandon calls per id
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	registry *types.ChainRegistry,
	readers Readers,
	poller AttestationPoller,
	store Store,
	logger log.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		readers:  readers,
		poller:   poller,
		store:    store,
		logger:   logger.With("component", "orchestrator"),
		now:      time.Now,
		inflight:   make(map[string]context.CancelFunc),
		abandoning: make(map[string]int),
	}
}

func (o *Orchestrator) WithFilters(filters *types.FilterRegistry) *Orchestrator {
	o.filters = filters
	return o
}

func (o *Orchestrator) WithMetrics(metrics *PromMetrics) *Orchestrator {
	o.metrics = metrics
	return o
}

// Start validates req, records a new transfer at the approve stage and prepares its first call.
func (o *Orchestrator) Start(ctx context.Context, id string, req types.TransferRequest) (*types.TransferState, error) {
	if strings.TrimSpace(id) == "" {
		return nil, types.NewTransferError(types.CodeValidation, "correlation id is required")
	}
	release, err := o.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	src, dst, amount, err := req.ValidateAgainst(o.registry)
	if err != nil {
		return nil, err
	}

	now := o.now()
	st := &types.TransferState{
		ID:           id,
		Stage:        types.StageApprove,
		Request:      req,
		SourceDomain: src.Domain,
		DestDomain:   dst.Domain,
		Amount:       amount,
		Created:      now,
		Updated:      now,
	}

	if o.filters != nil {
		if err := o.filters.Admit(ctx, st); err != nil {
			return nil, err
		}
	}

	if err := o.store.Create(ctx, st); err != nil {
		return nil, err
	}
	o.metrics.IncInFlight(src.Name, dst.Name)
	o.metrics.IncTransition(src.Name, dst.Name, string(types.StageApprove))
	o.logger.Info("Transfer started", "id", id, "src", src.Name, "dest", dst.Name, "amount", amount.String())

	return o.prepare(ctx, st)
}

// Advance re-evaluates a stage that has no submitted transaction, e.g. after allowance was granted elsewhere.
func (o *Orchestrator) Advance(ctx context.Context, id string, expected types.Stage) (*types.TransferState, error) {
	release, err := o.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := o.load(ctx, id, expected)
	if err != nil {
		return nil, err
	}
	if st.Stage.Terminal() {
		return nil, types.NewTransferError(types.CodeInvalidTransition, "transfer %s is %s", id, st.Stage)
	}
	if st.AwaitingWait() {
		return st, nil
	}
	if st.PendingCall != nil {
		if st, err = o.apply(ctx, st, CallWithdrawn()); err != nil {
			return nil, err
		}
	}
	return o.prepare(ctx, st)
}

// Submit records the hash of the signed transaction for the pending call of the current stage.
func (o *Orchestrator) Submit(ctx context.Context, id string, expected types.Stage, txHash string) (*types.TransferState, error) {
	hash, err := hexutil.Decode(txHash)
	if err != nil || len(hash) != common.HashLength {
		return nil, types.NewTransferError(types.CodeValidation, "tx hash %q is not a 32 byte hex string", txHash)
	}
	txHash = common.BytesToHash(hash).Hex()

	release, err := o.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := o.load(ctx, id, expected)
	if err != nil {
		return nil, err
	}
	switch existing := st.TxHashFor(st.Stage); {
	case existing == txHash:
		return st, nil
	case existing != "":
		return nil, types.NewTransferError(types.CodeStaleState, "stage %s already has transaction %s", st.Stage, existing)
	case st.PendingCall == nil:
		return nil, types.NewTransferError(types.CodeStaleState, "no call is awaiting a signature at stage %s", st.Stage)
	}

	o.logger.Info("Transaction submitted", "id", id, "stage", st.Stage, "tx", txHash)
	return o.apply(ctx, st, TxSubmitted(txHash))
}

// Reject records that the wallet could not produce a transaction for the pending call.
func (o *Orchestrator) Reject(ctx context.Context, id string, expected types.Stage, reason string) (*types.TransferState, error) {
	release, err := o.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := o.load(ctx, id, expected)
	if err != nil {
		return nil, err
	}
	if st.PendingCall == nil {
		return nil, types.NewTransferError(types.CodeStaleState, "no call is awaiting a signature at stage %s", st.Stage)
	}

	if st.Stage == types.StageMint && alreadyProcessed(reason) {
		received, err := o.messageReceived(ctx, st)
		if err != nil {
			return nil, err
		}
		if received {
			o.logger.Info("Mint already processed on destination", "id", id, "nonce", st.Nonce)
			return o.apply(ctx, st, MessageAlreadyReceived())
		}
	}
	return o.apply(ctx, st, Failed(types.NewTransferError(types.CodeSubmissionRejected, "%s", reason)))
}

// Resume re-enters a failed transfer at the stage it failed in.
func (o *Orchestrator) Resume(ctx context.Context, id string, expected types.Stage) (*types.TransferState, error) {
	release, err := o.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := o.load(ctx, id, expected)
	if err != nil {
		return nil, err
	}
	if st.Stage != types.StageFailed {
		return nil, types.NewTransferError(types.CodeInvalidTransition, "transfer %s is %s, not failed", id, st.Stage)
	}
	if st, err = o.apply(ctx, st, Resumed()); err != nil {
		return nil, err
	}
	o.metrics.IncInFlight(st.Request.SourceChain, st.Request.DestinationChain)
	o.logger.Info("Transfer resumed", "id", id, "stage", st.Stage)
	return o.prepare(ctx, st)
}

// Abandon stops any polling for the transfer and marks it failed. Chain effects already submitted stand.
func (o *Orchestrator) Abandon(ctx context.Context, id string) (*types.TransferState, error) {
	o.mu.Lock()
	o.abandoning[id]++
	if cancel, ok := o.inflight[id]; ok {
		cancel()
	}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		if o.abandoning[id]--; o.abandoning[id] <= 0 {
			delete(o.abandoning, id)
		}
		o.mu.Unlock()
	}()

	mu := o.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Stage.Terminal() {
		return st, nil
	}
	o.logger.Info("Transfer abandoned", "id", id, "stage", st.Stage)
	return o.apply(ctx, st, Failed(types.NewTransferError(types.CodeAbandoned, "abandoned at stage %s", st.Stage)))
}

// Step performs the blocking wait of the current stage, a receipt or an attestation, and applies the result.
// Transfers without a pending wait are returned unchanged.
func (o *Orchestrator) Step(ctx context.Context, id string) (*types.TransferState, error) {
	release, err := o.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	// registered before loading so an Abandon arriving during the load still cancels the wait
	stepCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.inflight[id] = cancel
	if o.abandoning[id] > 0 {
		cancel()
	}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.inflight, id)
		o.mu.Unlock()
		cancel()
	}()

	st, err := o.store.Load(stepCtx, id)
	if err != nil {
		return nil, err
	}
	if st.Stage.Terminal() || !st.AwaitingWait() {
		return st, nil
	}

	if st.Stage == types.StageAwaitingAttestation {
		return o.awaitAttestation(stepCtx, st)
	}
	return o.awaitTransaction(stepCtx, st)
}

func (o *Orchestrator) Get(ctx context.Context, id string) (*types.TransferState, error) {
	return o.store.Load(ctx, id)
}

func (o *Orchestrator) List(ctx context.Context) ([]*types.TransferState, error) {
	return o.store.List(ctx)
}

// Pending returns the ids of non-terminal transfers that are waiting on a receipt or attestation.
func (o *Orchestrator) Pending(ctx context.Context) ([]string, error) {
	all, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, st := range all {
		if !st.Stage.Terminal() && st.AwaitingWait() {
			ids = append(ids, st.ID)
		}
	}
	return ids, nil
}

// Sweep evicts terminal transfers last updated before now minus retention.
func (o *Orchestrator) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	ids, err := o.store.DeleteTerminal(ctx, o.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		o.locks.Delete(id)
	}
	o.metrics.AddEvicted(len(ids))
	return len(ids), nil
}

func (o *Orchestrator) awaitAttestation(ctx context.Context, st *types.TransferState) (*types.TransferState, error) {
	q := circle.Query{
		MessageHash:  st.MessageHash,
		Message:      st.MessageBytes,
		SourceDomain: st.SourceDomain,
		TxHash:       st.BurnTxHash,
	}
	record, err := o.poller.AwaitAttestation(ctx, q, o.cfg.AttestationMaxAttempts, o.cfg.AttestationInterval)
	if err != nil {
		if errors.Is(err, types.ErrAttestationTimeout) {
			o.logger.Error("Attestation timed out", "id", st.ID, "hash", st.MessageHash, "error", err)
			return o.apply(context.WithoutCancel(ctx), st, Failed(types.AsTransferError(err, types.CodeAttestationTimeout)))
		}
		return nil, err
	}

	st, err = o.apply(ctx, st, Attested(record))
	if err != nil {
		return nil, err
	}
	return o.prepare(ctx, st)
}

func (o *Orchestrator) awaitTransaction(ctx context.Context, st *types.TransferState) (*types.TransferState, error) {
	src, dst, err := o.chains(st)
	if err != nil {
		return nil, err
	}
	chain := src
	if st.Stage == types.StageMint {
		chain = dst
	}
	reader, err := o.reader(chain.Name)
	if err != nil {
		return nil, err
	}

	txHash := st.TxHashFor(st.Stage)
	receipt, err := o.awaitReceipt(ctx, reader, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}
	// the receipt is authoritative from here on, even if the caller abandons meanwhile
	ctx = context.WithoutCancel(ctx)

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		o.logger.Error("Transaction reverted", "id", st.ID, "stage", st.Stage, "tx", txHash)
		if st.Stage == types.StageMint {
			received, err := o.messageReceived(ctx, st)
			if err != nil {
				return nil, err
			}
			if received {
				o.logger.Info("Mint already processed on destination", "id", st.ID, "nonce", st.Nonce)
				return o.apply(ctx, st, MessageAlreadyReceived())
			}
		}
		return o.apply(ctx, st, TxReverted())
	}

	switch st.Stage {
	case types.StageApprove:
		if st, err = o.apply(ctx, st, TxConfirmed()); err != nil {
			return nil, err
		}
		return o.prepare(ctx, st)
	case types.StageBurn:
		return o.confirmBurn(ctx, st, receipt, src)
	default:
		return o.apply(ctx, st, TxConfirmed())
	}
}

func (o *Orchestrator) confirmBurn(ctx context.Context, st *types.TransferState, receipt *ethtypes.Receipt, src types.ChainDescriptor) (*types.TransferState, error) {
	message, err := ethereum.ExtractBurnMessage(receipt, src.MessageTransmitter)
	if err != nil {
		o.logger.Error("Burn receipt has no usable MessageSent event", "id", st.ID, "tx", st.BurnTxHash, "logs", len(receipt.Logs), "error", err)
		return o.apply(ctx, st, Failed(types.AsTransferError(err, types.CodeMessageEventNotFound)))
	}

	parsed, err := ethereum.ParseBurnMessage(message)
	if err == nil {
		err = verifyBurn(st, parsed)
	}
	if err != nil {
		o.logger.Error("Burn message does not match transfer", "id", st.ID, "tx", st.BurnTxHash, "error", err)
		return o.apply(ctx, st, Failed(types.NewTransferError(types.CodeMessageEventNotFound, "burn message mismatch: %v", err)))
	}

	st, err = o.apply(ctx, st, BurnConfirmed(message, parsed.Nonce))
	if err != nil {
		return nil, err
	}
	o.logger.Info("Burn confirmed", "id", st.ID, "nonce", st.Nonce, "message_hash", st.MessageHash)
	return st, nil
}

func verifyBurn(st *types.TransferState, msg *ethereum.BurnMessage) error {
	recipient, err := ethereum.HexToBytes32(st.Request.Recipient)
	if err != nil {
		return err
	}
	switch {
	case msg.SourceDomain != st.SourceDomain:
		return fmt.Errorf("source domain %d, expected %d", msg.SourceDomain, st.SourceDomain)
	case msg.DestinationDomain != st.DestDomain:
		return fmt.Errorf("destination domain %d, expected %d", msg.DestinationDomain, st.DestDomain)
	case msg.MintRecipient != recipient:
		return fmt.Errorf("mint recipient %x, expected %x", msg.MintRecipient, recipient)
	case msg.Body.Amount.BigInt().Cmp(st.Amount) != 0:
		return fmt.Errorf("amount %s, expected %s", msg.Body.Amount, st.Amount)
	}
	return nil
}

// awaitReceipt polls until the transaction is mined, the context ends or the poll budget runs out.
func (o *Orchestrator) awaitReceipt(ctx context.Context, reader ChainReader, txHash common.Hash) (*ethtypes.Receipt, error) {
	var lastErr error
	for poll := 1; poll <= o.cfg.ReceiptMaxPolls; poll++ {
		receipt, err := reader.ReceiptFor(ctx, txHash)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			o.logger.Debug("Receipt query failed", "tx", txHash.Hex(), "error", err)
		case receipt != nil:
			return receipt, nil
		}

		if poll == o.cfg.ReceiptMaxPolls {
			break
		}
		timer := time.NewTimer(o.cfg.ReceiptPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no receipt for %s after %d polls: %w", txHash.Hex(), o.cfg.ReceiptMaxPolls, lastErr)
	}
	return nil, fmt.Errorf("no receipt for %s after %d polls", txHash.Hex(), o.cfg.ReceiptMaxPolls)
}

// prepare advances through stages that need no external input and attaches the next call to sign.
func (o *Orchestrator) prepare(ctx context.Context, st *types.TransferState) (*types.TransferState, error) {
	for !st.Stage.Terminal() && !st.AwaitingWait() && st.PendingCall == nil {
		next, err := o.prepareStage(ctx, st)
		if err != nil {
			return st, err
		}
		st = next
	}
	return st, nil
}

func (o *Orchestrator) prepareStage(ctx context.Context, st *types.TransferState) (*types.TransferState, error) {
	src, dst, err := o.chains(st)
	if err != nil {
		return nil, err
	}

	switch st.Stage {
	case types.StageApprove, types.StageBurn:
		reader, err := o.reader(src.Name)
		if err != nil {
			return nil, err
		}
		allowance, err := reader.AllowanceOf(ctx, common.HexToAddress(st.Request.Sender), src.TokenMessenger)
		if err != nil {
			return nil, fmt.Errorf("reading allowance on %s: %w", src.Name, err)
		}
		next, err := o.apply(ctx, st, AllowanceObserved(allowance))
		if err != nil || next.Stage != st.Stage {
			if err == nil && st.Stage == types.StageApprove {
				o.logger.Info("Existing allowance covers transfer, skipping approve", "id", st.ID, "allowance", allowance.String())
			}
			return next, err
		}

		var call *types.CallRequest
		if st.Stage == types.StageApprove {
			call, err = ethereum.EncodeApprove(src.USDC, src.TokenMessenger, st.Amount)
		} else {
			var recipient [32]byte
			if recipient, err = ethereum.HexToBytes32(st.Request.Recipient); err != nil {
				return nil, err
			}
			call, err = ethereum.EncodeDepositForBurn(src.TokenMessenger, st.Amount, dst.Domain, recipient, src.USDC)
		}
		if err != nil {
			return nil, err
		}
		return o.apply(ctx, next, CallPrepared(call))

	case types.StageMint:
		received, err := o.messageReceived(ctx, st)
		if err != nil {
			return nil, err
		}
		if received {
			o.logger.Info("Message already received on destination", "id", st.ID, "nonce", st.Nonce)
			return o.apply(ctx, st, MessageAlreadyReceived())
		}
		call, err := ethereum.EncodeReceiveMessage(dst.MessageTransmitter, st.MessageBytes, st.Attestation)
		if err != nil {
			return nil, err
		}
		return o.apply(ctx, st, CallPrepared(call))
	}
	return nil, types.NewTransferError(types.CodeInvalidTransition, "nothing to prepare at stage %s", st.Stage)
}

// apply runs Transition, persists the result and records metrics.
func (o *Orchestrator) apply(ctx context.Context, st *types.TransferState, f Fact) (*types.TransferState, error) {
	next, err := Transition(st, f, o.now())
	if err != nil {
		return nil, err
	}
	if err := o.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("persisting transfer %s: %w", st.ID, err)
	}

	if next.Stage != st.Stage {
		srcChain, destChain := next.Request.SourceChain, next.Request.DestinationChain
		o.metrics.IncTransition(srcChain, destChain, string(next.Stage))
		if next.Stage.Terminal() {
			o.metrics.DecInFlight(srcChain, destChain)
		}
		if next.Stage == types.StageFailed {
			o.metrics.IncFailure(srcChain, destChain, string(next.LastError.Code))
			o.logger.Error("Transfer failed", "id", next.ID, "stage", next.FailedStage, "reason", next.LastError.Code, "error", next.LastError.Message)
		} else {
			o.logger.Info("Transfer advanced", "id", next.ID, "from", st.Stage, "to", next.Stage)
		}
	}
	return next, nil
}

func (o *Orchestrator) messageReceived(ctx context.Context, st *types.TransferState) (bool, error) {
	if len(st.MessageBytes) == 0 {
		return false, nil
	}
	_, dst, err := o.chains(st)
	if err != nil {
		return false, err
	}
	reader, err := o.reader(dst.Name)
	if err != nil {
		return false, err
	}
	received, err := reader.MessageReceived(ctx, st.SourceDomain, st.Nonce)
	if err != nil {
		return false, fmt.Errorf("reading used nonce on %s: %w", dst.Name, err)
	}
	return received, nil
}

// chains resolves both descriptors and refuses to continue if configured domains changed under a stored transfer.
func (o *Orchestrator) chains(st *types.TransferState) (src, dst types.ChainDescriptor, err error) {
	if src, err = o.registry.Describe(st.Request.SourceChain); err != nil {
		return
	}
	if dst, err = o.registry.Describe(st.Request.DestinationChain); err != nil {
		return
	}
	if src.Domain != st.SourceDomain || dst.Domain != st.DestDomain {
		err = fmt.Errorf("configured domains %d->%d differ from transfer %s domains %d->%d",
			src.Domain, dst.Domain, st.ID, st.SourceDomain, st.DestDomain)
	}
	return
}

func (o *Orchestrator) reader(chain string) (ChainReader, error) {
	r, ok := o.readers[chain]
	if !ok {
		return nil, types.NewTransferError(types.CodeUnsupportedChain, "no reader for chain %q", chain)
	}
	return r, nil
}

func (o *Orchestrator) load(ctx context.Context, id string, expected types.Stage) (*types.TransferState, error) {
	st, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Stage != expected {
		return nil, types.NewTransferError(types.CodeStaleState, "expected stage %s, transfer %s is at %s", expected, id, st.Stage)
	}
	return st, nil
}

func (o *Orchestrator) lockFor(id string) *sync.Mutex {
	v, _ := o.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// acquire fails fast with StaleState when another call is already working on id.
func (o *Orchestrator) acquire(id string) (func(), error) {
	mu := o.lockFor(id)
	if !mu.TryLock() {
		return nil, types.NewTransferError(types.CodeStaleState, "transfer %s is being advanced", id)
	}
	return mu.Unlock, nil
}

var alreadyProcessedMarkers = []string{"nonce already used", "already processed", "already received"}

func alreadyProcessed(reason string) bool {
	reason = strings.ToLower(reason)
	for _, m := range alreadyProcessedMarkers {
		if strings.Contains(reason, m) {
			return true
		}
	}
	return false
}

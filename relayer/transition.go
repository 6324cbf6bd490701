package relayer

import (
	"math/big"
	"time"

	"github.com/strangelove-ventures/cctp-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// FactKind enumerates the external results the state machine reacts to.
type FactKind int

const (
	FactAllowance FactKind = iota
	FactCallPrepared
	FactCallWithdrawn
	FactSubmitted
	FactConfirmed
	FactBurnConfirmed
	FactReverted
	FactAttested
	FactAlreadyReceived
	FactFailed
	FactResumed
)

var factNames = map[FactKind]string{
	FactAllowance:       "allowance",
	FactCallPrepared:    "call_prepared",
	FactCallWithdrawn:   "call_withdrawn",
	FactSubmitted:       "submitted",
	FactConfirmed:       "confirmed",
	FactBurnConfirmed:   "burn_confirmed",
	FactReverted:        "reverted",
	FactAttested:        "attested",
	FactAlreadyReceived: "already_received",
	FactFailed:          "failed",
	FactResumed:         "resumed",
}

func (k FactKind) String() string {
	return factNames[k]
}

// Fact is one observation fed into Transition.
type Fact struct {
	Kind        FactKind
	Allowance   *big.Int
	Call        *types.CallRequest
	TxHash      string
	Message     []byte
	Nonce       uint64
	Attestation *types.AttestationRecord
	Err         *types.TransferError
}

func AllowanceObserved(allowance *big.Int) Fact { return Fact{Kind: FactAllowance, Allowance: allowance} }
func CallPrepared(call *types.CallRequest) Fact  { return Fact{Kind: FactCallPrepared, Call: call} }
func CallWithdrawn() Fact                        { return Fact{Kind: FactCallWithdrawn} }
func TxSubmitted(hash string) Fact               { return Fact{Kind: FactSubmitted, TxHash: hash} }
func TxConfirmed() Fact                          { return Fact{Kind: FactConfirmed} }
func TxReverted() Fact                           { return Fact{Kind: FactReverted} }
func MessageAlreadyReceived() Fact               { return Fact{Kind: FactAlreadyReceived} }
func Resumed() Fact                              { return Fact{Kind: FactResumed} }

func BurnConfirmed(message []byte, nonce uint64) Fact {
	return Fact{Kind: FactBurnConfirmed, Message: message, Nonce: nonce}
}

func Attested(record *types.AttestationRecord) Fact {
	return Fact{Kind: FactAttested, Attestation: record}
}

func Failed(err *types.TransferError) Fact {
	return Fact{Kind: FactFailed, Err: err}
}

var revertCodes = map[types.Stage]types.Code{
	types.StageApprove: types.CodeApprovalReverted,
	types.StageBurn:    types.CodeBurnReverted,
	types.StageMint:    types.CodeMintReverted,
}

// Transition computes the next state for fact. It never mutates s and performs no I/O.
func Transition(s *types.TransferState, f Fact, now time.Time) (*types.TransferState, error) {
	if s == nil {
		return nil, types.NewTransferError(types.CodeInvalidTransition, "no state")
	}
	invalid := func() (*types.TransferState, error) {
		return nil, types.NewTransferError(types.CodeInvalidTransition, "%s is not valid at stage %s", f.Kind, s.Stage)
	}

	switch s.Stage {
	case types.StageDone:
		return invalid()
	case types.StageFailed:
		if f.Kind != FactResumed {
			return invalid()
		}
	}

	next := s.Clone()
	next.Updated = now
	txHash := s.TxHashFor(s.Stage)

	switch f.Kind {
	case FactAllowance:
		if f.Allowance == nil || txHash != "" {
			return invalid()
		}
		sufficient := f.Allowance.Cmp(s.Amount) >= 0
		switch s.Stage {
		case types.StageApprove:
			if sufficient {
				next.Stage = types.StageBurn
				next.PendingCall = nil
			}
		case types.StageBurn:
			if !sufficient {
				fail(next, s.Stage, types.NewInsufficientAllowance(s.Amount, f.Allowance))
			}
		default:
			return invalid()
		}

	case FactCallPrepared:
		if !hasTxSlot(s.Stage) || txHash != "" || f.Call == nil {
			return invalid()
		}
		next.PendingCall = f.Call

	case FactCallWithdrawn:
		if !hasTxSlot(s.Stage) || txHash != "" {
			return invalid()
		}
		next.PendingCall = nil

	case FactSubmitted:
		if !hasTxSlot(s.Stage) || txHash != "" || s.PendingCall == nil || f.TxHash == "" {
			return invalid()
		}
		next.SetTxHash(s.Stage, f.TxHash)
		next.PendingCall = nil

	case FactConfirmed:
		if txHash == "" {
			return invalid()
		}
		switch s.Stage {
		case types.StageApprove:
			next.Stage = types.StageBurn
		case types.StageMint:
			next.Stage = types.StageDone
		default:
			return invalid()
		}

	case FactBurnConfirmed:
		if s.Stage != types.StageBurn || txHash == "" || len(f.Message) == 0 {
			return invalid()
		}
		next.MessageBytes = append([]byte(nil), f.Message...)
		next.MessageHash = ethereum.HashMessage(f.Message).Hex()
		next.Nonce = f.Nonce
		next.Stage = types.StageAwaitingAttestation

	case FactReverted:
		code, ok := revertCodes[s.Stage]
		if !ok || txHash == "" {
			return invalid()
		}
		fail(next, s.Stage, types.NewTransferError(code, "transaction %s reverted", txHash))

	case FactAttested:
		if s.Stage != types.StageAwaitingAttestation || !f.Attestation.Complete() {
			return invalid()
		}
		next.Attestation = append([]byte(nil), f.Attestation.Signature...)
		next.MessageBytes = append([]byte(nil), f.Attestation.Message...)
		next.Stage = types.StageMint

	case FactAlreadyReceived:
		if s.Stage != types.StageMint {
			return invalid()
		}
		next.PendingCall = nil
		next.Stage = types.StageDone

	case FactFailed:
		if f.Err == nil {
			return invalid()
		}
		fail(next, s.Stage, f.Err)

	case FactResumed:
		if s.Stage != types.StageFailed || !s.FailedStage.Resumable() {
			return invalid()
		}
		next.Stage = s.FailedStage
		next.FailedStage = ""
		next.LastError = nil
		next.PendingCall = nil
		// a submitted tx that did not revert may still land; keep polling it
		if discardsTx(s.LastError) {
			next.SetTxHash(s.FailedStage, "")
		}

	default:
		return invalid()
	}

	return next, nil
}

func fail(s *types.TransferState, at types.Stage, err *types.TransferError) {
	s.Stage = types.StageFailed
	s.FailedStage = at
	s.LastError = err
	s.PendingCall = nil
}

// discardsTx reports whether resuming after err needs a new transaction at the failed stage.
func discardsTx(err *types.TransferError) bool {
	if err == nil {
		return false
	}
	switch err.Code {
	case types.CodeApprovalReverted, types.CodeBurnReverted, types.CodeMintReverted, types.CodeSubmissionRejected:
		return true
	}
	return false
}

func hasTxSlot(stage types.Stage) bool {
	_, ok := revertCodes[stage]
	return ok
}

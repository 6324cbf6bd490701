package types

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TransferRequest is the user intent for one cross-chain USDC transfer.
type TransferRequest struct {
	SourceChain      string `json:"source_chain" validate:"required"`
	DestinationChain string `json:"destination_chain" validate:"required,nefield=SourceChain"`
	Amount           string `json:"amount" validate:"required"`
	Recipient        string `json:"recipient" validate:"required,eth_addr"`
	Sender           string `json:"sender" validate:"required,eth_addr"`
}

// Validate checks the request shape. Chain membership and amount precision are checked against the
// registry by ValidateAgainst.
func (r TransferRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "nefield" {
				return NewTransferError(CodeValidation, "source and destination chain must differ")
			}
			return NewTransferError(CodeValidation, "invalid %s: failed %q", strings.ToLower(fe.Field()), fe.Tag())
		}
		return NewTransferError(CodeValidation, "%s", err.Error())
	}
	return nil
}

// ValidateAgainst runs Validate and resolves both chains and the amount.
func (r TransferRequest) ValidateAgainst(registry *ChainRegistry) (src, dst ChainDescriptor, amount *big.Int, err error) {
	if err = r.Validate(); err != nil {
		return
	}
	if src, err = registry.Describe(r.SourceChain); err != nil {
		return
	}
	if dst, err = registry.Describe(r.DestinationChain); err != nil {
		return
	}
	if src.Domain == dst.Domain {
		err = NewTransferError(CodeValidation, "source and destination share domain %d", src.Domain)
		return
	}
	amount, err = FormatUSDCAmount(r.Amount)
	return
}

// CallRequest is an unsigned contract call handed to the wallet for signing.
type CallRequest struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

// AttestationStatus mirrors the status reported by the attestation service.
type AttestationStatus string

const (
	AttestationPending  AttestationStatus = "pending"
	AttestationComplete AttestationStatus = "complete"
)

type AttestationRecord struct {
	Status    AttestationStatus
	Message   []byte
	Signature []byte
}

// Complete reports whether the record can be used for a mint.
func (a *AttestationRecord) Complete() bool {
	return a != nil && a.Status == AttestationComplete && len(a.Message) > 0 && len(a.Signature) > 0
}

// TransferState is the working record for one transfer, keyed by a caller supplied correlation id.
type TransferState struct {
	ID           string          `json:"id"`
	Stage        Stage           `json:"stage"`
	Request      TransferRequest `json:"request"`
	SourceDomain Domain          `json:"source_domain"`
	DestDomain   Domain          `json:"dest_domain"`
	Amount       *big.Int        `json:"amount"`

	// PendingCall is the call awaiting a signature for the current stage.
	PendingCall *CallRequest `json:"pending_call,omitempty"`

	ApproveTxHash string        `json:"approve_tx_hash,omitempty"`
	BurnTxHash    string        `json:"burn_tx_hash,omitempty"`
	MessageBytes  hexutil.Bytes `json:"message_bytes,omitempty"`
	MessageHash   string        `json:"message_hash,omitempty"`
	Nonce         uint64        `json:"nonce,omitempty"`
	Attestation   hexutil.Bytes `json:"attestation,omitempty"`
	MintTxHash    string        `json:"mint_tx_hash,omitempty"`

	LastError   *TransferError `json:"last_error,omitempty"`
	FailedStage Stage          `json:"failed_stage,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// TxHashFor returns the hash recorded for the transaction of a stage.
func (s *TransferState) TxHashFor(stage Stage) string {
	switch stage {
	case StageApprove:
		return s.ApproveTxHash
	case StageBurn:
		return s.BurnTxHash
	case StageMint:
		return s.MintTxHash
	}
	return ""
}

// SetTxHash records hash against the transaction slot of stage.
func (s *TransferState) SetTxHash(stage Stage, hash string) {
	switch stage {
	case StageApprove:
		s.ApproveTxHash = hash
	case StageBurn:
		s.BurnTxHash = hash
	case StageMint:
		s.MintTxHash = hash
	}
}

// AwaitingWait reports whether the next step is a blocking wait (receipt or attestation).
func (s *TransferState) AwaitingWait() bool {
	if s.Stage == StageAwaitingAttestation {
		return true
	}
	return s.TxHashFor(s.Stage) != ""
}

// Clone returns a deep copy so stored records never share mutable memory with callers.
func (s *TransferState) Clone() *TransferState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Amount != nil {
		c.Amount = new(big.Int).Set(s.Amount)
	}
	if s.PendingCall != nil {
		call := *s.PendingCall
		call.Data = append(hexutil.Bytes(nil), s.PendingCall.Data...)
		if s.PendingCall.Value != nil {
			v := hexutil.Big(*new(big.Int).Set(s.PendingCall.Value.ToInt()))
			call.Value = &v
		}
		c.PendingCall = &call
	}
	c.MessageBytes = append(hexutil.Bytes(nil), s.MessageBytes...)
	c.Attestation = append(hexutil.Bytes(nil), s.Attestation...)
	if s.LastError != nil {
		e := *s.LastError
		c.LastError = &e
	}
	return &c
}

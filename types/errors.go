package types

import (
	"errors"
	"fmt"
	"math/big"
)

// Code is the machine-readable reason attached to every failed transfer.
type Code string

const (
	CodeValidation            Code = "ValidationError"
	CodeUnsupportedChain      Code = "UnsupportedChain"
	CodeInsufficientAllowance Code = "InsufficientAllowance"
	CodeApprovalReverted      Code = "ApprovalReverted"
	CodeBurnReverted          Code = "BurnReverted"
	CodeMintReverted          Code = "MintReverted"
	CodeMessageEventNotFound  Code = "MessageEventNotFound"
	CodeAttestationTimeout    Code = "AttestationTimeout"
	CodeOracle                Code = "OracleError"
	CodeStaleState            Code = "StaleState"

	CodeTransferNotFound   Code = "TransferNotFound"
	CodeTransferExists     Code = "TransferExists"
	CodeInvalidTransition  Code = "InvalidTransition"
	CodeSubmissionRejected Code = "SubmissionRejected"
	CodeAbandoned          Code = "Abandoned"
)

// Sentinels for errors.Is. Matching is by Code only.
var (
	ErrValidation            = &TransferError{Code: CodeValidation}
	ErrUnsupportedChain      = &TransferError{Code: CodeUnsupportedChain}
	ErrInsufficientAllowance = &TransferError{Code: CodeInsufficientAllowance}
	ErrApprovalReverted      = &TransferError{Code: CodeApprovalReverted}
	ErrBurnReverted          = &TransferError{Code: CodeBurnReverted}
	ErrMintReverted          = &TransferError{Code: CodeMintReverted}
	ErrMessageEventNotFound  = &TransferError{Code: CodeMessageEventNotFound}
	ErrAttestationTimeout    = &TransferError{Code: CodeAttestationTimeout}
	ErrOracle                = &TransferError{Code: CodeOracle}
	ErrStaleState            = &TransferError{Code: CodeStaleState}
	ErrTransferNotFound      = &TransferError{Code: CodeTransferNotFound}
	ErrTransferExists        = &TransferError{Code: CodeTransferExists}
	ErrInvalidTransition     = &TransferError{Code: CodeInvalidTransition}
	ErrSubmissionRejected    = &TransferError{Code: CodeSubmissionRejected}
	ErrAbandoned             = &TransferError{Code: CodeAbandoned}
)

type TransferError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	// set for InsufficientAllowance, in smallest units
	Required  string `json:"required,omitempty"`
	Available string `json:"available,omitempty"`
}

func NewTransferError(code Code, format string, args ...any) *TransferError {
	return &TransferError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewInsufficientAllowance(required, available *big.Int) *TransferError {
	return &TransferError{
		Code:      CodeInsufficientAllowance,
		Message:   fmt.Sprintf("allowance %s is below required amount %s", available, required),
		Required:  required.String(),
		Available: available.String(),
	}
}

func (e *TransferError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TransferError) Is(target error) bool {
	t, ok := target.(*TransferError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ErrorCode extracts the Code from err, or "" if err does not wrap a TransferError.
func ErrorCode(err error) Code {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// AsTransferError returns err as a TransferError, wrapping unknown errors under fallback.
func AsTransferError(err error, fallback Code) *TransferError {
	var te *TransferError
	if errors.As(err, &te) {
		return te
	}
	return &TransferError{Code: fallback, Message: err.Error()}
}

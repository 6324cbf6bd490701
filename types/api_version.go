package types

import (
	"fmt"
	"strings"
)

// APIVersion selects the Iris endpoint family used to look up attestations.
type APIVersion int

const (
	APIVersionV1 APIVersion = iota + 1 // keyed by message hash
	APIVersionV2                       // keyed by source domain and burn tx hash
)

func (v APIVersion) String() string {
	if v == APIVersionV2 {
		return "v2"
	}
	return "v1"
}

// AttestationURL builds the lookup URL for one burn. base must not end in '/'.
func (v APIVersion) AttestationURL(base string, sourceDomain Domain, messageHash, burnTxHash string) string {
	if v == APIVersionV2 {
		return fmt.Sprintf("%s/v2/messages/%d?transactionHash=%s", base, sourceDomain, burnTxHash)
	}
	return fmt.Sprintf("%s/attestations/%s", base, messageHash)
}

// ParseAPIVersion accepts "v1", "v2", "1", "2" or empty (v1).
func ParseAPIVersion(s string) (APIVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1", "":
		return APIVersionV1, nil
	case "v2", "2":
		return APIVersionV2, nil
	default:
		return 0, NewTransferError(CodeValidation, "invalid attestation API version %q", s)
	}
}

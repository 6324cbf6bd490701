package types

// Status values reported by the attestation service.
const (
	IrisStatusComplete             = "complete"
	IrisStatusPendingConfirmations = "pending_confirmations"
)

// AttestationResponse is the v1 API response format
type AttestationResponse struct {
	Attestation *string `json:"attestation"`
	Message     *string `json:"message"`
	Status      string  `json:"status"`
}

// AttestationResponseV2 is the v2 API response format
type AttestationResponseV2 struct {
	Messages []MessageResponseV2 `json:"messages"`
}

// MessageResponseV2 represents a message in v2 response
type MessageResponseV2 struct {
	Message           string `json:"message"`
	Attestation       string `json:"attestation"`
	Status            string `json:"status"`
	EventNonce        string `json:"eventNonce"`
	SourceDomain      string `json:"sourceDomain"`
	DestinationDomain string `json:"destinationDomain"`
	CctpVersion       string `json:"cctpVersion"`
}

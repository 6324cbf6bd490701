package circle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/strangelove-ventures/cctp-orchestrator/ethereum"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

const (
	defaultHTTPTimeout       = 5 * time.Second
	defaultRequestsPerSecond = 10
)

// IrisSandboxURL is the testnet attestation service.
const IrisSandboxURL = "https://iris-api-sandbox.circle.com"

// Query identifies the burn whose attestation is requested.
type Query struct {
	MessageHash  string
	Message      []byte
	SourceDomain types.Domain
	TxHash       string
}

// Client talks to the Circle Iris attestation service.
type Client struct {
	baseURL    string
	version    types.APIVersion
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	logger     log.Logger
}

func NewClient(cfg types.CircleSettings, logger log.Logger) (*Client, error) {
	version, err := cfg.GetAPIVersion()
	if err != nil {
		return nil, err
	}
	if cfg.AttestationBaseURL == "" {
		return nil, fmt.Errorf("attestation base url is required")
	}

	timeout := defaultHTTPTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	logger = logger.With("component", "iris")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "iris",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Attestation circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    normalizeBaseURL(cfg.AttestationBaseURL),
		version:    version,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}, nil
}

// FetchAttestation performs one lookup. Not found and pending_confirmations both yield a pending record.
// Any other failure is an OracleError.
func (c *Client) FetchAttestation(ctx context.Context, q Query) (*types.AttestationRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		switch c.version {
		case types.APIVersionV2:
			return c.fetchV2(ctx, q)
		default:
			return c.fetchV1(ctx, q)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.AsTransferError(err, types.CodeOracle)
	}

	record := res.(*types.AttestationRecord)
	if record.Status != types.AttestationComplete {
		return record, nil
	}
	if len(record.Message) == 0 {
		record.Message = q.Message
	}
	if q.MessageHash != "" && ethereum.HashMessage(record.Message).Hex() != normalizeMessageHash(q.MessageHash) {
		return nil, types.NewTransferError(types.CodeOracle, "attested message does not hash to %s", q.MessageHash)
	}
	return record, nil
}

func (c *Client) url(q Query) string {
	return c.version.AttestationURL(c.baseURL, q.SourceDomain, normalizeMessageHash(q.MessageHash), normalizeMessageHash(q.TxHash))
}

func (c *Client) fetchV1(ctx context.Context, q Query) (*types.AttestationRecord, error) {
	url := c.url(q)

	var response types.AttestationResponse
	found, err := c.httpGet(ctx, url, &response)
	if err != nil || !found {
		return pendingRecord(), err
	}
	return toRecord(response.Status, deref(response.Attestation), deref(response.Message))
}

// fetchV2 may return several messages for one burn tx; the one matching the hash is used.
func (c *Client) fetchV2(ctx context.Context, q Query) (*types.AttestationRecord, error) {
	url := c.url(q)

	var response types.AttestationResponseV2
	found, err := c.httpGet(ctx, url, &response)
	if err != nil || !found || len(response.Messages) == 0 {
		return pendingRecord(), err
	}
	if len(response.Messages) > 1 {
		c.logger.Info("Multiple messages found for burn tx, selecting by hash", "tx", q.TxHash, "count", len(response.Messages))
	}
	for _, m := range response.Messages {
		if q.MessageHash == "" || m.Message == "" || strings.EqualFold(hashHex(m.Message), normalizeMessageHash(q.MessageHash)) {
			return toRecord(m.Status, m.Attestation, m.Message)
		}
	}
	return pendingRecord(), nil
}

// httpGet returns found=false for 404.
func (c *Client) httpGet(ctx context.Context, url string, result any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, types.NewTransferError(types.CodeOracle, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, types.NewTransferError(types.CodeOracle, "reading response: %v", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		c.logger.Debug("Attestation not found yet", "url", url)
		return false, nil
	default:
		return false, types.NewTransferError(types.CodeOracle, "GET %s: status %d: %s", url, resp.StatusCode, truncate(body, 200))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(result); err != nil {
		return false, types.NewTransferError(types.CodeOracle, "decoding response: %v", err)
	}
	return true, nil
}

func toRecord(status, attestation, message string) (*types.AttestationRecord, error) {
	if status != types.IrisStatusComplete {
		return pendingRecord(), nil
	}
	sig, err := decodeHex(attestation)
	if err != nil {
		return nil, types.NewTransferError(types.CodeOracle, "invalid attestation: %v", err)
	}
	msg, err := decodeHex(message)
	if err != nil {
		return nil, types.NewTransferError(types.CodeOracle, "invalid message: %v", err)
	}
	if len(sig) == 0 {
		// complete without a signature is not usable yet
		return pendingRecord(), nil
	}
	return &types.AttestationRecord{Status: types.AttestationComplete, Message: msg, Signature: sig}, nil
}

func pendingRecord() *types.AttestationRecord {
	return &types.AttestationRecord{Status: types.AttestationPending}
}

func decodeHex(s string) ([]byte, error) {
	if s == "" || s == "PENDING" {
		return nil, nil
	}
	return hexutil.Decode(normalizeMessageHash(s))
}

func hashHex(message string) string {
	raw, err := decodeHex(message)
	if err != nil {
		return ""
	}
	return ethereum.HashMessage(raw).Hex()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

// normalizeMessageHash ensures the hash has a 0x prefix
func normalizeMessageHash(hash string) string {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) > 2 && hash[:2] != "0x" {
		return "0x" + hash
	}
	return hash
}

// normalizeBaseURL removes trailing slashes and an /attestations suffix
func normalizeBaseURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	return strings.TrimSuffix(url, "/attestations")
}

// IsOracleError reports whether err came from the attestation service rather than the caller.
func IsOracleError(err error) bool {
	return errors.Is(err, types.ErrOracle)
}

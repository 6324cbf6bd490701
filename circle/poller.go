package circle

import (
	"context"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// Oracle performs a single attestation lookup.
type Oracle interface {
	FetchAttestation(ctx context.Context, q Query) (*types.AttestationRecord, error)
}

// Poll outcomes passed to the attempt observer.
const (
	OutcomePending  = "pending"
	OutcomeComplete = "complete"
	OutcomeError    = "error"
)

// Poller repeatedly queries an Oracle until the attestation completes or the attempt budget runs out.
type Poller struct {
	oracle Oracle
	logger log.Logger

	// OnAttempt, if set, is called once per lookup with its outcome.
	OnAttempt func(outcome string)
}

func NewPoller(oracle Oracle, logger log.Logger) *Poller {
	return &Poller{oracle: oracle, logger: logger.With("component", "attestation-poller")}
}

// AwaitAttestation returns a complete record or fails with AttestationTimeout after maxAttempts lookups.
// Oracle errors consume an attempt and back off exponentially, capped at eight intervals.
func (p *Poller) AwaitAttestation(ctx context.Context, q Query, maxAttempts int, interval time.Duration) (*types.AttestationRecord, error) {
	if maxAttempts <= 0 {
		return nil, types.NewTransferError(types.CodeValidation, "max attempts must be positive")
	}

	var (
		lastErr        error
		consecutiveErr int
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record, err := p.oracle.FetchAttestation(ctx, q)
		switch {
		case err != nil && !IsOracleError(err):
			return nil, err
		case err != nil:
			lastErr = err
			consecutiveErr++
			p.observe(OutcomeError)
			p.logger.Debug("Attestation lookup failed", "hash", q.MessageHash, "attempt", attempt, "error", err)
		case record.Complete():
			p.observe(OutcomeComplete)
			p.logger.Info("Attestation complete", "hash", q.MessageHash, "attempts", attempt)
			return record, nil
		default:
			consecutiveErr = 0
			p.observe(OutcomePending)
			p.logger.Debug("Attestation pending", "hash", q.MessageHash, "attempt", attempt)
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, backoff(interval, consecutiveErr)); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, types.NewTransferError(types.CodeAttestationTimeout,
			"no attestation for %s after %d attempts, last error: %v", q.MessageHash, maxAttempts, lastErr)
	}
	return nil, types.NewTransferError(types.CodeAttestationTimeout, "no attestation for %s after %d attempts", q.MessageHash, maxAttempts)
}

func (p *Poller) observe(outcome string) {
	if p.OnAttempt != nil {
		p.OnAttempt(outcome)
	}
}

func backoff(interval time.Duration, consecutiveErr int) time.Duration {
	if consecutiveErr <= 1 {
		return interval
	}
	shift := consecutiveErr - 1
	if shift > 3 {
		shift = 3
	}
	return interval << shift
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package relayer

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

type queuedStep struct {
	id           string
	retryAttempt int
}

// Processor runs the blocking waits of transfers on a worker pool so API callers never block on them.
type Processor struct {
	orchestrator  *Orchestrator
	queue         chan queuedStep
	retries       int
	retryInterval time.Duration
	logger        log.Logger
}

func NewProcessor(orchestrator *Orchestrator, queueSize, retries int, retryInterval time.Duration, logger log.Logger) *Processor {
	return &Processor{
		orchestrator:  orchestrator,
		queue:         make(chan queuedStep, queueSize),
		retries:       retries,
		retryInterval: retryInterval,
		logger:        logger.With("component", "processor"),
	}
}

// Enqueue schedules a Step for id. It drops the request if the queue is full; Recover picks it up again.
func (p *Processor) Enqueue(id string) {
	p.enqueue(queuedStep{id: id})
}

func (p *Processor) enqueue(item queuedStep) {
	select {
	case p.queue <- item:
	default:
		p.logger.Error("Processing queue full, dropping step", "id", item.id)
	}
}

// Recover enqueues every stored transfer that is waiting on a receipt or attestation.
func (p *Processor) Recover(ctx context.Context) error {
	ids, err := p.orchestrator.Pending(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		p.Enqueue(id)
	}
	if len(ids) > 0 {
		p.logger.Info("Recovered pending transfers", "count", len(ids))
	}
	return nil
}

// Start spins up workers that run until ctx is done.
func (p *Processor) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go p.work(ctx)
	}
}

func (p *Processor) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.queue:
			p.process(ctx, item)
		}
	}
}

func (p *Processor) process(ctx context.Context, item queuedStep) {
	logger := p.logger.With("id", item.id)

	st, err := p.orchestrator.Step(ctx, item.id)
	switch {
	case err == nil:
		// approve confirmation may lead straight into a burn that still needs a signature
		if !st.Stage.Terminal() && st.AwaitingWait() {
			p.Enqueue(item.id)
		}
		return
	case errors.Is(err, types.ErrStaleState):
		logger.Debug("Transfer busy, skipping step")
		return
	case errors.Is(err, types.ErrTransferNotFound):
		logger.Debug("Transfer gone, skipping step")
		return
	case ctx.Err() != nil:
		return
	}

	if item.retryAttempt >= p.retries {
		logger.Error("Retry limit exceeded for transfer step", "limit", p.retries, "error", err)
		return
	}
	item.retryAttempt++
	logger.Info("Transfer step failed, retrying", "attempt", item.retryAttempt, "error", err)

	go func() {
		timer := time.NewTimer(p.retryInterval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			p.enqueue(item)
		}
	}()
}

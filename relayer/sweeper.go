package relayer

import (
	"context"
	"time"

	"cosmossdk.io/log"
	"github.com/robfig/cron/v3"
)

// Sweeper periodically evicts terminal transfers older than the retention window.
type Sweeper struct {
	orchestrator *Orchestrator
	retention    time.Duration
	cron         *cron.Cron
	logger       log.Logger
}

func NewSweeper(orchestrator *Orchestrator, retention time.Duration, logger log.Logger) *Sweeper {
	return &Sweeper{
		orchestrator: orchestrator,
		retention:    retention,
		cron:         cron.New(),
		logger:       logger.With("component", "sweeper"),
	}
}

// Start registers the sweep under schedule, a cron spec or "@every <duration>".
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Retention sweep scheduled", "schedule", schedule, "retention", s.retention)
	return nil
}

func (s *Sweeper) Sweep(ctx context.Context) int {
	n, err := s.orchestrator.Sweep(ctx, s.retention)
	if err != nil {
		s.logger.Error("Retention sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("Evicted terminal transfers", "count", n)
	}
	return n
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

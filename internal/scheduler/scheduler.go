package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Priya8975/price-tracker/internal/pricing"
)

// CycleRunner checks every product once.
type CycleRunner interface {
	RunCycle(ctx context.Context) (pricing.CycleSummary, error)
}

// Recoverer resubmits jobs that never reached the queue.
type Recoverer interface {
	RecoverOrphans(ctx context.Context, grace time.Duration) (int, error)
}

type PriceLogPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type JobPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	CheckInterval     time.Duration
	RecoveryInterval  time.Duration
	RecoveryGrace     time.Duration
	PurgeInterval     time.Duration
	PriceLogRetention time.Duration
	JobRetention      time.Duration
}

func (c *Config) setDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 6 * time.Hour
	}
	if c.RecoveryInterval <= 0 {
		c.RecoveryInterval = time.Minute
	}
	if c.RecoveryGrace <= 0 {
		c.RecoveryGrace = 30 * time.Second
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = 24 * time.Hour
	}
	if c.PriceLogRetention <= 0 {
		c.PriceLogRetention = 365 * 24 * time.Hour
	}
	if c.JobRetention <= 0 {
		c.JobRetention = 365 * 24 * time.Hour
	}
}

// Scheduler runs the periodic price checks, the outbox recovery sweep
// and the retention purge.
type Scheduler struct {
	cycle     CycleRunner
	recoverer Recoverer
	logs      PriceLogPurger
	jobs      JobPurger
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func New(cycle CycleRunner, recoverer Recoverer, logs PriceLogPurger, jobs JobPurger, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.setDefaults()
	return &Scheduler{
		cycle:     cycle,
		recoverer: recoverer,
		logs:      logs,
		jobs:      jobs,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run starts every loop and blocks until ctx is cancelled. Each loop
// runs once straight away and then on its own ticker.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	loops := []struct {
		every time.Duration
		run   func(context.Context)
	}{
		{s.cfg.CheckInterval, s.checkPrices},
		{s.cfg.RecoveryInterval, s.recover},
		{s.cfg.PurgeInterval, s.purge},
	}
	for _, l := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			every(ctx, l.every, l.run)
		}()
	}
	wg.Wait()
}

func every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *Scheduler) checkPrices(ctx context.Context) {
	if _, err := s.cycle.RunCycle(ctx); err != nil {
		s.logger.Error("price check cycle failed", "error", err)
	}
}

func (s *Scheduler) recover(ctx context.Context) {
	if _, err := s.recoverer.RecoverOrphans(ctx, s.cfg.RecoveryGrace); err != nil {
		s.logger.Error("failed to recover orphaned jobs", "error", err)
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	now := s.now()
	if _, err := s.logs.PurgeOlderThan(ctx, now.Add(-s.cfg.PriceLogRetention)); err != nil {
		s.logger.Error("failed to purge price history", "error", err)
	}
	if _, err := s.jobs.Purge(ctx, now.Add(-s.cfg.JobRetention)); err != nil {
		s.logger.Error("failed to purge jobs", "error", err)
	}
}

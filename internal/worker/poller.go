package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Priya8975/price-tracker/internal/engine"
)

// Claimer removes ready envelopes from the queue.
type Claimer interface {
	ClaimReady(ctx context.Context, now time.Time, limit int64) ([]string, error)
}

// Poller moves ready envelopes from the Redis queue into the pool.
type Poller struct {
	queue        Claimer
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
}

func NewPoller(queue Claimer, pool *Pool, logger *slog.Logger) *Poller {
	return &Poller{
		queue:        queue,
		pool:         pool,
		logger:       logger,
		pollInterval: 100 * time.Millisecond,
		batchSize:    10,
	}
}

// Start polls until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("poller started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) int {
	members, err := p.queue.ClaimReady(ctx, time.Now(), p.batchSize)
	if err != nil {
		p.logger.Error("failed to poll notification queue", "error", err)
	}

	for _, member := range members {
		var env engine.Envelope
		if err := json.Unmarshal([]byte(member), &env); err != nil {
			p.logger.Error("dropping undecodable envelope", "error", err)
			continue
		}
		p.pool.Submit(env)
	}
	return len(members)
}

package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Priya8975/price-tracker/internal/engine"
)

// Runner executes one claimed envelope.
type Runner interface {
	Execute(ctx context.Context, env engine.Envelope)
}

// Pool runs a fixed number of goroutines that execute notification jobs.
type Pool struct {
	numWorkers int
	jobs       chan engine.Envelope
	runner     Runner
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, runner Runner, logger *slog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan engine.Envelope, numWorkers*2),
		runner:     runner,
		logger:     logger,
	}
}

// Start launches the workers. They run until Stop closes the channel and
// hand every envelope they receive to the runner, including those that
// arrive after ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit blocks until a worker has room for env.
func (p *Pool) Submit(env engine.Envelope) {
	p.jobs <- env
}

// Stop closes the jobs channel and waits for in-flight jobs.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for env := range p.jobs {
		p.runner.Execute(ctx, env)
	}
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/engine"
	"github.com/Priya8975/price-tracker/internal/metrics"
	"github.com/Priya8975/price-tracker/internal/notify"
	"github.com/Priya8975/price-tracker/internal/store"
	ws "github.com/Priya8975/price-tracker/internal/websocket"
)

// Broadcaster receives live job events.
type Broadcaster interface {
	Broadcast(event ws.Event)
}

type ExecutorConfig struct {
	// RetryDelay is the fixed wait before a transient failure is retried.
	RetryDelay time.Duration
	// ThrottleDelay is how long a send blocked by the circuit breaker or
	// the rate limiter waits before it is tried again.
	ThrottleDelay time.Duration
	// RateLimit caps sends per second through the relay. Zero disables it.
	RateLimit int
	// WriteTimeout bounds status writes and requeues, which run detached
	// from the caller's context so shutdown cannot cut them off.
	WriteTimeout time.Duration
	Worker       string
}

// Executor sends one notification and records its execution state.
//
// A transient failure is queued again after RetryDelay until the
// envelope's retries are spent, then the job fails. Permanent failures
// fail at once. Sends held back by an open circuit or the rate limit are
// rescheduled without spending an attempt, as are envelopes handed over
// after ctx is cancelled.
type Executor struct {
	jobs    store.JobStore
	mailer  notify.Mailer
	queue   engine.Queue
	breaker *engine.CircuitBreaker
	limiter *engine.RateLimiter
	hub     Broadcaster
	cfg     ExecutorConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewExecutor(jobs store.JobStore, mailer notify.Mailer, queue engine.Queue, breaker *engine.CircuitBreaker, limiter *engine.RateLimiter, hub Broadcaster, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 60 * time.Second
	}
	if cfg.ThrottleDelay <= 0 {
		cfg.ThrottleDelay = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Worker == "" {
		host, _ := os.Hostname()
		cfg.Worker = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &Executor{
		jobs:    jobs,
		mailer:  mailer,
		queue:   queue,
		breaker: breaker,
		limiter: limiter,
		hub:     hub,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Executor) Execute(ctx context.Context, env engine.Envelope) {
	if ctx.Err() != nil {
		e.release(ctx, env, false)
		return
	}

	relay := e.mailer.Relay()

	if state, ok := e.breaker.Allow(ctx, relay); !ok {
		e.postpone(ctx, env, "circuit "+state)
		return
	}
	if !e.limiter.Allow(ctx, relay, e.cfg.RateLimit) {
		e.postpone(ctx, env, "rate limited")
		return
	}

	e.record(ctx, env, domain.JobStarted, "", "")
	e.broadcast(env, ws.EventJobStarted, "")

	msg, err := notify.Render(env.Kind, env.Payload)
	if err == nil {
		err = e.mailer.Deliver(ctx, msg)
	}

	switch {
	case err == nil:
		e.breaker.RecordSuccess(ctx, relay)
		e.record(ctx, env, domain.JobSuccess, "sent to "+env.Recipient, "")
		e.broadcast(env, ws.EventJobSucceeded, "")
		e.logger.Info("notification sent",
			"job_id", env.JobID,
			"kind", env.Kind,
			"attempt", env.Attempt,
		)

	case domain.IsKind(err, domain.KindPermanent):
		e.fail(ctx, env, err)

	case ctx.Err() != nil:
		e.release(ctx, env, true)

	default:
		e.breaker.RecordFailure(ctx, relay)
		if env.Attempt > env.MaxRetries {
			e.fail(ctx, env, err)
			return
		}
		e.retry(ctx, env, err)
	}
}

func (e *Executor) retry(ctx context.Context, env engine.Envelope, cause error) {
	next := env
	next.Attempt++

	if err := e.enqueue(ctx, next, e.now().Add(e.cfg.RetryDelay)); err != nil {
		e.fail(ctx, env, fmt.Errorf("%v; requeue failed: %w", cause, err))
		return
	}

	e.record(ctx, env, domain.JobRetry, "", cause.Error())
	e.broadcast(env, ws.EventJobRetrying, cause.Error())
	e.logger.Warn("notification failed, retrying",
		"job_id", env.JobID,
		"kind", env.Kind,
		"attempt", env.Attempt,
		"retry_in", e.cfg.RetryDelay.String(),
		"error", cause,
	)
}

func (e *Executor) fail(ctx context.Context, env engine.Envelope, cause error) {
	e.record(ctx, env, domain.JobFailure, "", cause.Error())
	e.broadcast(env, ws.EventJobFailed, cause.Error())
	e.logger.Error("notification failed",
		"job_id", env.JobID,
		"kind", env.Kind,
		"attempt", env.Attempt,
		"error", cause,
	)
}

func (e *Executor) postpone(ctx context.Context, env engine.Envelope, reason string) {
	if err := e.enqueue(ctx, env, e.now().Add(e.cfg.ThrottleDelay)); err != nil {
		e.fail(ctx, env, fmt.Errorf("%s; requeue failed: %w", reason, err))
		return
	}
	e.logger.Debug("notification postponed", "job_id", env.JobID, "reason", reason)
}

// release returns an envelope claimed while shutting down to the queue,
// ready at once and with its attempt unspent. started marks a send that
// was cut off after the job was recorded as STARTED.
func (e *Executor) release(ctx context.Context, env engine.Envelope, started bool) {
	if err := e.enqueue(ctx, env, e.now()); err != nil {
		e.logger.Error("failed to release notification",
			"job_id", env.JobID,
			"kind", env.Kind,
			"error", err,
		)
		return
	}
	if started {
		e.record(ctx, env, domain.JobRetry, "", "interrupted by shutdown")
	}
	e.logger.Info("notification released", "job_id", env.JobID, "attempt", env.Attempt)
}

// detach derives a context for state writes that outlives cancellation
// of ctx but not WriteTimeout.
func (e *Executor) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.cfg.WriteTimeout)
}

func (e *Executor) enqueue(ctx context.Context, env engine.Envelope, at time.Time) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	wctx, cancel := e.detach(ctx)
	defer cancel()
	return e.queue.Enqueue(wctx, string(data), at)
}

func (e *Executor) record(ctx context.Context, env engine.Envelope, status domain.JobStatus, result, traceback string) {
	r := &domain.JobResult{
		JobID:     env.JobID,
		Status:    status,
		Attempts:  env.Attempt,
		Result:    result,
		Traceback: traceback,
		Worker:    e.cfg.Worker,
		UpdatedAt: e.now(),
	}
	if status == domain.JobSuccess || status == domain.JobFailure {
		done := r.UpdatedAt
		r.CompletedAt = &done
		metrics.NotificationOutcomesTotal.WithLabelValues(string(status)).Inc()
	}

	wctx, cancel := e.detach(ctx)
	defer cancel()
	if err := e.jobs.SaveJobResult(wctx, r); err != nil {
		e.logger.Error("failed to record job status",
			"job_id", env.JobID,
			"status", status,
			"error", err,
		)
	}
}

func (e *Executor) broadcast(env engine.Envelope, eventType, errMsg string) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(ws.Event{
		Type:      eventType,
		JobID:     env.JobID,
		Kind:      string(env.Kind),
		Recipient: env.Recipient,
		Attempt:   env.Attempt,
		Error:     errMsg,
		Timestamp: e.now(),
	})
}

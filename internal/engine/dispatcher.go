package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/metrics"
	"github.com/Priya8975/price-tracker/internal/store"
	"github.com/google/uuid"
)

// Envelope is the queue representation of a notification job.
type Envelope struct {
	JobID      string                  `json:"job_id"`
	Kind       domain.NotificationKind `json:"kind"`
	Recipient  string                  `json:"recipient"`
	Payload    json.RawMessage         `json:"payload"`
	Attempt    int                     `json:"attempt"`
	MaxRetries int                     `json:"max_retries"`
}

// Queue accepts encoded envelopes for delivery at a given time.
type Queue interface {
	Enqueue(ctx context.Context, member string, readyAt time.Time) error
}

// Dispatcher hands notification jobs to the worker queue through an
// outbox: the audit row is written first, the envelope is queued second
// and the audit is marked submitted last. Audits left unsubmitted by a
// crash or a queue outage are picked up by RecoverOrphans.
type Dispatcher struct {
	jobs       store.JobStore
	queue      Queue
	logger     *slog.Logger
	maxRetries int
	now        func() time.Time
}

func NewDispatcher(jobs store.JobStore, queue Queue, maxRetries int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		jobs:       jobs,
		queue:      queue,
		logger:     logger,
		maxRetries: maxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch records the job and queues it. It returns the job ID once the
// audit row exists; a queue failure is left to the recovery sweep.
func (d *Dispatcher) Dispatch(ctx context.Context, job domain.NotificationJob) (string, error) {
	return d.dispatch(ctx, job, nil)
}

// DispatchRetry queues a copy of a previous job linked to it by retry_of.
func (d *Dispatcher) DispatchRetry(ctx context.Context, job domain.NotificationJob, retryOf string) (string, error) {
	return d.dispatch(ctx, job, &retryOf)
}

func (d *Dispatcher) dispatch(ctx context.Context, job domain.NotificationJob, retryOf *string) (string, error) {
	if !job.Kind.Valid() {
		return "", domain.Errorf(domain.KindPermanent, "unknown notification kind %q", job.Kind)
	}

	status := domain.JobQueued
	if retryOf != nil {
		status = domain.JobRequeued
	}

	audit := &domain.JobAudit{
		ID:        uuid.NewString(),
		Kind:      job.Kind,
		Recipient: job.Recipient,
		Payload:   job.Payload,
		Status:    status,
		RetryOf:   retryOf,
		CreatedAt: d.now(),
	}
	if err := d.jobs.InsertJobAudit(ctx, audit); err != nil {
		return "", fmt.Errorf("recording %s job: %w", job.Kind, err)
	}

	if err := d.submit(ctx, *audit); err != nil {
		d.logger.Warn("notification left for recovery",
			"job_id", audit.ID,
			"kind", audit.Kind,
			"error", err,
		)
	}

	return audit.ID, nil
}

func (d *Dispatcher) submit(ctx context.Context, audit domain.JobAudit) error {
	data, err := json.Marshal(Envelope{
		JobID:      audit.ID,
		Kind:       audit.Kind,
		Recipient:  audit.Recipient,
		Payload:    audit.Payload,
		Attempt:    1,
		MaxRetries: d.maxRetries,
	})
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	now := d.now()
	if err := d.queue.Enqueue(ctx, string(data), now); err != nil {
		return err
	}
	metrics.NotificationsDispatchedTotal.WithLabelValues(string(audit.Kind)).Inc()

	if err := d.jobs.MarkJobSubmitted(ctx, audit.ID, now); err != nil {
		return fmt.Errorf("marking job submitted: %w", err)
	}
	return nil
}

// RecoverOrphans resubmits audits that were never marked submitted and
// are older than grace. It returns the number resubmitted.
func (d *Dispatcher) RecoverOrphans(ctx context.Context, grace time.Duration) (int, error) {
	orphans, err := d.jobs.ListUnsubmittedJobs(ctx, d.now().Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("listing orphaned jobs: %w", err)
	}

	recovered := 0
	for _, audit := range orphans {
		if err := d.submit(ctx, audit); err != nil {
			d.logger.Error("failed to resubmit orphaned job", "job_id", audit.ID, "error", err)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		d.logger.Info("recovered orphaned jobs", "count", recovered, "found", len(orphans))
	}
	return recovered, nil
}

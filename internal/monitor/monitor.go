// Package monitor inspects notification jobs and retries failed ones.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/store"
)

// Retrier re-submits a job as a new one linked to the original.
type Retrier interface {
	DispatchRetry(ctx context.Context, job domain.NotificationJob, retryOf string) (string, error)
}

type RetryError struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// BulkRetryResult summarises a RetryFailed run.
type BulkRetryResult struct {
	Retried int          `json:"retried"`
	Failed  int          `json:"failed"`
	Total   int          `json:"total"`
	Log     []RetryError `json:"log"`
}

type Service struct {
	jobs    store.JobStore
	retrier Retrier
	logger  *slog.Logger
}

func NewService(jobs store.JobStore, retrier Retrier, logger *slog.Logger) *Service {
	return &Service{jobs: jobs, retrier: retrier, logger: logger}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.JobRecord, error) {
	return s.jobs.GetJob(ctx, id)
}

func (s *Service) Filter(ctx context.Context, f domain.JobFilter) ([]domain.JobRecord, error) {
	return s.jobs.FilterJobs(ctx, f)
}

func (s *Service) Count(ctx context.Context, f domain.JobFilter) (int, error) {
	return s.jobs.CountJobs(ctx, f)
}

// Retry queues a copy of a failed job and returns the new job's ID.
func (s *Service) Retry(ctx context.Context, id string) (string, error) {
	rec, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.Status != domain.JobFailure {
		return "", domain.Errorf(domain.KindInvalidState, "job %s is %s, only FAILURE jobs can be retried", id, rec.Status)
	}

	newID, err := s.retrier.DispatchRetry(ctx, domain.NotificationJob{
		Kind:      rec.Kind,
		Recipient: rec.Recipient,
		Payload:   rec.Payload,
	}, id)
	if err != nil {
		return "", err
	}

	s.logger.Info("job retried", "job_id", id, "retry_id", newID)
	return newID, nil
}

// RetryFailed retries every FAILURE job created between from and to.
// One job failing to retry does not stop the rest.
func (s *Service) RetryFailed(ctx context.Context, from, to *time.Time) (BulkRetryResult, error) {
	failed, err := s.jobs.FilterJobs(ctx, domain.JobFilter{Status: domain.JobFailure, From: from, To: to})
	if err != nil {
		return BulkRetryResult{}, err
	}

	res := BulkRetryResult{Total: len(failed), Log: []RetryError{}}
	for _, rec := range failed {
		if _, err := s.Retry(ctx, rec.ID); err != nil {
			res.Failed++
			res.Log = append(res.Log, RetryError{JobID: rec.ID, Error: err.Error()})
			s.logger.Error("bulk retry failed for job", "job_id", rec.ID, "error", err)
			continue
		}
		res.Retried++
	}

	s.logger.Info("bulk retry complete", "retried", res.Retried, "failed", res.Failed, "total", res.Total)
	return res, nil
}

// Purge deletes jobs created before cutoff along with their results.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.jobs.PurgeJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("purged jobs", "before", cutoff.Format(time.RFC3339), "deleted", n)
	return n, nil
}

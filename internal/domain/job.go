package domain

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobQueued   JobStatus = "QUEUED"
	JobRequeued JobStatus = "REQUEUED"
	JobStarted  JobStatus = "STARTED"
	JobRetry    JobStatus = "RETRY"
	JobSuccess  JobStatus = "SUCCESS"
	JobFailure  JobStatus = "FAILURE"
)

// JobAudit is the outbox row written before a job reaches the queue.
// SubmittedAt stays nil until the queue accepted the job.
type JobAudit struct {
	ID          string           `json:"id"`
	Kind        NotificationKind `json:"kind"`
	Recipient   string           `json:"recipient"`
	Payload     json.RawMessage  `json:"payload"`
	Status      JobStatus        `json:"status"`
	RetryOf     *string          `json:"retry_of,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}

// JobResult is the execution state written by workers.
type JobResult struct {
	JobID       string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	Result      string     `json:"result,omitempty"`
	Traceback   string     `json:"traceback,omitempty"`
	Worker      string     `json:"worker,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobRecord is an audit row merged with its execution state.
type JobRecord struct {
	ID          string           `json:"id"`
	Kind        NotificationKind `json:"kind"`
	Recipient   string           `json:"recipient"`
	Payload     json.RawMessage  `json:"payload"`
	Status      JobStatus        `json:"status"`
	RetryOf     *string          `json:"retry_of,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	Attempts    int              `json:"attempts"`
	Result      string           `json:"result,omitempty"`
	Traceback   string           `json:"traceback,omitempty"`
	Worker      string           `json:"worker,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// MergeJob combines an audit row with its result. The execution status
// wins once a worker has touched the job.
func MergeJob(a JobAudit, r *JobResult) JobRecord {
	rec := JobRecord{
		ID:          a.ID,
		Kind:        a.Kind,
		Recipient:   a.Recipient,
		Payload:     a.Payload,
		Status:      a.Status,
		RetryOf:     a.RetryOf,
		CreatedAt:   a.CreatedAt,
		SubmittedAt: a.SubmittedAt,
	}
	if rec.Status == "" {
		rec.Status = JobQueued
	}
	if r != nil {
		rec.Status = r.Status
		rec.Attempts = r.Attempts
		rec.Result = r.Result
		rec.Traceback = r.Traceback
		rec.Worker = r.Worker
		rec.CompletedAt = r.CompletedAt
	}
	return rec
}

// JobFilter selects jobs by kind, merged status and creation time. Zero
// fields match everything.
type JobFilter struct {
	Kind   NotificationKind
	Status JobStatus
	From   *time.Time
	To     *time.Time
}

// Match reports whether rec passes the filter.
func (f JobFilter) Match(rec JobRecord) bool {
	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.From != nil && rec.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && rec.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

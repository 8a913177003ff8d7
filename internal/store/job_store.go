package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobRecordQuery = `
	SELECT a.id, a.kind, a.recipient, a.payload, COALESCE(r.status, a.status), a.retry_of,
	       a.created_at, a.submitted_at, COALESCE(r.attempts, 0), COALESCE(r.result, ''),
	       COALESCE(r.traceback, ''), COALESCE(r.worker, ''), r.completed_at
	FROM notification_jobs a
	LEFT JOIN job_results r ON r.job_id = a.id`

func scanJobRecord(row pgx.Row) (*domain.JobRecord, error) {
	var rec domain.JobRecord
	var kind, status string
	err := row.Scan(
		&rec.ID, &kind, &rec.Recipient, &rec.Payload, &status, &rec.RetryOf,
		&rec.CreatedAt, &rec.SubmittedAt, &rec.Attempts, &rec.Result,
		&rec.Traceback, &rec.Worker, &rec.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Kind = domain.NotificationKind(kind)
	rec.Status = domain.JobStatus(status)
	return &rec, nil
}

func (s *PostgresStore) InsertJobAudit(ctx context.Context, a *domain.JobAudit) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = domain.JobQueued
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_jobs (id, kind, recipient, payload, status, retry_of, created_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, string(a.Kind), a.Recipient, []byte(a.Payload), string(a.Status), a.RetryOf, a.CreatedAt, a.SubmittedAt)
	if err != nil {
		return fmt.Errorf("inserting job audit: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkJobSubmitted(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notification_jobs SET submitted_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("marking job submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("job", id)
	}
	return nil
}

func (s *PostgresStore) ListUnsubmittedJobs(ctx context.Context, createdBefore time.Time) ([]domain.JobAudit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, recipient, payload, status, retry_of, created_at
		FROM notification_jobs
		WHERE submitted_at IS NULL AND created_at < $1
		ORDER BY created_at
	`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("querying unsubmitted jobs: %w", err)
	}
	defer rows.Close()

	audits := []domain.JobAudit{}
	for rows.Next() {
		var a domain.JobAudit
		var kind, status string
		if err := rows.Scan(&a.ID, &kind, &a.Recipient, &a.Payload, &status, &a.RetryOf, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning job audit: %w", err)
		}
		a.Kind = domain.NotificationKind(kind)
		a.Status = domain.JobStatus(status)
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

func (s *PostgresStore) SaveJobResult(ctx context.Context, r *domain.JobResult) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_results (job_id, status, attempts, result, traceback, worker, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			result = EXCLUDED.result,
			traceback = EXCLUDED.traceback,
			worker = EXCLUDED.worker,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`, r.JobID, string(r.Status), r.Attempts, r.Result, r.Traceback, r.Worker, r.UpdatedAt, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("saving job result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*domain.JobRecord, error) {
	rec, err := scanJobRecord(s.pool.QueryRow(ctx, jobRecordQuery+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("job", id)
		}
		return nil, fmt.Errorf("querying job: %w", err)
	}
	return rec, nil
}

// jobFilterClause builds the WHERE clause for a filter.
func jobFilterClause(f domain.JobFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	argIdx := 1

	if f.Kind != "" {
		clauses = append(clauses, fmt.Sprintf("a.kind = $%d", argIdx))
		args = append(args, string(f.Kind))
		argIdx++
	}
	if f.Status != "" {
		clauses = append(clauses, fmt.Sprintf("COALESCE(r.status, a.status) = $%d", argIdx))
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.From != nil {
		clauses = append(clauses, fmt.Sprintf("a.created_at >= $%d", argIdx))
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		clauses = append(clauses, fmt.Sprintf("a.created_at <= $%d", argIdx))
		args = append(args, *f.To)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *PostgresStore) FilterJobs(ctx context.Context, f domain.JobFilter) ([]domain.JobRecord, error) {
	where, args := jobFilterClause(f)

	rows, err := s.pool.Query(ctx, jobRecordQuery+where+` ORDER BY a.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	records := []domain.JobRecord{}
	for rows.Next() {
		rec, err := scanJobRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) CountJobs(ctx context.Context, f domain.JobFilter) (int, error) {
	where, args := jobFilterClause(f)

	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notification_jobs a
		LEFT JOIN job_results r ON r.job_id = a.id`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

// PurgeJobs removes audit rows created before cutoff. Execution rows go
// with them through the foreign key.
func (s *PostgresStore) PurgeJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notification_jobs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

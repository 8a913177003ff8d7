package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/price-tracker/internal/domain"
)

// Stats returns aggregated counts from the database.
func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	st := Stats{
		Changes: map[domain.ChangeType]int{},
		Jobs:    map[domain.JobStatus]int{},
	}

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM subscribers),
			(SELECT COUNT(*) FROM price_logs)
	`).Scan(&st.Products, &st.Subscribers, &st.PriceLogs)
	if err != nil {
		return nil, fmt.Errorf("querying entity counts: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT change_type, COUNT(*) FROM price_logs GROUP BY change_type`)
	if err != nil {
		return nil, fmt.Errorf("querying change counts: %w", err)
	}
	for rows.Next() {
		var change string
		var n int
		if err := rows.Scan(&change, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning change count: %w", err)
		}
		st.Changes[domain.ChangeType(change)] = n
	}
	rows.Close()

	// Job status breakdown
	rows, err = s.pool.Query(ctx, `
		SELECT COALESCE(r.status, a.status), COUNT(*)
		FROM notification_jobs a
		LEFT JOIN job_results r ON r.job_id = a.id
		GROUP BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("querying job counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning job count: %w", err)
		}
		st.Jobs[domain.JobStatus(status)] = n
	}

	return &st, rows.Err()
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/google/uuid"
)

func (s *PostgresStore) InsertPriceLog(ctx context.Context, e *domain.PriceLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_logs (id, product_id, previous_price, current_price, price_diff, change_type, date_checked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ProductID, e.PreviousPrice, e.CurrentPrice, e.PriceDiff, string(e.ChangeType), e.DateChecked)
	if err != nil {
		return fmt.Errorf("inserting price log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPriceLogs(ctx context.Context, productID string, page Page) ([]domain.PriceLogEntry, error) {
	query := `
		SELECT id, product_id, previous_price, current_price, price_diff, change_type, date_checked
		FROM price_logs
		WHERE ($1 = '' OR product_id = $1)
		ORDER BY date_checked, id` + limitClause(page)

	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("querying price logs: %w", err)
	}
	defer rows.Close()

	entries := []domain.PriceLogEntry{}
	for rows.Next() {
		var e domain.PriceLogEntry
		var change string
		err := rows.Scan(&e.ID, &e.ProductID, &e.PreviousPrice, &e.CurrentPrice, &e.PriceDiff, &change, &e.DateChecked)
		if err != nil {
			return nil, fmt.Errorf("scanning price log: %w", err)
		}
		e.ChangeType = domain.ChangeType(change)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) DeletePriceLog(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting price log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("price log", id)
	}
	return nil
}

func (s *PostgresStore) DeletePriceLogsByProduct(ctx context.Context, productID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_logs WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("deleting price logs for product: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeletePriceLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_logs WHERE date_checked < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging price logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

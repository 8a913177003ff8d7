package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriberColumns = `id, product_id, email_address, name, product_name, product_url, subscribed_at`

func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	err := row.Scan(
		&sub.ID, &sub.ProductID, &sub.Email, &sub.Name,
		&sub.ProductName, &sub.ProductURL, &sub.SubscribedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) InsertSubscriber(ctx context.Context, sub *domain.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscribers (`+subscriberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sub.ID, sub.ProductID, sub.Email, sub.Name, sub.ProductName, sub.ProductURL, sub.SubscribedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Duplicate("subscription", sub.Email)
		}
		return fmt.Errorf("inserting subscriber: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindSubscriber(ctx context.Context, productID, email string) (*domain.Subscriber, error) {
	sub, err := scanSubscriber(s.pool.QueryRow(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers
		WHERE product_id = $1 AND email_address = $2
	`, productID, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("subscription", email)
		}
		return nil, fmt.Errorf("querying subscriber: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) ListSubscribersByProduct(ctx context.Context, productID string, page Page) ([]domain.Subscriber, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers
		WHERE product_id = $1
		ORDER BY subscribed_at, id`+limitClause(page), productID)
	if err != nil {
		return nil, fmt.Errorf("querying subscribers for product: %w", err)
	}
	return collectSubscribers(rows)
}

func (s *PostgresStore) ListSubscribersByEmail(ctx context.Context, email string) ([]domain.Subscriber, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers
		WHERE email_address = $1
		ORDER BY subscribed_at, id
	`, email)
	if err != nil {
		return nil, fmt.Errorf("querying subscribers by email: %w", err)
	}
	return collectSubscribers(rows)
}

func (s *PostgresStore) ListSubscribers(ctx context.Context, page Page) ([]domain.Subscriber, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriberColumns+` FROM subscribers
		ORDER BY subscribed_at DESC, id`+limitClause(page))
	if err != nil {
		return nil, fmt.Errorf("querying subscribers: %w", err)
	}
	return collectSubscribers(rows)
}

func collectSubscribers(rows pgx.Rows) ([]domain.Subscriber, error) {
	defer rows.Close()

	subscribers := []domain.Subscriber{}
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		subscribers = append(subscribers, *sub)
	}
	return subscribers, rows.Err()
}

func (s *PostgresStore) DeleteSubscriber(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("subscriber", id)
	}
	return nil
}

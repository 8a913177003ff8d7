package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Priya8975/price-tracker/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RunMigrations applies the embedded goose migrations over a database/sql
// handle borrowed from the pool.
func (s *PostgresStore) RunMigrations() error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// limitClause renders LIMIT/OFFSET for a page, or nothing for All.
func limitClause(p Page) string {
	if !p.Limited() {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.PerPage, p.Offset())
}

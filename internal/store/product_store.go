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

const productColumns = `id, name, product_name, url, price, is_available, img_url, date_checked, created_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.ProductName, &p.URL, &p.Price,
		&p.IsAvailable, &p.ImageURL, &p.DateChecked, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) InsertProduct(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Name, p.ProductName, p.URL, p.Price, p.IsAvailable, p.ImageURL, p.DateChecked, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Duplicate("product", p.URL)
		}
		return fmt.Errorf("inserting product: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("product", id)
		}
		return nil, fmt.Errorf("querying product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProductIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM products ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying product ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning product id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) ListProducts(ctx context.Context, page Page) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+` FROM products
		ORDER BY product_name, name, id`+limitClause(page))
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	return collectProducts(rows)
}

func (s *PostgresStore) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE name ILIKE '%' || $1 || '%' OR product_name ILIKE '%' || $1 || '%'
		ORDER BY product_name, name, id
	`, term)
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) ReplaceProduct(ctx context.Context, p *domain.Product) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET name = $2, product_name = $3, url = $4, price = $5,
		    is_available = $6, img_url = $7, date_checked = $8
		WHERE id = $1
	`, p.ID, p.Name, p.ProductName, p.URL, p.Price, p.IsAvailable, p.ImageURL, p.DateChecked)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Duplicate("product", p.URL)
		}
		return fmt.Errorf("updating product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("product", p.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("product", id)
	}
	return nil
}

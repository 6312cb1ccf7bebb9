package repository

import (
	"context"
	"database/sql"
	"fmt"

	"price-scout/internal/domain"
)

// PriceHistoryRepository defines the interface for price history reads
type PriceHistoryRepository interface {
	ListByProduct(ctx context.Context, productID int64) ([]*domain.PriceHistory, error)
}

type priceHistoryRepository struct {
	db *sql.DB
}

// NewPriceHistoryRepository creates a new instance of PriceHistoryRepository
func NewPriceHistoryRepository(db *sql.DB) PriceHistoryRepository {
	return &priceHistoryRepository{db: db}
}

// ListByProduct returns a product's price observations, oldest first
func (r *priceHistoryRepository) ListByProduct(ctx context.Context, productID int64) ([]*domain.PriceHistory, error) {
	query := `
		SELECT id, product_id, price, recorded_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY recorded_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	entries := []*domain.PriceHistory{}
	for rows.Next() {
		e := &domain.PriceHistory{}
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Price, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}
	return entries, nil
}

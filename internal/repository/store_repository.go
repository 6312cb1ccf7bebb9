package repository

import (
	"context"
	"database/sql"
	"fmt"

	"price-scout/internal/domain"
)

// StoreRepository defines the interface for store data access
type StoreRepository interface {
	Sync(ctx context.Context, stores []domain.Store) error
	List(ctx context.Context) ([]*domain.Store, error)
}

type storeRepository struct {
	db *sql.DB
}

// NewStoreRepository creates a new instance of StoreRepository
func NewStoreRepository(db *sql.DB) StoreRepository {
	return &storeRepository{db: db}
}

func (r *storeRepository) Sync(ctx context.Context, stores []domain.Store) error {
	query := `
		INSERT INTO stores (id, name, website, preferred)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, website = EXCLUDED.website, preferred = EXCLUDED.preferred
	`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range stores {
		if _, err := tx.ExecContext(ctx, query, s.ID, s.Name, s.Website, s.Preferred); err != nil {
			return fmt.Errorf("failed to sync store %d: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stores: %w", err)
	}
	return nil
}

func (r *storeRepository) List(ctx context.Context) ([]*domain.Store, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, website, preferred FROM stores ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	stores := []*domain.Store{}
	for rows.Next() {
		s := &domain.Store{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Website, &s.Preferred); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stores: %w", err)
	}
	return stores, nil
}

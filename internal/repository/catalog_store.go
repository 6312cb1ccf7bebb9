package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"price-scout/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrCatalogUnavailable means the catalog cannot be reached at all
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrDuplicateProduct   = errors.New("product with this store and link already exists")
)

const uniqueViolation = "23505"

// CatalogStore gives transactional access to the product catalog
type CatalogStore interface {
	Ping(ctx context.Context) error
	// WithinTx runs fn in one transaction, committing when fn returns nil
	WithinTx(ctx context.Context, fn func(tx CatalogTx) error) error
}

// CatalogTx is the set of catalog operations available inside a transaction
type CatalogTx interface {
	// FindProduct locks and returns the product with the natural key
	// (storeID, link), or ErrProductNotFound
	FindProduct(ctx context.Context, storeID int, link string) (*domain.Product, error)
	// InsertProduct stores a new product and sets its ID
	InsertProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error
	AppendPriceHistory(ctx context.Context, entry *domain.PriceHistory) error
	AppendNotification(ctx context.Context, notification *domain.Notification) error
}

type catalogStore struct {
	db *sql.DB
}

// NewCatalogStore creates a new instance of CatalogStore
func NewCatalogStore(db *sql.DB) CatalogStore {
	return &catalogStore{db: db}
}

func (s *catalogStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return nil
}

func (s *catalogStore) WithinTx(ctx context.Context, fn func(tx CatalogTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		// the caller went away; the catalog itself is fine
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrCatalogUnavailable, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&catalogTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type catalogTx struct {
	tx *sql.Tx
}

func (t *catalogTx) FindProduct(ctx context.Context, storeID int, link string) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.store_id = $1 AND p.link = $2
		FOR UPDATE
	`

	product, err := scanProduct(t.tx.QueryRowContext(ctx, query, storeID, link))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by key: %w", err)
	}
	return product, nil
}

func (t *catalogTx) InsertProduct(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (name, store_id, category_id, price, rating, link, image_url, condition, is_favorite, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := t.tx.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.StoreID,
		product.CategoryID,
		product.Price,
		product.Rating,
		product.Link,
		product.ImageURL,
		product.Condition,
		product.IsFavorite,
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateProduct
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// UpdateProduct writes the fields a merge may change
func (t *catalogTx) UpdateProduct(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET price = $2, rating = $3, image_url = $4, category_id = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := t.tx.ExecContext(
		ctx,
		query,
		product.ID,
		product.Price,
		product.Rating,
		product.ImageURL,
		product.CategoryID,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (t *catalogTx) AppendPriceHistory(ctx context.Context, entry *domain.PriceHistory) error {
	query := `
		INSERT INTO price_history (product_id, price, recorded_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if err := t.tx.QueryRowContext(ctx, query, entry.ProductID, entry.Price, entry.RecordedAt).Scan(&entry.ID); err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

func (t *catalogTx) AppendNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (product_id, message, price_change, old_price, new_price, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := t.tx.QueryRowContext(
		ctx,
		query,
		n.ProductID,
		n.Message,
		n.PriceChange,
		n.OldPrice,
		n.NewPrice,
		n.IsRead,
		n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"price-scout/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

const productColumns = `p.id, p.name, p.store_id, p.category_id, p.price, p.rating, p.link,
		p.image_url, p.condition, p.is_favorite, p.created_at, p.updated_at`

// ProductFilter narrows a local catalog search. Terms are matched
// accent-insensitively, any term suffices.
type ProductFilter struct {
	Terms    []string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Limit    int
}

// ClearStats counts the rows removed by ClearHistory
type ClearStats struct {
	Products      int64 `json:"products"`
	PriceHistory  int64 `json:"price_history"`
	Notifications int64 `json:"notifications"`
}

// ProductRepository defines the interface for catalog reads and maintenance
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error)
	Search(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
	ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Product, error)
	SetFavorite(ctx context.Context, id int64, favorite bool) error
	// Touch marks a product as checked without changing its price
	Touch(ctx context.Context, id int64, at time.Time) error
	ClearHistory(ctx context.Context) (*ClearStats, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, extra ...any) (*domain.Product, error) {
	product := &domain.Product{}
	dest := []any{
		&product.ID,
		&product.Name,
		&product.StoreID,
		&product.CategoryID,
		&product.Price,
		&product.Rating,
		&product.Link,
		&product.ImageURL,
		&product.Condition,
		&product.IsFavorite,
		&product.CreatedAt,
		&product.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return product, nil
}

// selectProducts runs a query selecting productColumns plus the store name
func (r *productRepository) selectProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		var storeName string
		product, err := scanProduct(rows, &storeName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		product.StoreName = storeName
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `, s.name
		FROM products p
		JOIN stores s ON s.id = p.store_id
		WHERE p.id = $1
	`

	var storeName string
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id), &storeName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	product.StoreName = storeName
	return product, nil
}

// FindByIDs retrieves the products that exist among ids, ordered by price
func (r *productRepository) FindByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT %s, s.name
		FROM products p
		JOIN stores s ON s.id = p.store_id
		WHERE p.id IN (%s)
		ORDER BY p.price ASC, p.id ASC
	`, productColumns, strings.Join(placeholders, ", "))

	products, err := r.selectProducts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find products by IDs: %w", err)
	}
	return products, nil
}

// Search filters the catalog by terms and price range. Rows matching more
// terms come first, then the cheapest.
func (r *productRepository) Search(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	orderBy := "p.price ASC, p.id ASC"
	if len(filter.Terms) > 0 {
		termConds := make([]string, 0, len(filter.Terms))
		hits := make([]string, 0, len(filter.Terms))
		for _, term := range filter.Terms {
			cond := "unaccent(p.name) ILIKE " + arg("%"+escapeLike(term)+"%")
			termConds = append(termConds, cond)
			hits = append(hits, "CASE WHEN "+cond+" THEN 1 ELSE 0 END")
		}
		conditions = append(conditions, "("+strings.Join(termConds, " OR ")+")")
		orderBy = "(" + strings.Join(hits, " + ") + ") DESC, " + orderBy
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "p.price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "p.price <= "+arg(*filter.MaxPrice))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}

	query := fmt.Sprintf(`
		SELECT %s, s.name
		FROM products p
		JOIN stores s ON s.id = p.store_id
		%s
		ORDER BY %s
		LIMIT %s
	`, productColumns, whereClause, orderBy, arg(limit))

	products, err := r.selectProducts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// ListStale returns products not updated since updatedBefore, oldest first
func (r *productRepository) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `, s.name
		FROM products p
		JOIN stores s ON s.id = p.store_id
		WHERE p.updated_at < $1
		ORDER BY p.updated_at ASC, p.id ASC
		LIMIT $2
	`

	products, err := r.selectProducts(ctx, query, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale products: %w", err)
	}
	return products, nil
}

func (r *productRepository) SetFavorite(ctx context.Context, id int64, favorite bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET is_favorite = $2 WHERE id = $1`, id, favorite)
	if err != nil {
		return fmt.Errorf("failed to set favorite: %w", err)
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

func (r *productRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch product: %w", err)
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

// ClearHistory removes every non-favorite product with its price history and
// notifications. Favorites and everything referencing them are kept.
func (r *productRepository) ClearHistory(ctx context.Context) (*ClearStats, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stats := &ClearStats{}
	steps := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM notifications WHERE product_id IN (SELECT id FROM products WHERE NOT is_favorite)`, &stats.Notifications},
		{`DELETE FROM price_history WHERE product_id IN (SELECT id FROM products WHERE NOT is_favorite)`, &stats.PriceHistory},
		{`DELETE FROM products WHERE NOT is_favorite`, &stats.Products},
	}

	for _, step := range steps {
		result, err := tx.ExecContext(ctx, step.query)
		if err != nil {
			return nil, fmt.Errorf("failed to clear history: %w", err)
		}
		if *step.count, err = result.RowsAffected(); err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit clear history: %w", err)
	}
	return stats, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

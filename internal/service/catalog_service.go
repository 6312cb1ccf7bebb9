package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"price-scout/internal/domain"
	"price-scout/internal/repository"
	"price-scout/internal/textnorm"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidPriceRange = errors.New("min_price must not exceed max_price")
	ErrNothingToCompare  = errors.New("no products found to compare")
)

const localSearchLimit = 500

// LocalSearchParams filters the persisted catalog
type LocalSearchParams struct {
	Query    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// LocalSearchResponse mirrors SearchResponse for catalog-only searches
type LocalSearchResponse struct {
	Query   string            `json:"query"`
	Total   int               `json:"total"`
	Results []*domain.Product `json:"results"`
}

// ComparedProduct is a product annotated relative to the cheapest one
type ComparedProduct struct {
	*domain.Product
	IsCheapest          bool            `json:"is_cheapest"`
	IsMostExpensive     bool            `json:"is_most_expensive"`
	PriceDiffFromMin    decimal.Decimal `json:"price_diff_from_min"`
	PriceDiffPercentage decimal.Decimal `json:"price_diff_percentage"`
}

// PriceRange is the spread of a comparison
type PriceRange struct {
	Min  decimal.Decimal `json:"min"`
	Max  decimal.Decimal `json:"max"`
	Diff decimal.Decimal `json:"diff"`
}

// Comparison is the result of comparing products side by side
type Comparison struct {
	Total      int                `json:"total"`
	Products   []*ComparedProduct `json:"products"`
	PriceRange PriceRange         `json:"price_range"`
}

// ProductHistory is a product with its price observations
type ProductHistory struct {
	Product *domain.Product        `json:"product"`
	History []*domain.PriceHistory `json:"history"`
}

// CatalogService defines the interface for catalog reads and maintenance
type CatalogService interface {
	Search(ctx context.Context, params LocalSearchParams) (*LocalSearchResponse, error)
	Compare(ctx context.Context, ids []int64) (*Comparison, error)
	History(ctx context.Context, productID int64) (*ProductHistory, error)
	SetFavorite(ctx context.Context, productID int64, favorite bool) error
	ClearHistory(ctx context.Context) (*repository.ClearStats, error)
	Categories(ctx context.Context) ([]*domain.Category, error)
	Stores(ctx context.Context) ([]*domain.Store, error)
}

type catalogService struct {
	products   repository.ProductRepository
	history    repository.PriceHistoryRepository
	categories repository.CategoryRepository
	stores     repository.StoreRepository
	logger     *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	history repository.PriceHistoryRepository,
	categories repository.CategoryRepository,
	stores repository.StoreRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		products:   products,
		history:    history,
		categories: categories,
		stores:     stores,
		logger:     logger,
	}
}

// Search matches any query token, then orders by the number of tokens a name
// contains and by price. Without a query it orders by price only.
func (s *catalogService) Search(ctx context.Context, params LocalSearchParams) (*LocalSearchResponse, error) {
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return nil, ErrInvalidPriceRange
	}

	terms := uniqueStrings(textnorm.Tokens(params.Query))
	candidates, err := s.products.Search(ctx, repository.ProductFilter{
		Terms:    terms,
		MinPrice: params.MinPrice,
		MaxPrice: params.MaxPrice,
		Limit:    localSearchLimit,
	})
	if err != nil {
		return nil, err
	}

	results := candidates
	if len(terms) > 0 {
		type scored struct {
			product *domain.Product
			score   int
		}
		matches := make([]scored, 0, len(candidates))
		for _, p := range candidates {
			name := textnorm.Normalize(p.Name)
			score := 0
			for _, term := range terms {
				if strings.Contains(name, term) {
					score++
				}
			}
			if score > 0 {
				matches = append(matches, scored{product: p, score: score})
			}
		}
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].score != matches[j].score {
				return matches[i].score > matches[j].score
			}
			return matches[i].product.Price.LessThan(matches[j].product.Price)
		})

		results = make([]*domain.Product, len(matches))
		for i, m := range matches {
			results[i] = m.product
		}
	}

	return &LocalSearchResponse{
		Query:   params.Query,
		Total:   len(results),
		Results: results,
	}, nil
}

func (s *catalogService) Compare(ctx context.Context, ids []int64) (*Comparison, error) {
	products, err := s.products.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNothingToCompare
	}

	minPrice, maxPrice := products[0].Price, products[0].Price
	for _, p := range products[1:] {
		minPrice = decimal.Min(minPrice, p.Price)
		maxPrice = decimal.Max(maxPrice, p.Price)
	}

	hundred := decimal.NewFromInt(100)
	compared := make([]*ComparedProduct, len(products))
	for i, p := range products {
		diff := p.Price.Sub(minPrice)
		pct := decimal.Zero
		if minPrice.IsPositive() {
			pct = diff.Div(minPrice).Mul(hundred).Round(2)
		}
		compared[i] = &ComparedProduct{
			Product:             p,
			IsCheapest:          p.Price.Equal(minPrice),
			IsMostExpensive:     p.Price.Equal(maxPrice),
			PriceDiffFromMin:    diff,
			PriceDiffPercentage: pct,
		}
	}

	return &Comparison{
		Total:    len(compared),
		Products: compared,
		PriceRange: PriceRange{
			Min:  minPrice,
			Max:  maxPrice,
			Diff: maxPrice.Sub(minPrice),
		},
	}, nil
}

func (s *catalogService) History(ctx context.Context, productID int64) (*ProductHistory, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	history, err := s.history.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &ProductHistory{Product: product, History: history}, nil
}

func (s *catalogService) SetFavorite(ctx context.Context, productID int64, favorite bool) error {
	return s.products.SetFavorite(ctx, productID, favorite)
}

func (s *catalogService) ClearHistory(ctx context.Context) (*repository.ClearStats, error) {
	stats, err := s.products.ClearHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Info("History cleared",
		zap.Int64("products", stats.Products),
		zap.Int64("price_history", stats.PriceHistory),
		zap.Int64("notifications", stats.Notifications),
	)
	return stats, nil
}

func (s *catalogService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *catalogService) Stores(ctx context.Context) ([]*domain.Store, error) {
	return s.stores.List(ctx)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func uniqueIDs(in []int64) []int64 {
	seen := make(map[int64]bool, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

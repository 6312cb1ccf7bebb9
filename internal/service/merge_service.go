package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"price-scout/internal/category"
	"price-scout/internal/domain"
	"price-scout/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidListing      = errors.New("invalid listing")
	ErrPersistenceConflict = errors.New("persistence conflict")
)

// MergeResult summarizes one merge batch
type MergeResult struct {
	// Products are the merged products in input order
	Products  []*domain.Product `json:"-"`
	Inserted  int               `json:"inserted"`
	Updated   int               `json:"updated"`
	Unchanged int               `json:"unchanged"`
	Rejected  int               `json:"rejected"`
	Failed    int               `json:"failed"`
	Notified  int               `json:"notified"`
}

// MergeService reconciles listings with the persisted catalog
type MergeService interface {
	// Merge upserts listings with the configured notification threshold.
	// Only ErrCatalogUnavailable aborts the batch.
	Merge(ctx context.Context, listings []domain.Listing, query string) (*MergeResult, error)
	MergeWithThreshold(ctx context.Context, listings []domain.Listing, query string, threshold decimal.Decimal) (*MergeResult, error)
}

type mergeOutcome int

const (
	outcomeInserted mergeOutcome = iota
	outcomeUpdated
	outcomeUnchanged
)

type mergeService struct {
	store      repository.CatalogStore
	classifier *category.Classifier
	threshold  decimal.Decimal
	logger     *zap.Logger
	now        func() time.Time
}

// NewMergeService creates a new instance of MergeService
func NewMergeService(
	store repository.CatalogStore,
	classifier *category.Classifier,
	threshold decimal.Decimal,
	logger *zap.Logger,
) MergeService {
	return &mergeService{
		store:      store,
		classifier: classifier,
		threshold:  threshold,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *mergeService) Merge(ctx context.Context, listings []domain.Listing, query string) (*MergeResult, error) {
	return s.MergeWithThreshold(ctx, listings, query, s.threshold)
}

func (s *mergeService) MergeWithThreshold(ctx context.Context, listings []domain.Listing, query string, threshold decimal.Decimal) (*MergeResult, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, err
	}

	queryCategory := s.classifier.Classify(query)
	result := &MergeResult{Products: []*domain.Product{}}

	for _, listing := range listings {
		listing = canonicalListing(listing)
		if err := validateListing(listing); err != nil {
			result.Rejected++
			s.logger.Debug("Listing rejected",
				zap.String("name", listing.Name),
				zap.Int("store_id", listing.StoreID),
				zap.Error(err),
			)
			continue
		}

		categoryID := listing.CategoryID
		if categoryID == domain.Uncategorized {
			categoryID = queryCategory
		}

		product, outcome, notified, err := s.mergeOne(ctx, listing, categoryID, threshold)
		if err != nil {
			if errors.Is(err, repository.ErrCatalogUnavailable) {
				s.logger.Error("Catalog unavailable, aborting merge", zap.Error(err))
				return nil, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.Failed++
			s.logger.Warn("Failed to merge listing",
				zap.String("link", listing.Link),
				zap.Int("store_id", listing.StoreID),
				zap.Error(fmt.Errorf("%w: %w", ErrPersistenceConflict, err)),
			)
			continue
		}

		switch outcome {
		case outcomeInserted:
			result.Inserted++
		case outcomeUpdated:
			result.Updated++
		case outcomeUnchanged:
			result.Unchanged++
		}
		if notified {
			result.Notified++
		}
		result.Products = append(result.Products, product)
	}

	s.logger.Info("Merge completed",
		zap.String("query", query),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("rejected", result.Rejected),
		zap.Int("failed", result.Failed),
		zap.Int("notified", result.Notified),
	)
	return result, nil
}

// mergeOne applies a single listing inside its own transaction
func (s *mergeService) mergeOne(
	ctx context.Context,
	listing domain.Listing,
	categoryID int,
	threshold decimal.Decimal,
) (product *domain.Product, outcome mergeOutcome, notified bool, err error) {
	err = s.store.WithinTx(ctx, func(tx repository.CatalogTx) error {
		now := s.now()

		existing, err := tx.FindProduct(ctx, listing.StoreID, listing.Link)
		if errors.Is(err, repository.ErrProductNotFound) {
			product = newProductFromListing(listing, categoryID, now)
			if err := tx.InsertProduct(ctx, product); err != nil {
				return err
			}
			outcome = outcomeInserted
			return tx.AppendPriceHistory(ctx, &domain.PriceHistory{
				ProductID:  product.ID,
				Price:      product.Price,
				RecordedAt: now,
			})
		}
		if err != nil {
			return err
		}

		product = existing
		if existing.Price.Equal(listing.Price) {
			outcome = outcomeUnchanged
			return nil
		}

		oldPrice := existing.Price
		existing.Price = listing.Price
		existing.Rating = listing.Rating
		if listing.ImageURL != "" {
			existing.ImageURL = listing.ImageURL
		}
		existing.CategoryID = categoryRef(categoryID)
		existing.UpdatedAt = now

		if err := tx.UpdateProduct(ctx, existing); err != nil {
			return err
		}
		outcome = outcomeUpdated

		if err := tx.AppendPriceHistory(ctx, &domain.PriceHistory{
			ProductID:  existing.ID,
			Price:      listing.Price,
			RecordedAt: now,
		}); err != nil {
			return err
		}

		delta := listing.Price.Sub(oldPrice)
		if delta.Abs().LessThanOrEqual(threshold) {
			return nil
		}
		notified = true
		return tx.AppendNotification(ctx, &domain.Notification{
			ProductID:   existing.ID,
			Message:     priceChangeMessage(existing.Name, oldPrice, listing.Price),
			PriceChange: delta,
			OldPrice:    oldPrice,
			NewPrice:    listing.Price,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, 0, false, err
	}
	return product, outcome, notified, nil
}

// priceScale matches the NUMERIC(15,2) price columns
const priceScale = 2

// canonicalListing brings a listing to the form it is stored in, so that
// re-merging the same offer compares equal
func canonicalListing(l domain.Listing) domain.Listing {
	l.Link = strings.TrimSpace(l.Link)
	l.Price = l.Price.Round(priceScale)
	return l
}

func validateListing(l domain.Listing) error {
	switch {
	case strings.TrimSpace(l.Name) == "":
		return fmt.Errorf("%w: missing name", ErrInvalidListing)
	case l.Link == "":
		return fmt.Errorf("%w: missing link", ErrInvalidListing)
	case !l.Price.IsPositive():
		return fmt.Errorf("%w: non-positive price %s", ErrInvalidListing, l.Price)
	case l.StoreID <= 0:
		return fmt.Errorf("%w: missing store", ErrInvalidListing)
	}
	return nil
}

func newProductFromListing(l domain.Listing, categoryID int, now time.Time) *domain.Product {
	condition := l.Condition
	if condition == "" {
		condition = domain.ConditionUnknown
	}
	return &domain.Product{
		Name:       strings.TrimSpace(l.Name),
		StoreID:    l.StoreID,
		CategoryID: categoryRef(categoryID),
		Price:      l.Price,
		Rating:     l.Rating,
		Link:       l.Link,
		ImageURL:   l.ImageURL,
		Condition:  condition,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// categoryRef maps Uncategorized to NULL
func categoryRef(id int) *int {
	if id == domain.Uncategorized {
		return nil
	}
	return &id
}

// priceChangeMessage renders e.g. "Giá sản phẩm iPhone 15 đã giảm 4.3%"
func priceChangeMessage(name string, oldPrice, newPrice decimal.Decimal) string {
	direction := "tăng"
	if newPrice.LessThan(oldPrice) {
		direction = "giảm"
	}
	percent := newPrice.Sub(oldPrice).Abs().Div(oldPrice).Mul(decimal.NewFromInt(100))
	return fmt.Sprintf("Giá sản phẩm %s đã %s %s%%", name, direction, percent.StringFixed(1))
}

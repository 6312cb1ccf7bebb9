package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"price-scout/internal/domain"
	"price-scout/internal/repository"
	"price-scout/internal/textnorm"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefreshOptions configures the stale price refresh
type RefreshOptions struct {
	BatchSize       int
	StaleAfter      time.Duration
	NotifyThreshold decimal.Decimal
}

// RefreshReport summarizes one refresh run
type RefreshReport struct {
	Checked   int `json:"checked"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Missing   int `json:"missing"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
	Notified  int `json:"notified"`
}

// RefreshService re-crawls the catalog's stalest products
type RefreshService interface {
	RefreshStale(ctx context.Context) (*RefreshReport, error)
}

type refreshService struct {
	products   repository.ProductRepository
	aggregator Aggregator
	merger     MergeService
	opts       RefreshOptions
	logger     *zap.Logger
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// NewRefreshService creates a new instance of RefreshService
func NewRefreshService(
	products repository.ProductRepository,
	aggregator Aggregator,
	merger MergeService,
	opts RefreshOptions,
	logger *zap.Logger,
) RefreshService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 24 * time.Hour
	}
	return &refreshService{
		products:   products,
		aggregator: aggregator,
		merger:     merger,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		newBackOff: func() backoff.BackOff {
			// three attempts in total
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
		},
	}
}

// RefreshStale re-prices up to BatchSize stale products. Every checked product
// that does not fail is touched, so products no source returns any more move
// to the back of the queue; one failing product never stops the run.
func (s *refreshService) RefreshStale(ctx context.Context) (*RefreshReport, error) {
	cutoff := s.now().Add(-s.opts.StaleAfter)

	var stale []*domain.Product
	err := backoff.RetryNotify(
		func() error {
			var err error
			stale, err = s.products.ListStale(ctx, cutoff, s.opts.BatchSize)
			return err
		},
		backoff.WithContext(s.newBackOff(), ctx),
		func(err error, wait time.Duration) {
			s.logger.Warn("Listing stale products failed, retrying", zap.Duration("wait", wait), zap.Error(err))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale products: %w", err)
	}

	report := &RefreshReport{}
	if len(stale) == 0 {
		s.logger.Info("No products need refreshing")
		return report, nil
	}

	for _, product := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		if err := s.refreshOne(ctx, product, report); err != nil {
			if errors.Is(err, repository.ErrCatalogUnavailable) {
				return report, err
			}
			report.Failed++
			s.logger.Error("Failed to refresh product",
				zap.Int64("product_id", product.ID),
				zap.String("name", product.Name),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Refresh completed",
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("missing", report.Missing),
		zap.Int("rejected", report.Rejected),
		zap.Int("failed", report.Failed),
		zap.Int("notified", report.Notified),
	)
	return report, nil
}

func (s *refreshService) refreshOne(ctx context.Context, product *domain.Product, report *RefreshReport) error {
	listings := s.aggregator.Aggregate(ctx, product.Name)

	match, ok := matchListing(product, listings)
	if !ok {
		report.Missing++
		s.logger.Debug("Product not found in any source", zap.Int64("product_id", product.ID))
		return s.products.Touch(ctx, product.ID, s.now())
	}

	res, err := s.merger.MergeWithThreshold(ctx, []domain.Listing{match}, product.Name, s.opts.NotifyThreshold)
	if err != nil {
		return err
	}

	switch {
	case res.Failed > 0:
		return ErrPersistenceConflict
	case res.Updated > 0:
		report.Updated++
	case res.Unchanged > 0:
		report.Unchanged++
		return s.products.Touch(ctx, product.ID, s.now())
	case res.Rejected > 0:
		report.Rejected++
		s.logger.Warn("Source returned an invalid listing for product",
			zap.Int64("product_id", product.ID),
			zap.String("link", match.Link),
		)
		return s.products.Touch(ctx, product.ID, s.now())
	}
	report.Notified += res.Notified
	return nil
}

// matchListing finds the product among fresh listings of its store, first by
// link, then by normalized name. A name match is re-keyed to the product link.
func matchListing(product *domain.Product, listings []domain.Listing) (domain.Listing, bool) {
	name := textnorm.Normalize(product.Name)
	var byName *domain.Listing

	for i := range listings {
		l := listings[i]
		if l.StoreID != product.StoreID {
			continue
		}
		if l.Link == product.Link {
			return l, true
		}
		if byName == nil && textnorm.Normalize(l.Name) == name {
			byName = &listings[i]
		}
	}

	if byName == nil {
		return domain.Listing{}, false
	}
	match := *byName
	match.Link = product.Link
	return match, true
}

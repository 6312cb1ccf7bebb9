package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"price-scout/internal/category"
	"price-scout/internal/domain"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// SourceReport is the outcome of one crawler during an aggregation
type SourceReport struct {
	Source   string        `json:"source"`
	StoreID  int           `json:"store_id"`
	Listings int           `json:"listings"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Result holds the merged listings of every source plus per-source reports
type Result struct {
	Listings []domain.Listing
	Reports  []SourceReport
}

// Orchestrator runs every configured crawler concurrently, one goroutine per
// crawler. A failing source contributes nothing and never aborts the others.
type Orchestrator struct {
	crawlers   []Crawler
	classifier *category.Classifier
	logger     *zap.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(crawlers []Crawler, classifier *category.Classifier, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		crawlers:   crawlers,
		classifier: classifier,
		logger:     logger,
	}
}

// Sources returns the configured crawlers
func (o *Orchestrator) Sources() []Crawler {
	return o.crawlers
}

// Aggregate returns the listings of all sources for query. Order across
// sources is unspecified.
func (o *Orchestrator) Aggregate(ctx context.Context, query string) []domain.Listing {
	return o.AggregateWithReport(ctx, query).Listings
}

// AggregateWithReport is Aggregate plus the per-source outcome. It returns
// only after every crawler has finished.
func (o *Orchestrator) AggregateWithReport(ctx context.Context, query string) *Result {
	var (
		mu  sync.Mutex
		res = &Result{}
		wg  conc.WaitGroup
	)

	for _, c := range o.crawlers {
		c := c
		wg.Go(func() {
			start := time.Now()
			listings, err := o.fetch(ctx, c, query)
			report := SourceReport{
				Source:   c.Name(),
				StoreID:  c.StoreID(),
				Listings: len(listings),
				Duration: time.Since(start),
				Err:      err,
			}

			if err != nil {
				o.logger.Warn("Source crawl failed",
					zap.String("source", c.Name()),
					zap.String("query", query),
					zap.Duration("duration", report.Duration),
					zap.Error(err),
				)
			} else {
				o.logger.Debug("Source crawl completed",
					zap.String("source", c.Name()),
					zap.Int("listings", len(listings)),
					zap.Duration("duration", report.Duration),
				)
			}

			tagged := o.tag(c.StoreID(), listings)

			mu.Lock()
			res.Listings = append(res.Listings, tagged...)
			res.Reports = append(res.Reports, report)
			mu.Unlock()
		})
	}
	wg.Wait()

	o.logger.Info("Aggregation completed",
		zap.String("query", query),
		zap.Int("sources", len(o.crawlers)),
		zap.Int("listings", len(res.Listings)),
	)
	return res
}

// fetch runs one crawler, turning errors and panics into ErrSourceUnavailable
func (o *Orchestrator) fetch(ctx context.Context, c Crawler, query string) (listings []domain.Listing, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		listings, err = c.Fetch(ctx, query)
	})
	if r := pc.Recovered(); r != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, c.Name(), r.AsError())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, c.Name(), err)
	}
	return listings, nil
}

func (o *Orchestrator) tag(storeID int, listings []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		l.StoreID = storeID
		l.CategoryID = o.classifier.Classify(l.Name)
		if l.Condition == "" {
			l.Condition = domain.ConditionUnknown
		}
		out = append(out, l)
	}
	return out
}

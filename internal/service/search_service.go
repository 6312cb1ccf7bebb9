package service

import (
	"context"
	"strings"

	"price-scout/internal/domain"
	"price-scout/internal/ranking"
	"price-scout/internal/textnorm"

	"go.uber.org/zap"
)

// DefaultMaxResults caps how many ranked listings one search merges
const DefaultMaxResults = 50

// Aggregator collects raw listings for a query from all sources
type Aggregator interface {
	Aggregate(ctx context.Context, query string) []domain.Listing
}

// SearchResponse is the result of a live search
type SearchResponse struct {
	Query   string            `json:"query"`
	Total   int               `json:"total"`
	Results []*domain.Product `json:"results"`
}

// SearchService runs the crawl, rank and merge pipeline
type SearchService interface {
	AggregateAndMerge(ctx context.Context, query string) (*SearchResponse, error)
	RankOnly(listings []domain.Listing, query string) []domain.Listing
}

type searchService struct {
	aggregator Aggregator
	ranker     *ranking.Ranker
	merger     MergeService
	maxResults int
	logger     *zap.Logger
}

// NewSearchService creates a new instance of SearchService
func NewSearchService(
	aggregator Aggregator,
	ranker *ranking.Ranker,
	merger MergeService,
	maxResults int,
	logger *zap.Logger,
) SearchService {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &searchService{
		aggregator: aggregator,
		ranker:     ranker,
		merger:     merger,
		maxResults: maxResults,
		logger:     logger,
	}
}

// AggregateAndMerge degrades to fewer results when sources fail and only
// returns an error when the catalog is unreachable
func (s *searchService) AggregateAndMerge(ctx context.Context, query string) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	resp := &SearchResponse{Query: query, Results: []*domain.Product{}}
	if textnorm.Normalize(query) == "" {
		return resp, nil
	}

	listings := s.aggregator.Aggregate(ctx, query)
	ranked := s.RankOnly(listings, query)
	if len(ranked) > s.maxResults {
		ranked = ranked[:s.maxResults]
	}

	merged, err := s.merger.Merge(ctx, ranked, query)
	if err != nil {
		return nil, err
	}

	resp.Results = merged.Products
	resp.Total = len(merged.Products)

	s.logger.Info("Search completed",
		zap.String("query", query),
		zap.Int("raw", len(listings)),
		zap.Int("ranked", len(ranked)),
		zap.Int("results", resp.Total),
	)
	return resp, nil
}

func (s *searchService) RankOnly(listings []domain.Listing, query string) []domain.Listing {
	return s.ranker.Rank(listings, query)
}

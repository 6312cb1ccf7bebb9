package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"price-scout/internal/category"
	"price-scout/internal/domain"
	"price-scout/internal/ranking"
	"price-scout/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSearch(agg Aggregator, store *memCatalog, maxResults int) SearchService {
	tables := testTables()
	classifier := category.NewClassifier(tables.Categories)
	ranker := ranking.NewRanker(classifier, tables.Exclusions, tables.PreferredStores())
	return NewSearchService(agg, ranker, newTestMerger(store, 0), maxResults, zap.NewNop())
}

func TestSearch_RanksAndMerges(t *testing.T) {
	agg := &staticAggregator{listings: []domain.Listing{
		offer(1, "Ốp lưng iPhone 15", 150000),
		offer(1, "iPhone 15 128GB", 20500000),
		offer(3, "iPhone 15 128GB", 20000000),
		offer(5, "Tai nghe Bluetooth", 300000),
	}}
	store := newMemCatalog()
	svc := newTestSearch(agg, store, 0)

	resp, err := svc.AggregateAndMerge(context.Background(), "  iphone 15 ")
	require.NoError(t, err)

	assert.Equal(t, "iphone 15", resp.Query)
	assert.Equal(t, []string{"iphone 15"}, agg.queries)
	require.Equal(t, 2, resp.Total)
	// preferred store first
	assert.Equal(t, 3, resp.Results[0].StoreID)
	assert.Equal(t, 1, resp.Results[1].StoreID)
	assert.Len(t, store.products, 2)
}

func TestSearch_CapsResults(t *testing.T) {
	listings := make([]domain.Listing, 0, 70)
	for i := 0; i < 70; i++ {
		listings = append(listings, domain.Listing{
			Name:    fmt.Sprintf("iPhone 15 bản %d", i),
			StoreID: i%5 + 1,
			Price:   decimal.NewFromInt(int64(19000000 + i)),
			Link:    fmt.Sprintf("https://example.vn/%d", i),
		})
	}
	store := newMemCatalog()
	svc := newTestSearch(&staticAggregator{listings: listings}, store, 0)

	resp, err := svc.AggregateAndMerge(context.Background(), "iphone 15")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxResults, resp.Total)
	assert.Len(t, store.products, DefaultMaxResults)
}

func TestSearch_EmptyQuerySkipsCrawl(t *testing.T) {
	agg := &staticAggregator{listings: []domain.Listing{offer(1, "iPhone 15", 1)}}
	svc := newTestSearch(agg, newMemCatalog(), 0)

	resp, err := svc.AggregateAndMerge(context.Background(), " !! ")
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, agg.queries)
}

func TestSearch_NoListingsIsNotAnError(t *testing.T) {
	svc := newTestSearch(&staticAggregator{}, newMemCatalog(), 0)

	resp, err := svc.AggregateAndMerge(context.Background(), "iphone 15")
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Results)
}

func TestSearch_CatalogUnavailable(t *testing.T) {
	store := newMemCatalog()
	store.pingErr = repository.ErrCatalogUnavailable
	svc := newTestSearch(&staticAggregator{listings: []domain.Listing{offer(1, "iPhone 15", 1)}}, store, 0)

	_, err := svc.AggregateAndMerge(context.Background(), "iphone 15")
	assert.True(t, errors.Is(err, repository.ErrCatalogUnavailable))
}

func TestSearch_RankOnlyDoesNotPersist(t *testing.T) {
	store := newMemCatalog()
	svc := newTestSearch(&staticAggregator{}, store, 0)

	got := svc.RankOnly([]domain.Listing{
		offer(1, "Cáp sạc iPhone 15", 90000),
		offer(4, "iPhone 15 Plus", 23000000),
	}, "iphone 15")

	require.Len(t, got, 1)
	assert.Equal(t, "iPhone 15 Plus", got[0].Name)
	assert.Empty(t, store.products)
}

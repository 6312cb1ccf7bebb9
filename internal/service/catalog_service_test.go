package service

import (
	"context"
	"errors"
	"testing"

	"price-scout/internal/domain"
	"price-scout/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memHistory struct{ catalog *memCatalog }

func (h *memHistory) ListByProduct(ctx context.Context, productID int64) ([]*domain.PriceHistory, error) {
	rows := h.catalog.historyFor(productID)
	out := make([]*domain.PriceHistory, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

type staticReference struct {
	categories []*domain.Category
}

func (r *staticReference) Sync(ctx context.Context, _ []domain.Category) error { return nil }

func (r *staticReference) List(ctx context.Context) ([]*domain.Category, error) {
	return r.categories, nil
}

type staticStores struct{ stores []*domain.Store }

func (r *staticStores) Sync(ctx context.Context, _ []domain.Store) error { return nil }

func (r *staticStores) List(ctx context.Context) ([]*domain.Store, error) { return r.stores, nil }

type catalogFixture struct {
	store    *memCatalog
	products *memProducts
	svc      CatalogService
}

func newCatalogFixture(t *testing.T, listings ...domain.Listing) *catalogFixture {
	t.Helper()
	store := newMemCatalog()
	if len(listings) > 0 {
		_, err := newTestMerger(store, 0).Merge(context.Background(), listings, "")
		require.NoError(t, err)
	}
	products := &memProducts{catalog: store}
	svc := NewCatalogService(
		products,
		&memHistory{catalog: store},
		&staticReference{categories: []*domain.Category{{ID: 1, Name: "Điện thoại"}}},
		&staticStores{stores: []*domain.Store{{ID: 3, Name: "Thế Giới Di Động", Preferred: true}}},
		zap.NewNop(),
	)
	return &catalogFixture{store: store, products: products, svc: svc}
}

func productNames(ps []*domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestCatalogSearch_OrdersByMatchedTermsThenPrice(t *testing.T) {
	f := newCatalogFixture(t,
		offer(1, "Samsung Galaxy S24 Ultra", 30000000),
		offer(3, "Điện thoại Samsung Galaxy S24", 20000000),
		offer(4, "Samsung Galaxy A55", 9000000),
		offer(2, "Tivi Samsung 55 inch", 12000000),
		offer(5, "iPhone 15", 19000000),
	)

	resp, err := f.svc.Search(context.Background(), LocalSearchParams{Query: "galaxy S24"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Điện thoại Samsung Galaxy S24",
		"Samsung Galaxy S24 Ultra",
		"Samsung Galaxy A55",
	}, productNames(resp.Results))
	assert.Equal(t, 3, resp.Total)
}

func TestCatalogSearch_AccentInsensitive(t *testing.T) {
	f := newCatalogFixture(t, offer(2, "Máy lạnh Daikin Inverter", 10000000))

	resp, err := f.svc.Search(context.Background(), LocalSearchParams{Query: "may lanh"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Máy lạnh Daikin Inverter"}, productNames(resp.Results))
}

func TestCatalogSearch_PriceRangeWithoutQuery(t *testing.T) {
	f := newCatalogFixture(t,
		offer(1, "A", 100),
		offer(1, "B", 300),
		offer(1, "C", 200),
		offer(1, "D", 500),
	)

	resp, err := f.svc.Search(context.Background(), LocalSearchParams{MinPrice: decPtr(150), MaxPrice: decPtr(300)})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, productNames(resp.Results))
}

func TestCatalogSearch_InvalidRange(t *testing.T) {
	f := newCatalogFixture(t)

	_, err := f.svc.Search(context.Background(), LocalSearchParams{MinPrice: decPtr(500), MaxPrice: decPtr(100)})
	assert.True(t, errors.Is(err, ErrInvalidPriceRange))
}

func TestCatalogCompare(t *testing.T) {
	f := newCatalogFixture(t,
		offer(1, "iPhone 15 Shopee", 20000000),
		offer(3, "iPhone 15 TGDĐ", 21000000),
		offer(4, "iPhone 15 CellphoneS", 22500000),
	)

	cmp, err := f.svc.Compare(context.Background(), []int64{3, 1, 2, 2, 99})
	require.NoError(t, err)

	require.Equal(t, 3, cmp.Total)
	assert.True(t, cmp.PriceRange.Min.Equal(decimal.NewFromInt(20000000)))
	assert.True(t, cmp.PriceRange.Max.Equal(decimal.NewFromInt(22500000)))
	assert.True(t, cmp.PriceRange.Diff.Equal(decimal.NewFromInt(2500000)))

	cheapest := cmp.Products[0]
	assert.True(t, cheapest.IsCheapest)
	assert.False(t, cheapest.IsMostExpensive)
	assert.True(t, cheapest.PriceDiffFromMin.IsZero())

	mid := cmp.Products[1]
	assert.True(t, mid.PriceDiffFromMin.Equal(decimal.NewFromInt(1000000)))
	assert.Equal(t, "5", mid.PriceDiffPercentage.String())

	top := cmp.Products[2]
	assert.True(t, top.IsMostExpensive)
	assert.Equal(t, "12.5", top.PriceDiffPercentage.String())
}

func TestCatalogCompare_NothingFound(t *testing.T) {
	f := newCatalogFixture(t)

	_, err := f.svc.Compare(context.Background(), []int64{1, 2})
	assert.True(t, errors.Is(err, ErrNothingToCompare))
}

func TestCatalogHistory(t *testing.T) {
	l := offer(3, "iPhone 15", 20000000)
	f := newCatalogFixture(t, l)
	l.Price = decimal.NewFromInt(19000000)
	_, err := newTestMerger(f.store, 0).Merge(context.Background(), []domain.Listing{l}, "iphone")
	require.NoError(t, err)

	h, err := f.svc.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15", h.Product.Name)
	assert.Len(t, h.History, 2)

	_, err = f.svc.History(context.Background(), 42)
	assert.True(t, errors.Is(err, repository.ErrProductNotFound))
}

func TestCatalogClearHistoryKeepsFavorites(t *testing.T) {
	f := newCatalogFixture(t, offer(1, "A", 100), offer(1, "B", 200))
	require.NoError(t, f.svc.SetFavorite(context.Background(), 2, true))

	stats, err := f.svc.ClearHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Products)
	assert.Equal(t, int64(1), stats.PriceHistory)

	remaining := f.products.all()
	require.Len(t, remaining, 1)
	assert.Equal(t, "B", remaining[0].Name)
}

func TestCatalogReferenceData(t *testing.T) {
	f := newCatalogFixture(t)

	cats, err := f.svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	stores, err := f.svc.Stores(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.True(t, stores[0].Preferred)
}

// Feature: price-scout, Property: compare annotations are consistent with the price range
func TestProperty_CompareAnnotations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("cheapest flags and diffs agree with the price range", prop.ForAll(
		func(prices []int64) bool {
			listings := make([]domain.Listing, len(prices))
			ids := make([]int64, len(prices))
			for i, p := range prices {
				listings[i] = domain.Listing{
					Name:    "Phone",
					StoreID: 1,
					Price:   decimal.NewFromInt(p),
					Link:    "https://example.vn/" + decimal.NewFromInt(int64(i)).String(),
				}
				ids[i] = int64(i + 1)
			}
			f := newCatalogFixture(t, listings...)

			cmp, err := f.svc.Compare(context.Background(), ids)
			if err != nil {
				return false
			}
			if cmp.Total != len(prices) {
				return false
			}
			for _, p := range cmp.Products {
				if p.IsCheapest != p.PriceDiffFromMin.IsZero() {
					return false
				}
				if p.IsMostExpensive != p.Price.Equal(cmp.PriceRange.Max) {
					return false
				}
				if !p.Price.Sub(cmp.PriceRange.Min).Equal(p.PriceDiffFromMin) {
					return false
				}
				if p.PriceDiffPercentage.IsNegative() {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.Int64Range(1, 10_000_000)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"price-scout/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productNames(ps []*domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestProductRepository_SearchIsAccentInsensitive(t *testing.T) {
	resetCatalog(t)
	store := NewCatalogStore(testDB)
	insertProduct(t, store, newProduct(3, "Điện thoại iPhone 15", "https://tgdd/1", 22000000))
	insertProduct(t, store, newProduct(2, "Tai nghe AirPods", "https://dmx/2", 4000000))
	insertProduct(t, store, newProduct(4, "Laptop Dell", "https://cps/3", 18000000))

	repo := NewProductRepository(testDB)
	got, err := repo.Search(context.Background(), ProductFilter{Terms: []string{"dien", "tai"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tai nghe AirPods", "Điện thoại iPhone 15"}, productNames(got))
}

func TestProductRepository_SearchLimitKeepsBestMatches(t *testing.T) {
	resetCatalog(t)
	store := NewCatalogStore(testDB)
	for i := 0; i < 6; i++ {
		insertProduct(t, store, newProduct(5, fmt.Sprintf("Ốp lưng iPhone %d", i), fmt.Sprintf("https://chotot/op%d", i), int64(50000+i)))
	}
	insertProduct(t, store, newProduct(3, "iPhone 15 Pro Max 256GB", "https://tgdd/15pm", 30000000))
	insertProduct(t, store, newProduct(3, "iPhone 15 128GB", "https://tgdd/15", 20000000))

	got, err := NewProductRepository(testDB).Search(context.Background(), ProductFilter{
		Terms: []string{"iphone", "15", "pro", "max"},
		Limit: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"iPhone 15 Pro Max 256GB", "iPhone 15 128GB", "Ốp lưng iPhone 0"}, productNames(got))
}

func TestProductRepository_SearchPriceRange(t *testing.T) {
	resetCatalog(t)
	store := NewCatalogStore(testDB)
	for i, price := range []int64{1000000, 5000000, 9000000, 20000000} {
		insertProduct(t, store, newProduct(5, fmt.Sprintf("Tivi %d", i), fmt.Sprintf("https://chotot/%d", i), price))
	}

	lo := decimal.NewFromInt(2000000)
	hi := decimal.NewFromInt(9000000)
	got, err := NewProductRepository(testDB).Search(context.Background(), ProductFilter{MinPrice: &lo, MaxPrice: &hi})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tivi 1", "Tivi 2"}, productNames(got))
}

func TestProductRepository_SearchEscapesWildcards(t *testing.T) {
	resetCatalog(t)
	insertProduct(t, NewCatalogStore(testDB), newProduct(1, "Sạc nhanh 20W", "https://shopee/1", 200000))

	got, err := NewProductRepository(testDB).Search(context.Background(), ProductFilter{Terms: []string{"%"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProductRepository_ListStale(t *testing.T) {
	resetCatalog(t)
	store := NewCatalogStore(testDB)
	now := time.Now().UTC()

	for i, age := range []time.Duration{48 * time.Hour, time.Hour, 30 * time.Hour} {
		p := newProduct(3, fmt.Sprintf("Phone %d", i), fmt.Sprintf("https://tgdd/p%d", i), 10000000)
		p.UpdatedAt = now.Add(-age)
		insertProduct(t, store, p)
	}

	got, err := NewProductRepository(testDB).ListStale(context.Background(), now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Phone 0", "Phone 2"}, productNames(got))

	got, err = NewProductRepository(testDB).ListStale(context.Background(), now.Add(-24*time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Phone 0"}, productNames(got))
}

func TestProductRepository_FindByIDs(t *testing.T) {
	resetCatalog(t)
	store := NewCatalogStore(testDB)
	a := newProduct(1, "A", "https://shopee/a", 300)
	b := newProduct(1, "B", "https://shopee/b", 100)
	insertProduct(t, store, a)
	insertProduct(t, store, b)

	repo := NewProductRepository(testDB)
	got, err := repo.FindByIDs(context.Background(), []int64{a.ID, b.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, productNames(got))

	got, err = repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProductRepository_SetFavorite(t *testing.T) {
	resetCatalog(t)
	p := newProduct(2, "Tivi Samsung", "https://dmx/tivi", 12000000)
	insertProduct(t, NewCatalogStore(testDB), p)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	require.NoError(t, repo.SetFavorite(ctx, p.ID, true))
	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)

	assert.ErrorIs(t, repo.SetFavorite(ctx, 424242, true), ErrProductNotFound)
	_, err = repo.FindByID(ctx, 424242)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductRepository_PriceHistoryOrder(t *testing.T) {
	resetCatalog(t)
	ctx := context.Background()
	store := NewCatalogStore(testDB)
	p := newProduct(4, "AirPods Pro", "https://cps/airpods", 6000000)
	insertProduct(t, store, p)

	require.NoError(t, store.WithinTx(ctx, func(tx CatalogTx) error {
		return tx.AppendPriceHistory(ctx, &domain.PriceHistory{
			ProductID: p.ID, Price: decimal.NewFromInt(5500000), RecordedAt: p.CreatedAt.Add(time.Hour),
		})
	}))

	history, err := NewPriceHistoryRepository(testDB).ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "6000000", history[0].Price.StringFixed(0))
	assert.Equal(t, "5500000", history[1].Price.StringFixed(0))
}

// Feature: price-scout, Property: clearing history never removes favorites
func TestProperty_ClearHistoryPreservesFavorites(t *testing.T) {
	repo := NewProductRepository(testDB)
	store := NewCatalogStore(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("favorites and their history survive, everything else is removed", prop.ForAll(
		func(favorites []bool) bool {
			resetCatalog(t)

			want := map[int64]bool{}
			for i, fav := range favorites {
				p := newProduct(i%5+1, fmt.Sprintf("Item %d", i), fmt.Sprintf("https://item/%d", i), int64(i+1)*1000)
				p.IsFavorite = fav
				insertProduct(t, store, p)
				if fav {
					want[p.ID] = true
				}
			}

			if _, err := repo.ClearHistory(ctx); err != nil {
				t.Logf("FAIL: clear history: %v", err)
				return false
			}

			left, err := repo.Search(ctx, ProductFilter{Limit: 1000})
			if err != nil || len(left) != len(want) {
				return false
			}
			for _, p := range left {
				if !want[p.ID] || !p.IsFavorite {
					return false
				}
				history, err := NewPriceHistoryRepository(testDB).ListByProduct(ctx, p.ID)
				if err != nil || len(history) != 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	resetCatalog(t)
	ctx := context.Background()
	store := NewCatalogStore(testDB)
	p := newProduct(1, "Redmi Note 13", "https://shopee/redmi", 5000000)
	insertProduct(t, store, p)

	n := &domain.Notification{
		ProductID: p.ID, Message: "Redmi Note 13 tăng 2.0%",
		PriceChange: decimal.NewFromInt(100000), OldPrice: decimal.NewFromInt(5000000), NewPrice: decimal.NewFromInt(5100000),
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.WithinTx(ctx, func(tx CatalogTx) error { return tx.AppendNotification(ctx, n) }))

	repo := NewNotificationRepository(testDB)
	require.NoError(t, repo.MarkRead(ctx, n.ID))

	unread, err := repo.List(ctx, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := repo.List(ctx, false, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsRead)

	assert.ErrorIs(t, repo.MarkRead(ctx, 777), ErrNotificationNotFound)
}

func TestReferenceRepositories_List(t *testing.T) {
	ctx := context.Background()

	stores, err := NewStoreRepository(testDB).List(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 5)
	assert.Equal(t, "Shopee", stores[0].Name)

	categories, err := NewCategoryRepository(testDB).List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, categories)
	assert.Equal(t, "Điện thoại", categories[0].Name)
}

func TestProductRepository_Touch(t *testing.T) {
	resetCatalog(t)
	ctx := context.Background()
	p := newProduct(3, "Apple Watch SE", "https://tgdd/watch-se", 6000000)
	p.UpdatedAt = time.Now().Add(-72 * time.Hour)
	insertProduct(t, NewCatalogStore(testDB), p)

	repo := NewProductRepository(testDB)
	require.NoError(t, repo.Touch(ctx, p.ID, time.Now()))

	stale, err := repo.ListStale(ctx, time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	assert.ErrorIs(t, repo.Touch(ctx, 99999, time.Now()), ErrProductNotFound)
}

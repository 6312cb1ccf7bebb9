package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"price-scout/internal/category"
	"price-scout/internal/domain"
	"price-scout/internal/repository"
)

// memCatalog is an in-memory CatalogStore. A failed transaction restores the
// state it started from.
type memCatalog struct {
	mu            sync.Mutex
	products      map[int64]*domain.Product
	history       []domain.PriceHistory
	notifications []domain.Notification
	nextID        int64

	pingErr   error
	txErr     error
	failLinks map[string]bool
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		products:  map[int64]*domain.Product{},
		failLinks: map[string]bool{},
	}
}

func (m *memCatalog) Ping(ctx context.Context) error { return m.pingErr }

func (m *memCatalog) WithinTx(ctx context.Context, fn func(tx repository.CatalogTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.txErr != nil {
		return m.txErr
	}

	snapshot := make(map[int64]domain.Product, len(m.products))
	for id, p := range m.products {
		snapshot[id] = *p
	}
	historyLen, notifLen, nextID := len(m.history), len(m.notifications), m.nextID

	if err := fn(&memTx{m: m}); err != nil {
		m.products = make(map[int64]*domain.Product, len(snapshot))
		for id, p := range snapshot {
			p := p
			m.products[id] = &p
		}
		m.history = m.history[:historyLen]
		m.notifications = m.notifications[:notifLen]
		m.nextID = nextID
		return err
	}
	return nil
}

func (m *memCatalog) historyFor(productID int64) []domain.PriceHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PriceHistory
	for _, h := range m.history {
		if h.ProductID == productID {
			out = append(out, h)
		}
	}
	return out
}

func (m *memCatalog) productByLink(storeID int, link string) *domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.StoreID == storeID && p.Link == link {
			cp := *p
			return &cp
		}
	}
	return nil
}

type memTx struct {
	m *memCatalog
}

func (t *memTx) FindProduct(ctx context.Context, storeID int, link string) (*domain.Product, error) {
	for _, p := range t.m.products {
		if p.StoreID == storeID && p.Link == link {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (t *memTx) InsertProduct(ctx context.Context, p *domain.Product) error {
	if t.m.failLinks[p.Link] {
		return errors.New("insert failed")
	}
	for _, existing := range t.m.products {
		if existing.StoreID == p.StoreID && existing.Link == p.Link {
			return repository.ErrDuplicateProduct
		}
	}
	t.m.nextID++
	p.ID = t.m.nextID
	cp := *p
	t.m.products[p.ID] = &cp
	return nil
}

func (t *memTx) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if t.m.failLinks[p.Link] {
		return errors.New("update failed")
	}
	if _, ok := t.m.products[p.ID]; !ok {
		return repository.ErrProductNotFound
	}
	cp := *p
	t.m.products[p.ID] = &cp
	return nil
}

func (t *memTx) AppendPriceHistory(ctx context.Context, h *domain.PriceHistory) error {
	h.ID = int64(len(t.m.history) + 1)
	t.m.history = append(t.m.history, *h)
	return nil
}

func (t *memTx) AppendNotification(ctx context.Context, n *domain.Notification) error {
	n.ID = int64(len(t.m.notifications) + 1)
	t.m.notifications = append(t.m.notifications, *n)
	return nil
}

// memProducts is an in-memory ProductRepository backed by a memCatalog
type memProducts struct {
	catalog    *memCatalog
	staleErrs  int
	staleCalls int
	touched    []int64
}

func (r *memProducts) all() []*domain.Product {
	r.catalog.mu.Lock()
	defer r.catalog.mu.Unlock()
	out := make([]*domain.Product, 0, len(r.catalog.products))
	for _, p := range r.catalog.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memProducts) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	for _, p := range r.all() {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (r *memProducts) FindByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*domain.Product
	for _, p := range r.all() {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

// Search ignores terms; the service does the relevance filtering
func (r *memProducts) Search(ctx context.Context, f repository.ProductFilter) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range r.all() {
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (r *memProducts) ListStale(ctx context.Context, before time.Time, limit int) ([]*domain.Product, error) {
	r.staleCalls++
	if r.staleCalls <= r.staleErrs {
		return nil, errors.New("connection reset")
	}
	var out []*domain.Product
	for _, p := range r.all() {
		if p.UpdatedAt.Before(before) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memProducts) SetFavorite(ctx context.Context, id int64, favorite bool) error {
	r.catalog.mu.Lock()
	defer r.catalog.mu.Unlock()
	p, ok := r.catalog.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.IsFavorite = favorite
	return nil
}

func (r *memProducts) Touch(ctx context.Context, id int64, at time.Time) error {
	r.catalog.mu.Lock()
	defer r.catalog.mu.Unlock()
	p, ok := r.catalog.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.UpdatedAt = at
	r.touched = append(r.touched, id)
	return nil
}

func (r *memProducts) ClearHistory(ctx context.Context) (*repository.ClearStats, error) {
	r.catalog.mu.Lock()
	defer r.catalog.mu.Unlock()

	stats := &repository.ClearStats{}
	keep := map[int64]bool{}
	for id, p := range r.catalog.products {
		if p.IsFavorite {
			keep[id] = true
			continue
		}
		delete(r.catalog.products, id)
		stats.Products++
	}

	history := r.catalog.history[:0]
	for _, h := range r.catalog.history {
		if keep[h.ProductID] {
			history = append(history, h)
		} else {
			stats.PriceHistory++
		}
	}
	r.catalog.history = history

	notifications := r.catalog.notifications[:0]
	for _, n := range r.catalog.notifications {
		if keep[n.ProductID] {
			notifications = append(notifications, n)
		} else {
			stats.Notifications++
		}
	}
	r.catalog.notifications = notifications
	return stats, nil
}

type staticAggregator struct {
	listings []domain.Listing
	queries  []string
}

func (a *staticAggregator) Aggregate(ctx context.Context, query string) []domain.Listing {
	a.queries = append(a.queries, query)
	out := make([]domain.Listing, len(a.listings))
	copy(out, a.listings)
	return out
}

func testTables() *category.Tables {
	tables, err := category.LoadDefault()
	if err != nil {
		panic(err)
	}
	return tables
}

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

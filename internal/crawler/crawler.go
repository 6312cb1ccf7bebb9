// Package crawler defines the source crawler contract, the adapters that
// fetch listings from marketplaces and the orchestrator that fans a query out
// to all of them.
package crawler

import (
	"context"
	"errors"

	"price-scout/internal/domain"
)

// ErrSourceUnavailable wraps every failure of a single source
var ErrSourceUnavailable = errors.New("source unavailable")

// Crawler fetches raw listings for a query from one marketplace.
// An empty result means "no results" and is not an error. Implementations
// must enforce their own timeout.
type Crawler interface {
	Name() string
	StoreID() int
	Fetch(ctx context.Context, query string) ([]domain.Listing, error)
}

// FetchFunc fetches listings for a query
type FetchFunc func(ctx context.Context, query string) ([]domain.Listing, error)

type funcCrawler struct {
	name    string
	storeID int
	fetch   FetchFunc
}

// NewFuncCrawler adapts a plain function to the Crawler interface
func NewFuncCrawler(name string, storeID int, fetch FetchFunc) Crawler {
	return &funcCrawler{name: name, storeID: storeID, fetch: fetch}
}

func (c *funcCrawler) Name() string { return c.name }

func (c *funcCrawler) StoreID() int { return c.storeID }

func (c *funcCrawler) Fetch(ctx context.Context, query string) ([]domain.Listing, error) {
	return c.fetch(ctx, query)
}

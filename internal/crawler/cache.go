package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"price-scout/internal/domain"
	"price-scout/internal/textnorm"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCachePrefix = "crawl:"

// CachedCrawler serves a source's listings from redis for a normalized query.
// Redis errors fall through to the wrapped crawler; failures are never cached.
type CachedCrawler struct {
	next   Crawler
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCachedCrawler wraps next with a redis cache
func NewCachedCrawler(next Crawler, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCrawler{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: defaultCachePrefix,
		logger: logger.With(zap.String("source", next.Name())),
	}
}

func (c *CachedCrawler) Name() string { return c.next.Name() }

func (c *CachedCrawler) StoreID() int { return c.next.StoreID() }

func (c *CachedCrawler) Fetch(ctx context.Context, query string) ([]domain.Listing, error) {
	key := c.key(query)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var listings []domain.Listing
		if err := json.Unmarshal(raw, &listings); err == nil {
			c.logger.Debug("Crawl cache hit", zap.String("key", key))
			return listings, nil
		}
		c.logger.Warn("Discarding corrupt cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Crawl cache unavailable", zap.Error(err))
	}

	listings, err := c.next.Fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(listings)
	if err != nil {
		c.logger.Warn("Failed to encode listings for cache", zap.Error(err))
		return listings, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to store crawl cache entry", zap.Error(err))
	}
	return listings, nil
}

func (c *CachedCrawler) key(query string) string {
	return c.prefix + strconv.Itoa(c.next.StoreID()) + ":" + textnorm.Normalize(query)
}

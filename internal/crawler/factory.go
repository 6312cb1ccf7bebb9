package crawler

import (
	"fmt"
	"time"

	"price-scout/internal/browser"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the shared resources crawlers are built from.
// Browser and Redis are optional.
type Dependencies struct {
	HTTP     *resty.Client
	Browser  browser.Evaluator
	Redis    *redis.Client
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// Build creates a crawler per enabled source. Browser sources are skipped
// when no browser session is available.
func Build(sources []SourceConfig, deps Dependencies) ([]Crawler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var crawlers []Crawler
	for _, src := range sources {
		if !src.Enabled {
			logger.Info("Source disabled", zap.String("source", src.Name))
			continue
		}

		var (
			c   Crawler
			err error
		)
		switch src.Kind {
		case KindJSONAPI:
			if deps.HTTP == nil {
				return nil, fmt.Errorf("source %s: http client required", src.Name)
			}
			c, err = NewJSONAPICrawler(src, deps.HTTP, logger)
		case KindBrowser:
			if deps.Browser == nil {
				logger.Warn("Skipping browser source, no browser session", zap.String("source", src.Name))
				continue
			}
			c, err = NewBrowserCrawler(src, deps.Browser, logger)
		default:
			err = fmt.Errorf("source %s: unknown kind %q", src.Name, src.Kind)
		}
		if err != nil {
			return nil, err
		}

		if deps.Redis != nil && deps.CacheTTL > 0 {
			c = NewCachedCrawler(c, deps.Redis, deps.CacheTTL, logger)
		}
		crawlers = append(crawlers, c)
	}
	return crawlers, nil
}

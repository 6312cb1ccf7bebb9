package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"price-scout/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// JSONAPICrawler reads listings from a marketplace's public JSON search API
type JSONAPICrawler struct {
	source SourceConfig
	cfg    JSONAPIConfig
	client *resty.Client
	logger *zap.Logger
}

// HTTPOptions configures the HTTP client shared by JSON API crawlers
type HTTPOptions struct {
	Timeout   time.Duration
	UserAgent string
}

// NewHTTPClient creates a resty client with timeout, retries and browser-like headers
func NewHTTPClient(opts HTTPOptions) *resty.Client {
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "vi-VN,vi;q=0.9,en;q=0.8")

	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == 429 || r.StatusCode() >= 500
	})
	return client
}

// NewJSONAPICrawler creates a new JSONAPICrawler
func NewJSONAPICrawler(source SourceConfig, client *resty.Client, logger *zap.Logger) (*JSONAPICrawler, error) {
	if source.JSONAPI == nil {
		return nil, fmt.Errorf("source %s: missing json_api section", source.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := *source.JSONAPI
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &JSONAPICrawler{
		source: source,
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("source", source.Name)),
	}, nil
}

func (c *JSONAPICrawler) Name() string { return c.source.Name }

func (c *JSONAPICrawler) StoreID() int { return c.source.StoreID }

// Fetch walks result pages until a short page, the page limit or max_items
func (c *JSONAPICrawler) Fetch(ctx context.Context, query string) ([]domain.Listing, error) {
	var listings []domain.Listing

	for page := 0; page < c.cfg.MaxPages; page++ {
		offset := page * c.cfg.PageSize
		endpoint := expandURL(c.cfg.SearchURL, query, c.cfg.PageSize, offset, page+1)

		resp, err := c.client.R().SetContext(ctx).Get(endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to request page %d: %w", page+1, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("unexpected status %d on page %d", resp.StatusCode(), page+1)
		}

		items, err := c.decodeItems(resp.Body())
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			l, ok := c.toListing(item)
			if !ok {
				continue
			}
			listings = append(listings, l)
			if c.source.MaxItems > 0 && len(listings) >= c.source.MaxItems {
				return listings, nil
			}
		}

		if len(items) < c.cfg.PageSize {
			break
		}
	}

	return listings, nil
}

func (c *JSONAPICrawler) decodeItems(body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to decode response: invalid JSON")
	}

	v := gjson.GetBytes(body, c.cfg.ItemsPath)
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("%s is not an array", c.cfg.ItemsPath)
	}
	return v.Array(), nil
}

func (c *JSONAPICrawler) toListing(item gjson.Result) (domain.Listing, bool) {
	name := strings.TrimSpace(stringAt(item, c.cfg.NameField))
	if name == "" {
		return domain.Listing{}, false
	}

	price, err := priceFromJSON(field(item, c.cfg.PriceField))
	if err != nil || !price.IsPositive() {
		c.logger.Debug("Skipping item without price", zap.String("name", name))
		return domain.Listing{}, false
	}

	link := stringAt(item, c.cfg.LinkField)
	if link == "" && c.cfg.LinkTemplate != "" {
		if id := stringAt(item, c.cfg.IDField); id != "" {
			link = strings.ReplaceAll(c.cfg.LinkTemplate, "{id}", id)
		}
	}

	var image string
	for _, f := range c.cfg.ImageFields {
		if image = stringAt(item, f); image != "" {
			break
		}
	}

	var rating float64
	if c.cfg.RatingField != "" {
		rating = ParseRating(stringAt(item, c.cfg.RatingField))
	}

	return domain.Listing{
		Name:      name,
		Price:     price,
		Rating:    rating,
		Link:      link,
		ImageURL:  image,
		Condition: domain.ParseCondition(c.source.Condition),
	}, true
}

// field resolves a gjson path such as "images.0"; an empty path never matches
func field(item gjson.Result, path string) gjson.Result {
	if path == "" {
		return gjson.Result{}
	}
	return item.Get(path)
}

// stringAt reads a scalar field as text; objects and arrays read as empty
func stringAt(item gjson.Result, path string) string {
	v := field(item, path)
	switch v.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return v.String()
	default:
		return ""
	}
}

package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"price-scout/internal/browser"
	"price-scout/internal/domain"

	"go.uber.org/zap"
)

// BrowserCrawler renders a search page in the shared browser session and
// extracts listings with the source's CSS selectors
type BrowserCrawler struct {
	source SourceConfig
	cfg    BrowserConfig
	base   *url.URL
	script string
	eval   browser.Evaluator
	logger *zap.Logger
}

// rawItem is what the extraction script returns per item element
type rawItem struct {
	Name   string `json:"name"`
	Price  string `json:"price"`
	Rating string `json:"rating"`
	Link   string `json:"link"`
	Image  string `json:"image"`
}

// NewBrowserCrawler creates a new BrowserCrawler
func NewBrowserCrawler(source SourceConfig, eval browser.Evaluator, logger *zap.Logger) (*BrowserCrawler, error) {
	if source.Browser == nil {
		return nil, fmt.Errorf("source %s: missing browser section", source.Name)
	}
	if eval == nil {
		return nil, fmt.Errorf("source %s: browser session required", source.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := *source.Browser
	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("source %s: invalid base_url: %w", source.Name, err)
		}
		base = u
	}

	script, err := extractionScript(cfg, source.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}

	return &BrowserCrawler{
		source: source,
		cfg:    cfg,
		base:   base,
		script: script,
		eval:   eval,
		logger: logger.With(zap.String("source", source.Name)),
	}, nil
}

func (c *BrowserCrawler) Name() string { return c.source.Name }

func (c *BrowserCrawler) StoreID() int { return c.source.StoreID }

// Fetch renders the search page for query. A page without items yields an
// empty result.
func (c *BrowserCrawler) Fetch(ctx context.Context, query string) ([]domain.Listing, error) {
	page := expandURL(c.cfg.SearchURL, query, c.source.MaxItems, 0, 1)

	var items []rawItem
	if err := c.eval.Evaluate(ctx, page, c.script, &items); err != nil {
		return nil, err
	}

	listings := make([]domain.Listing, 0, len(items))
	for _, item := range items {
		l, ok := c.toListing(item)
		if !ok {
			continue
		}
		listings = append(listings, l)
		if c.source.MaxItems > 0 && len(listings) >= c.source.MaxItems {
			break
		}
	}
	return listings, nil
}

func (c *BrowserCrawler) toListing(item rawItem) (domain.Listing, bool) {
	name := strings.Join(strings.Fields(item.Name), " ")
	if name == "" {
		return domain.Listing{}, false
	}
	price, err := ParsePrice(item.Price)
	if err != nil || !price.IsPositive() {
		c.logger.Debug("Skipping item without price", zap.String("name", name))
		return domain.Listing{}, false
	}

	return domain.Listing{
		Name:      name,
		Price:     price,
		Rating:    ParseRating(item.Rating),
		Link:      c.resolve(item.Link),
		ImageURL:  c.resolve(item.Image),
		Condition: domain.ParseCondition(c.source.Condition),
	}, true
}

// resolve makes relative links absolute against base_url
func (c *BrowserCrawler) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || c.base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return c.base.ResolveReference(u).String()
}

const extractionTemplate = `(() => {
  const sel = %s;
  const first = (root, css) => css ? root.querySelector(css) : null;
  const text = (root, css) => { const el = first(root, css); return el ? el.textContent.trim() : ""; };
  const attr = (root, css, names) => {
    const el = css ? first(root, css) : null;
    if (!el) return "";
    for (const n of names) { const v = el.getAttribute(n); if (v) return v; }
    return "";
  };
  let items = Array.from(document.querySelectorAll(sel.item));
  if (sel.max > 0) items = items.slice(0, sel.max * 2);
  return items.map(el => ({
    name: text(el, sel.name),
    price: text(el, sel.price),
    rating: text(el, sel.rating),
    link: el.matches("a") ? (el.getAttribute("href") || "") : attr(el, sel.link, ["href"]),
    image: attr(el, sel.image, ["data-src", "src"]),
  }));
})()`

// extractionScript builds the DOM extraction expression for a source.
// Selectors are embedded as a JSON literal.
func extractionScript(cfg BrowserConfig, maxItems int) (string, error) {
	sel, err := json.Marshal(map[string]any{
		"item":   cfg.ItemSelector,
		"name":   cfg.NameSelector,
		"price":  cfg.PriceSelector,
		"rating": cfg.RatingSelector,
		"link":   cfg.LinkSelector,
		"image":  cfg.ImageSelector,
		"max":    maxItems,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode selectors: %w", err)
	}
	return fmt.Sprintf(extractionTemplate, sel), nil
}

package crawler

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var defaultSources []byte

// Source kinds
const (
	KindJSONAPI = "json_api"
	KindBrowser = "browser"
)

// SourceConfig describes one marketplace
type SourceConfig struct {
	Name      string         `yaml:"name"`
	StoreID   int            `yaml:"store_id"`
	Kind      string         `yaml:"kind"`
	Enabled   bool           `yaml:"enabled"`
	MaxItems  int            `yaml:"max_items"`
	Condition string         `yaml:"condition"`
	JSONAPI   *JSONAPIConfig `yaml:"json_api"`
	Browser   *BrowserConfig `yaml:"browser"`
}

// JSONAPIConfig describes a source with a public JSON search endpoint.
// Field names are dotted paths into each item, numeric segments index arrays.
type JSONAPIConfig struct {
	SearchURL    string   `yaml:"search_url"`
	PageSize     int      `yaml:"page_size"`
	MaxPages     int      `yaml:"max_pages"`
	ItemsPath    string   `yaml:"items_path"`
	NameField    string   `yaml:"name_field"`
	PriceField   string   `yaml:"price_field"`
	IDField      string   `yaml:"id_field"`
	LinkField    string   `yaml:"link_field"`
	LinkTemplate string   `yaml:"link_template"`
	RatingField  string   `yaml:"rating_field"`
	ImageFields  []string `yaml:"image_fields"`
}

// BrowserConfig describes a source that needs a rendered page. Selectors are
// CSS selectors relative to each item element.
type BrowserConfig struct {
	SearchURL      string `yaml:"search_url"`
	BaseURL        string `yaml:"base_url"`
	ItemSelector   string `yaml:"item_selector"`
	NameSelector   string `yaml:"name_selector"`
	PriceSelector  string `yaml:"price_selector"`
	RatingSelector string `yaml:"rating_selector"`
	LinkSelector   string `yaml:"link_selector"`
	ImageSelector  string `yaml:"image_selector"`
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads source definitions from path, or the embedded defaults
// when path is empty
func LoadSources(path string) ([]SourceConfig, error) {
	raw := defaultSources
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sources file: %w", err)
		}
		raw = b
	}
	return ParseSources(raw)
}

// ParseSources decodes and validates source definitions
func ParseSources(raw []byte) ([]SourceConfig, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}

	seen := make(map[string]bool, len(f.Sources))
	for i, s := range f.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("source #%d: missing name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("source %s: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if s.StoreID <= 0 {
			return nil, fmt.Errorf("source %s: invalid store_id %d", s.Name, s.StoreID)
		}
		switch s.Kind {
		case KindJSONAPI:
			if s.JSONAPI == nil || s.JSONAPI.SearchURL == "" || s.JSONAPI.ItemsPath == "" {
				return nil, fmt.Errorf("source %s: json_api requires search_url and items_path", s.Name)
			}
		case KindBrowser:
			if s.Browser == nil || s.Browser.SearchURL == "" || s.Browser.ItemSelector == "" {
				return nil, fmt.Errorf("source %s: browser requires search_url and item_selector", s.Name)
			}
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", s.Name, s.Kind)
		}
	}
	return f.Sources, nil
}

// expandURL fills the {query}, {limit}, {offset} and {page} placeholders
func expandURL(tmpl, query string, limit, offset, page int) string {
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(query),
		"{limit}", strconv.Itoa(limit),
		"{offset}", strconv.Itoa(offset),
		"{page}", strconv.Itoa(page),
	)
	return r.Replace(tmpl)
}

package category

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"price-scout/internal/domain"
	"price-scout/internal/textnorm"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Tables is the static reference data loaded once at process start
type Tables struct {
	Categories []domain.Category
	Stores     []domain.Store
	Exclusions []string
}

type tablesFile struct {
	Categories []struct {
		ID       int      `yaml:"id"`
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
	Stores []struct {
		ID        int    `yaml:"id"`
		Name      string `yaml:"name"`
		Website   string `yaml:"website"`
		Preferred bool   `yaml:"preferred"`
	} `yaml:"stores"`
	Exclusions []string `yaml:"exclusions"`
}

// LoadDefault parses the tables embedded in the binary
func LoadDefault() (*Tables, error) {
	return Parse(defaultCatalog)
}

// LoadFile parses tables from a YAML file, falling back to the embedded
// tables when path is empty
func LoadFile(path string) (*Tables, error) {
	if path == "" {
		return LoadDefault()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog tables: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML tables and normalizes every keyword and exclusion term
func Parse(raw []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog tables: %w", err)
	}

	t := &Tables{}
	seen := make(map[int]bool, len(f.Categories))
	for _, c := range f.Categories {
		if c.ID <= domain.Uncategorized {
			return nil, fmt.Errorf("category %q: id must be positive", c.Name)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate category id %d", c.ID)
		}
		seen[c.ID] = true
		t.Categories = append(t.Categories, domain.Category{
			ID:       c.ID,
			Name:     c.Name,
			Keywords: normalizeAll(c.Keywords),
		})
	}
	sort.Slice(t.Categories, func(i, j int) bool { return t.Categories[i].ID < t.Categories[j].ID })

	for _, s := range f.Stores {
		t.Stores = append(t.Stores, domain.Store{
			ID:        s.ID,
			Name:      s.Name,
			Website:   s.Website,
			Preferred: s.Preferred,
		})
	}
	sort.Slice(t.Stores, func(i, j int) bool { return t.Stores[i].ID < t.Stores[j].ID })

	t.Exclusions = normalizeAll(f.Exclusions)
	return t, nil
}

// PreferredStores returns the ids of stores flagged as official retailers
func (t *Tables) PreferredStores() []int {
	var ids []int
	for _, s := range t.Stores {
		if s.Preferred {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Store looks up a store by id
func (t *Tables) Store(id int) (domain.Store, bool) {
	for _, s := range t.Stores {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Store{}, false
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		n := textnorm.Normalize(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

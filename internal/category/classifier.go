// Package category maps product names and queries onto the static category
// table by keyword matching.
package category

import (
	"sort"

	"price-scout/internal/domain"
	"price-scout/internal/textnorm"
)

// Classifier is safe for concurrent use; it never mutates after construction.
type Classifier struct {
	categories []domain.Category
	byID       map[int]domain.Category
}

// NewClassifier builds a classifier over categories whose keywords are
// already normalized (as returned by Parse)
func NewClassifier(categories []domain.Category) *Classifier {
	c := &Classifier{
		categories: make([]domain.Category, len(categories)),
		byID:       make(map[int]domain.Category, len(categories)),
	}
	copy(c.categories, categories)
	sort.Slice(c.categories, func(i, j int) bool { return c.categories[i].ID < c.categories[j].ID })
	for _, cat := range c.categories {
		c.byID[cat.ID] = cat
	}
	return c
}

// Classify returns the id of the category with the most matching keywords.
// Ties go to the lowest id. Text matching nothing yields domain.Uncategorized.
func (c *Classifier) Classify(text string) int {
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return domain.Uncategorized
	}

	best, bestHits := domain.Uncategorized, 0
	for _, cat := range c.categories {
		hits := 0
		for _, kw := range cat.Keywords {
			if textnorm.ContainsWord(normalized, kw) {
				hits++
			}
		}
		// sorted by id, strict > keeps the lowest id on ties
		if hits > bestHits {
			best, bestHits = cat.ID, hits
		}
	}
	return best
}

// Keywords returns the normalized keywords of a category
func (c *Classifier) Keywords(id int) []string {
	return c.byID[id].Keywords
}

// Category looks up a category by id
func (c *Classifier) Category(id int) (domain.Category, bool) {
	cat, ok := c.byID[id]
	return cat, ok
}

// Categories lists all categories ordered by id
func (c *Classifier) Categories() []domain.Category {
	out := make([]domain.Category, len(c.categories))
	copy(out, c.categories)
	return out
}

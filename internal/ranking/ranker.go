// Package ranking filters raw listings for relevance and orders them for
// presentation. Ranking is pure: it depends only on its inputs and the static
// catalog tables.
package ranking

import (
	"sort"
	"strconv"
	"strings"

	"price-scout/internal/category"
	"price-scout/internal/domain"
	"price-scout/internal/textnorm"
)

// Ranker is safe for concurrent use
type Ranker struct {
	classifier *category.Classifier
	exclusions []string
	preferred  map[int]bool
}

// NewRanker creates a ranker. exclusions must be normalized (category.Parse
// does that); preferred lists the store ids of official retailers.
func NewRanker(classifier *category.Classifier, exclusions []string, preferred []int) *Ranker {
	r := &Ranker{
		classifier: classifier,
		exclusions: append([]string(nil), exclusions...),
		preferred:  make(map[int]bool, len(preferred)),
	}
	for _, id := range preferred {
		r.preferred[id] = true
	}
	return r
}

type candidate struct {
	listing   domain.Listing
	name      string
	score     float64
	exact     bool
	preferred bool
}

// Rank drops accessories and off-category or irrelevant listings, then orders
// the rest by exact match, preferred source, score and price. The full set is
// ranked; truncation is left to the caller.
func (r *Ranker) Rank(listings []domain.Listing, query string) []domain.Listing {
	q := textnorm.Normalize(query)
	tokens := uniqueTokens(q)
	queryCategory := r.classifier.Classify(q)
	exclusions := r.activeExclusions(q, queryCategory)

	candidates := make([]candidate, 0, len(listings))
	for _, l := range listings {
		name := textnorm.Normalize(l.Name)
		if name == "" || containsAny(name, exclusions) {
			continue
		}
		if queryCategory != domain.Uncategorized {
			own := r.classifier.Classify(name)
			if own != domain.Uncategorized && own != queryCategory {
				continue
			}
		}
		s := Score(name, tokens, q)
		if s <= 0 {
			continue
		}
		candidates = append(candidates, candidate{
			listing:   l,
			name:      name,
			score:     s,
			exact:     name == q,
			preferred: r.preferred[l.StoreID],
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.exact != b.exact {
			return a.exact
		}
		if a.preferred != b.preferred {
			return a.preferred
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.listing.Price.LessThan(b.listing.Price)
	})

	out := make([]domain.Listing, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		key := dedupeKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c.listing)
	}
	return out
}

// Score rates a normalized name against the normalized query and its tokens.
// Each token found adds 1, plus 0.5 when it opens the name and 0.5 when it
// stands as a whole word. The whole query found adds 2, plus 1 as a prefix.
func Score(name string, tokens []string, query string) float64 {
	var s float64
	for _, tok := range tokens {
		if !strings.Contains(name, tok) {
			continue
		}
		s++
		if strings.HasPrefix(name, tok) {
			s += 0.5
		}
		if textnorm.ContainsWord(name, tok) {
			s += 0.5
		}
	}
	if query != "" && strings.Contains(name, query) {
		s += 2
		if strings.HasPrefix(name, query) {
			s++
		}
	}
	return s
}

// activeExclusions drops exclusion terms the user asked for explicitly and
// terms that are keywords of the query's own category.
func (r *Ranker) activeExclusions(query string, queryCategory int) []string {
	own := make(map[string]bool)
	if queryCategory != domain.Uncategorized {
		for _, kw := range r.classifier.Keywords(queryCategory) {
			own[kw] = true
		}
	}

	active := make([]string, 0, len(r.exclusions))
	for _, term := range r.exclusions {
		if own[term] || textnorm.ContainsWord(query, term) {
			continue
		}
		active = append(active, term)
	}
	return active
}

func containsAny(name string, terms []string) bool {
	for _, term := range terms {
		if textnorm.ContainsWord(name, term) {
			return true
		}
	}
	return false
}

func uniqueTokens(q string) []string {
	fields := strings.Fields(q)
	out := fields[:0]
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func dedupeKey(c candidate) string {
	if c.listing.Link != "" {
		return strconv.Itoa(c.listing.StoreID) + "|" + c.listing.Link
	}
	return strconv.Itoa(c.listing.StoreID) + "|name:" + c.name
}

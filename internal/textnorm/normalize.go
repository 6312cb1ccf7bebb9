// Package textnorm canonicalizes free-form product names and search queries
// so that they can be compared across sources.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, strips diacritics, turns every rune that is not a
// letter or digit into a single space and trims the result.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	// transform.Chain keeps internal state, so it is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		// đ has no canonical decomposition.
		if r == 'đ' {
			r = 'd'
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}

	return b.String()
}

// Tokens returns the whitespace separated tokens of the normalized text.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// ContainsWord reports whether the already normalized phrase occurs in the
// already normalized text bounded by spaces or the text edges.
func ContainsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

package crawler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ParsePrice extracts a VND amount from display text such as "12.990.000₫".
// Dots and commas are thousands separators in these sources, so every
// non-digit is dropped.
func ParsePrice(text string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return decimal.Zero, fmt.Errorf("no digits in price %q", text)
	}
	return decimal.NewFromString(b.String())
}

// ParseRating reads the leading number of a rating label such as "4.5 (12)".
// Unknown ratings are 0.
func ParseRating(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil || v < 0 || v > 5 {
		return 0
	}
	return v
}

// priceFromJSON converts a JSON field into a price. Numbers are read from
// their literal text so large VND amounts never pass through float64.
func priceFromJSON(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	case gjson.String:
		return ParsePrice(v.Str)
	default:
		return decimal.Zero, fmt.Errorf("unsupported price value %s", v.Raw)
	}
}

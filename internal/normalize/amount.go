// Package normalize turns raw statement cells into typed values. Every parser
// here is total: malformed input yields a zero value flagged as defaulted,
// never an error.
package normalize

import (
	"math"
	"strings"

	"github.com/dvloznov/statement-insights/internal/grid"
	"github.com/shopspring/decimal"
)

// Result carries a parsed value and whether it fell back to the zero value.
type Result[T any] struct {
	Value     T
	Defaulted bool
}

// CurrencyMarkers are stripped from amount text before parsing.
var CurrencyMarkers = []string{"₪", "NIS", "nis", "ILS", "ils", "$", "€", "£"}

// ParseAmount converts a cell into a signed amount. Finite number cells pass
// through; NaN, infinities, blank and date cells become 0.
func ParseAmount(c grid.Cell) Result[float64] {
	switch c.Kind {
	case grid.Number:
		if !isFinite(c.Number) {
			return Result[float64]{Defaulted: true}
		}
		return Result[float64]{Value: c.Number}
	case grid.Text:
		return ParseAmountString(c.Text)
	default:
		return Result[float64]{Defaulted: true}
	}
}

// ParseAmountString parses locale-formatted amount text such as "₪1,234.56",
// "-1.234,56" or "12.50-". Unparseable text yields 0 with Defaulted set.
func ParseAmountString(s string) Result[float64] {
	for _, m := range CurrencyMarkers {
		s = strings.ReplaceAll(s, m, "")
	}

	negative := strings.ContainsAny(s, "-−")

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}

	numeral := disambiguateSeparators(b.String())
	if numeral == "" {
		return Result[float64]{Defaulted: true}
	}

	d, err := decimal.NewFromString(numeral)
	if err != nil {
		return Result[float64]{Defaulted: true}
	}
	if negative {
		d = d.Neg()
	}
	v := d.InexactFloat64()
	if !isFinite(v) {
		return Result[float64]{Defaulted: true}
	}
	return Result[float64]{Value: v}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// disambiguateSeparators rewrites a numeral of digits, commas and periods so
// that it contains at most one '.', the decimal point.
func disambiguateSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")

	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 {
			// 12,50 or 1,234,56: only the last comma is decimal.
			return strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:]
		}
		return strings.ReplaceAll(s, ",", "")

	case strings.Count(s, ".") > 1:
		// 1.234.567
		return strings.ReplaceAll(s, ".", "")

	default:
		return strings.TrimRight(s, ".")
	}
}

// Package pricing turns free-form price text into exact decimal amounts.
package pricing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonNumeric = regexp.MustCompile(`[^\d.,]`)

// Parse extracts a decimal amount from display text such as "$1,234.56",
// "1.234,56 €" or "12,99". It strips everything except digits, commas and
// dots, then decides which separator is the decimal point:
//
//   - both present: the right-most one is decimal, the other is grouping
//   - comma only: decimal iff there is exactly one comma followed by
//     exactly two digits, otherwise grouping
//   - dot only: taken as decimal
//
// The second return value is false when no amount can be read.
func Parse(text string) (decimal.Decimal, bool) {
	if text == "" {
		return decimal.Zero, false
	}

	cleaned := nonNumeric.ReplaceAllString(text, "")
	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) == 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	if !strings.ContainsAny(cleaned, "0123456789") || strings.Count(cleaned, ".") > 1 {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(text string) decimal.Decimal {
	d, ok := Parse(text)
	if !ok {
		panic("pricing: cannot parse " + text)
	}
	return d
}

// internal/pricing/currency.go
package pricing

import (
	"regexp"
	"strings"

	"golang.org/x/text/currency"
)

// symbolCodes maps display symbols to ISO 4217 codes. Multi-character
// prefixes come first so that "C$" is not read as "$".
var symbolCodes = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"C$", "CAD"},
	{"CA$", "CAD"},
	{"A$", "AUD"},
	{"AU$", "AUD"},
	{"NZ$", "NZD"},
	{"R$", "BRL"},
	{"HK$", "HKD"},
	{"zł", "PLN"},
	{"Kč", "CZK"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₩", "KRW"},
	{"₽", "RUB"},
	{"₺", "TRY"},
	{"₴", "UAH"},
	{"$", "USD"},
}

var isoCandidate = regexp.MustCompile(`\b[A-Z]{3}\b`)

// DetectCurrency returns the ISO 4217 unit a price text is expressed in.
// An explicit code ("EUR 12,99", "12.99 USD") wins over a symbol.
func DetectCurrency(text string) (currency.Unit, bool) {
	for _, candidate := range isoCandidate.FindAllString(text, -1) {
		if unit, err := currency.ParseISO(candidate); err == nil {
			return unit, true
		}
	}

	for _, sc := range symbolCodes {
		if strings.Contains(text, sc.symbol) {
			return currency.MustParseISO(sc.code), true
		}
	}
	return currency.Unit{}, false
}

// CurrencyCode is DetectCurrency reduced to its ISO code, or "".
func CurrencyCode(text string) string {
	unit, ok := DetectCurrency(text)
	if !ok {
		return ""
	}
	return unit.String()
}

// internal/scraper/extractor.go
package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/shopspring/decimal"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/pricing"
	"github.com/valpere/PriceScrapexter/internal/selectors"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// MaxContainers bounds how many product containers one extraction visits.
const MaxContainers = 50

// ExtractProducts applies a selectors-mode set to a page. It is pure: no
// network access, no shared state. Containers without a name are skipped,
// invalid selectors match nothing, and a direct-mode set yields nothing.
func ExtractProducts(html string, set selectors.Set, baseURL string) []domain.ProductRecord {
	if set.Mode != selectors.ModeSelectors || !validSelector(set.Rules.Container) {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	rules := set.Rules
	var records []domain.ProductRecord
	doc.Find(rules.Container).EachWithBreak(func(i int, container *goquery.Selection) bool {
		if i >= MaxContainers {
			return false
		}
		if rec, ok := extractRecord(container, rules, baseURL); ok {
			records = append(records, rec)
		}
		return true
	})
	return records
}

// extractRecord resolves every field rule inside one container.
func extractRecord(container *goquery.Selection, rules selectors.Rules, baseURL string) (domain.ProductRecord, bool) {
	var rec domain.ProductRecord

	if el := first(container, rules.Name); el != nil {
		rec.Name = utils.TruncateRunes(cleanText(el.Text()), domain.MaxNameLength)
	}
	if rec.Name == "" {
		return rec, false
	}

	if el := first(container, rules.Price); el != nil {
		text := el.Text()
		rec.Price = parsePrice(text)
		rec.Currency = pricing.CurrencyCode(text)
	}
	if el := first(container, rules.OriginalPrice); el != nil {
		text := el.Text()
		rec.OriginalPrice = parsePrice(text)
		if rec.Currency == "" {
			rec.Currency = pricing.CurrencyCode(text)
		}
	}
	if el := first(container, rules.Image); el != nil {
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
				rec.ImageURL = NormalizeURL(v, baseURL)
				break
			}
		}
	}
	if el := first(container, rules.Link); el != nil {
		if href, ok := el.Attr("href"); ok {
			rec.ProductURL = NormalizeURL(href, baseURL)
		}
	}
	if el := first(container, rules.Description); el != nil {
		rec.Description = utils.TruncateRunes(cleanText(el.Text()), domain.MaxDescriptionLength)
	}
	return rec, true
}

// first returns the first descendant matching css, or nil when the rule is
// empty, invalid, or matches nothing.
func first(container *goquery.Selection, css string) *goquery.Selection {
	if css == "" || !validSelector(css) {
		return nil
	}
	sel := container.Find(css).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

func validSelector(css string) bool {
	if strings.TrimSpace(css) == "" {
		return false
	}
	_, err := cascadia.ParseGroup(css)
	return err == nil
}

func parsePrice(text string) decimal.NullDecimal {
	if d, ok := pricing.Parse(text); ok {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

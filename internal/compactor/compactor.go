// Package compactor shrinks product listing pages to a bounded size for
// LLM prompts while keeping the markup that identifies products.
package compactor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Default budgets, in bytes of markup.
const (
	DefaultMaxLength = 80000
	DirectMaxLength  = 40000
	SampleSize       = 15
)

// TruncationMarker terminates hard-truncated output. It counts toward the budget.
const TruncationMarker = "\n<!-- HTML truncated -->"

// Pass identifies which stage produced the compacted output.
type Pass int

const (
	PassNone Pass = iota
	PassStructural
	PassListingArea
	PassSampling
	PassAttributes
	PassTruncated
)

func (p Pass) String() string {
	switch p {
	case PassStructural:
		return "structural"
	case PassListingArea:
		return "listing_area"
	case PassSampling:
		return "sampling"
	case PassAttributes:
		return "attributes"
	case PassTruncated:
		return "truncated"
	default:
		return "none"
	}
}

// Stats describes one compaction.
type Stats struct {
	InputLength  int
	OutputLength int
	Pass         Pass
	CardsFound   int
}

const (
	removableTags = "script, style, noscript, iframe, svg, template"
	chrome        = `header, footer, nav, [class*="cookie"], [class*="newsletter"], [class*="popup"], [class*="modal"], [class*="banner"], [id*="cookie"]`
	productLike   = `[data-sku], [data-product], [class*="product"], [class*="card"]`
	cardHints     = `[data-sku], [data-product-id], [data-pid], [data-item-id], ` +
		`[class*="product-card"], [class*="product-tile"], [class*="product-item"], ` +
		`[class*="productCard"], [class*="ProductCard"], [class*="ProductGrid_grid_item"], ` +
		`[class*="_product_card"], [class*="product_card"], [class*="grid_item_wrapper"], ` +
		`[class*="ProductTile"], [class*="product-listing"], [class*="plp-product"]`
)

// listingAreaHints are tried in order; the first match wins.
var listingAreaHints = []string{
	`[class*="plp"]`,
	`[class*="product-list"]`,
	`[class*="product-grid"]`,
	`[class*="listing"]`,
	`main`,
	`[role="main"]`,
	`[class*="results"]`,
}

// keptAttributes survive the attribute-stripping pass.
var keptAttributes = map[string]bool{
	"class":           true,
	"id":              true,
	"href":            true,
	"src":             true,
	"data-src":        true,
	"data-lazy-src":   true,
	"alt":             true,
	"title":           true,
	"aria-label":      true,
	"data-sku":        true,
	"data-product":    true,
	"data-product-id": true,
	"data-price":      true,
}

var documentTag = regexp.MustCompile(`(?i)<(html|head|body)[\s>]`)

// Compact reduces markup to at most maxLength bytes.
func Compact(markup string, maxLength int) string {
	out, _ := CompactWithStats(markup, maxLength)
	return out
}

// CompactWithStats is Compact that also reports which pass was decisive.
func CompactWithStats(markup string, maxLength int) (string, Stats) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	stats := Stats{InputLength: len(markup)}
	finish := func(out string, pass Pass) (string, Stats) {
		stats.OutputLength = len(out)
		stats.Pass = pass
		return out, stats
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return finish(truncate(markup, maxLength), PassTruncated)
	}
	fullDocument := documentTag.MatchString(markup)

	// Pass 1: structural stripping.
	stripStructure(doc)

	if area := findListingArea(doc); area != nil && area.Find(productLike).Length() > 3 {
		if out, err := goquery.OuterHtml(area); err == nil && len(out) <= maxLength {
			return finish(out, PassListingArea)
		}
	}

	cleaned := render(doc, fullDocument)
	if len(cleaned) <= maxLength {
		return finish(cleaned, PassStructural)
	}

	// Pass 2: sample product cards.
	cards := doc.Find(cardHints)
	stats.CardsFound = cards.Length()
	if cards.Length() > 3 {
		if out, ok := sampleCards(cards); ok && len(out) <= maxLength {
			return finish(out, PassSampling)
		}
	}

	// Pass 3: attribute stripping, then truncation.
	stripAttributes(doc)
	cleaned = render(doc, fullDocument)
	if len(cleaned) <= maxLength {
		return finish(cleaned, PassAttributes)
	}
	return finish(truncate(cleaned, maxLength), PassTruncated)
}

func stripStructure(doc *goquery.Document) {
	doc.Find(removableTags).Remove()
	doc.Find("head").Remove()
	removeComments(doc.Nodes[0])

	doc.Find("[style]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		return strings.Contains(strings.ToLower(strings.ReplaceAll(style, " ", "")), "display:none")
	}).Remove()
	doc.Find("[hidden]").Remove()
	doc.Find(chrome).Not("html, body").Remove()
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

func findListingArea(doc *goquery.Document) *goquery.Selection {
	for _, hint := range listingAreaHints {
		if sel := doc.Find(hint).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func sampleCards(cards *goquery.Selection) (string, bool) {
	shown := cards.Length()
	if shown > SampleSize {
		shown = SampleSize
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<div class=\"product-samples\" data-found=\"%d\" data-shown=\"%d\">\n", cards.Length(), shown)
	ok := true
	cards.Slice(0, shown).Each(func(_ int, s *goquery.Selection) {
		out, err := goquery.OuterHtml(s)
		if err != nil {
			ok = false
			return
		}
		b.WriteString(out)
		b.WriteString("\n")
	})
	b.WriteString("</div>")
	return b.String(), ok
}

func stripAttributes(doc *goquery.Document) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			kept := n.Attr[:0]
			for _, a := range n.Attr {
				if keptAttributes[strings.ToLower(a.Key)] {
					kept = append(kept, a)
				}
			}
			n.Attr = kept
		}
	})
}

// render serializes the whole document for document input, and only the
// body content for fragment input, so that fragments stay fragments.
func render(doc *goquery.Document, fullDocument bool) string {
	var out string
	var err error
	if fullDocument {
		out, err = doc.Html()
	} else {
		out, err = doc.Find("body").Html()
	}
	if err != nil {
		return ""
	}
	return out
}

// truncate cuts s so that s plus the marker fits in maxLength bytes
// without splitting a UTF-8 sequence.
func truncate(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= len(TruncationMarker) {
		return cutRunes(s, maxLength)
	}
	return cutRunes(s, maxLength-len(TruncationMarker)) + TruncationMarker
}

func cutRunes(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

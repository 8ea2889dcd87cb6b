// internal/scraper/detect.go
package scraper

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMinTextLength is the visible-text size below which a statically
// fetched page is assumed to be an unrendered application shell.
const DefaultMinTextLength = 500

var javaScriptRequiredPhrases = []string{
	"enable javascript",
	"javascript is required",
	"please enable javascript",
	"loading...",
}

// visibleText returns document text without script and style bodies.
func visibleText(doc *goquery.Document) string {
	doc.Find("script, style, template").Remove()
	return doc.Text()
}

// countNonSpace counts the characters of s that are not whitespace.
func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// NeedsJavaScript reports whether statically fetched markup looks
// incomplete: too little visible text, or an explicit request to enable
// JavaScript.
func NeedsJavaScript(html string, minTextLength int) bool {
	if minTextLength <= 0 {
		minTextLength = DefaultMinTextLength
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return true
	}

	text := visibleText(doc)
	if countNonSpace(text) < minTextLength {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range javaScriptRequiredPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// internal/compactor/compactor_test.go
package compactor

import (
	"fmt"
	"strings"
	"testing"
)

func page(body string) string {
	return `<!DOCTYPE html><html><head><title>T</title><script src="app.js"></script></head><body>` + body + `</body></html>`
}

func cards(n int, filler string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<div class="product-card" data-sku="S%d" data-tracking="%s"><a href="/p/%d">Item %d</a><span class="price">$%d</span></div>`, i, filler, i, i, i+1)
	}
	return b.String()
}

func TestCompact_StructuralStripping(t *testing.T) {
	input := page(`
		<header><nav>Menu</nav></header>
		<!-- analytics -->
		<div class="cookie-consent">We use cookies</div>
		<div style="display: none">hidden promo</div>
		<div hidden>also hidden</div>
		<script>track()</script>
		<svg><path d="M0"/></svg>
		<section><h1>Shoes</h1><p>Two products</p></section>
		<footer>Footer</footer>`)

	out, stats := CompactWithStats(input, DefaultMaxLength)
	if stats.Pass != PassStructural {
		t.Errorf("pass = %s, want structural", stats.Pass)
	}
	for _, gone := range []string{"<script", "<head", "analytics", "We use cookies", "hidden promo", "also hidden", "<svg", "Footer", "Menu"} {
		if strings.Contains(out, gone) {
			t.Errorf("output still contains %q: %s", gone, out)
		}
	}
	if !strings.Contains(out, "Two products") {
		t.Errorf("content was lost: %s", out)
	}
}

func TestCompact_BodyWithChromeLikeClassSurvives(t *testing.T) {
	input := `<html><body class="has-cookie-banner"><main><p>Content</p></main></body></html>`
	if out := Compact(input, DefaultMaxLength); !strings.Contains(out, "Content") {
		t.Errorf("body must never be removed: %s", out)
	}
}

func TestCompact_PrefersListingArea(t *testing.T) {
	input := page(`<aside class="filters">` + strings.Repeat("<label>Filter</label>", 20) + `</aside>` +
		`<div class="product-grid">` + cards(6, "x") + `</div>`)

	out, stats := CompactWithStats(input, DefaultMaxLength)
	if stats.Pass != PassListingArea {
		t.Fatalf("pass = %s, want listing_area", stats.Pass)
	}
	if !strings.HasPrefix(out, `<div class="product-grid">`) {
		t.Errorf("expected the listing subtree, got %.80s", out)
	}
	if strings.Contains(out, "Filter") {
		t.Error("content outside the listing area should be dropped")
	}
}

func TestCompact_SamplesCards(t *testing.T) {
	filler := strings.Repeat("z", 400)
	input := page(`<section>` + cards(100, filler) + `</section>`)

	out, stats := CompactWithStats(input, 20000)
	if stats.Pass != PassSampling {
		t.Fatalf("pass = %s, want sampling (len %d)", stats.Pass, len(out))
	}
	if got := strings.Count(out, `class="product-card"`); got != SampleSize {
		t.Errorf("sampled %d cards, want %d", got, SampleSize)
	}
	if !strings.Contains(out, `data-found="100"`) {
		t.Errorf("missing count annotation: %.120s", out)
	}
}

func TestCompact_StripsAttributes(t *testing.T) {
	filler := strings.Repeat("z", 400)
	input := page(`<section>` + cards(3, filler) + `</section>`)

	out, stats := CompactWithStats(input, 800)
	if stats.Pass != PassAttributes {
		t.Fatalf("pass = %s, want attributes (len %d)", stats.Pass, len(out))
	}
	if strings.Contains(out, "data-tracking") {
		t.Error("non-allow-listed attribute survived")
	}
	if !strings.Contains(out, `data-sku="S0"`) || !strings.Contains(out, `href="/p/0"`) {
		t.Errorf("allow-listed attributes were lost: %s", out)
	}
}

func TestCompact_NeverExceedsBudget(t *testing.T) {
	input := page(`<section>` + cards(400, strings.Repeat("é", 50)) + `</section>`)

	for _, max := range []int{1, 5, 24, 25, 100, 1000, 5000, 50000} {
		out := Compact(input, max)
		if len(out) > max {
			t.Errorf("Compact(_, %d) produced %d bytes", max, len(out))
		}
		if !isValidUTF8(out) {
			t.Errorf("Compact(_, %d) split a UTF-8 sequence", max)
		}
	}

	out, stats := CompactWithStats(input, 1000)
	if stats.Pass != PassTruncated {
		t.Fatalf("pass = %s, want truncated", stats.Pass)
	}
	if !strings.HasSuffix(out, TruncationMarker) {
		t.Errorf("truncated output should end with the marker: ...%s", out[len(out)-40:])
	}
}

func TestCompact_Idempotent(t *testing.T) {
	inputs := []string{
		page(`<section><h1>Shoes</h1><p>Just text</p></section>`),
		page(`<main>` + cards(8, "x") + `</main>`),
		`<div class="product-grid">` + cards(5, "y") + `</div>`,
	}

	for i, input := range inputs {
		once := Compact(input, DefaultMaxLength)
		twice := Compact(once, DefaultMaxLength)
		if once != twice {
			t.Errorf("input %d: second compaction changed the output\nonce:  %.200s\ntwice: %.200s", i, once, twice)
		}
	}
}

func isValidUTF8(s string) bool {
	return strings.ToValidUTF8(s, "�") == s
}

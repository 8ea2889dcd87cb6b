// internal/scraper/extractor_test.go
package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/valpere/PriceScrapexter/internal/selectors"
)

// listingHTML renders n product cards in a typical grid layout.
func listingHTML(n int) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Shop</title></head><body><main class="product-grid">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="product-card" data-sku="SKU%d">
			<a class="product-link" href="/p/item-%d"><h3 class="product-name">Item %d</h3></a>
			<img class="product-image" data-src="//cdn.shop.example/img/%d.jpg">
			<span class="price">$%d.99</span>
			<s class="was">$%d.00</s>
			<p class="desc">Description of item %d</p>
		</div>`, i, i, i, i, i*10, i*10+5, i)
	}
	b.WriteString(`</main></body></html>`)
	return b.String()
}

var cardSet = selectors.FromRules(selectors.Rules{
	Container:     ".product-card",
	Name:          ".product-name",
	Price:         ".price",
	OriginalPrice: ".was",
	Image:         "img",
	Link:          "a.product-link",
	Description:   ".desc",
}, false, "")

func TestExtractProducts_AllFields(t *testing.T) {
	records := ExtractProducts(listingHTML(12), cardSet, "https://shop.example/category")
	if len(records) != 12 {
		t.Fatalf("expected 12 products, got %d", len(records))
	}

	first := records[0]
	if first.Name != "Item 1" {
		t.Errorf("Name = %q", first.Name)
	}
	if !first.Price.Valid || !first.Price.Decimal.Equal(decimal.RequireFromString("10.99")) {
		t.Errorf("Price = %v", first.Price)
	}
	if !first.OriginalPrice.Valid || !first.OriginalPrice.Decimal.Equal(decimal.RequireFromString("15")) {
		t.Errorf("OriginalPrice = %v", first.OriginalPrice)
	}
	if first.Currency != "USD" {
		t.Errorf("Currency = %q", first.Currency)
	}
	if first.ProductURL != "https://shop.example/p/item-1" {
		t.Errorf("ProductURL = %q", first.ProductURL)
	}
	if first.ImageURL != "https://cdn.shop.example/img/1.jpg" {
		t.Errorf("ImageURL = %q", first.ImageURL)
	}
	if first.Description != "Description of item 1" {
		t.Errorf("Description = %q", first.Description)
	}
}

func TestExtractProducts_CapsContainers(t *testing.T) {
	records := ExtractProducts(listingHTML(60), cardSet, "https://shop.example")
	if len(records) != MaxContainers {
		t.Errorf("expected %d products, got %d", MaxContainers, len(records))
	}
}

func TestExtractProducts_SkipsNameless(t *testing.T) {
	html := `<ul>
		<li class="item"><b>Alpha</b><i>9,99 €</i></li>
		<li class="item"><i>5,00 €</i></li>
		<li class="item"><b>   </b></li>
		<li class="item"><b>Gamma</b></li>
	</ul>`
	set := selectors.FromRules(selectors.Rules{Container: "li.item", Name: "b", Price: "i"}, false, "")

	records := ExtractProducts(html, set, "https://shop.example")
	if len(records) != 2 {
		t.Fatalf("expected 2 products, got %d: %+v", len(records), records)
	}
	if records[0].Currency != "EUR" || !records[0].Price.Decimal.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[1].Price.Valid {
		t.Error("missing price must stay null")
	}
}

func TestExtractProducts_InvalidSelectors(t *testing.T) {
	tests := []struct {
		name string
		set  selectors.Set
	}{
		{"bad container", selectors.Set{Mode: selectors.ModeSelectors, Rules: selectors.Rules{Container: "div[[", Name: "h3"}}},
		{"direct mode", selectors.Direct(false, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractProducts(listingHTML(3), tt.set, "https://shop.example"); len(got) != 0 {
				t.Errorf("expected no products, got %d", len(got))
			}
		})
	}

	badField := selectors.FromRules(selectors.Rules{Container: ".product-card", Name: ".product-name", Price: "span[["}, false, "")
	records := ExtractProducts(listingHTML(2), badField, "https://shop.example")
	if len(records) != 2 || records[0].Price.Valid {
		t.Errorf("invalid field selector should only blank that field: %+v", records)
	}
}

func TestExtractProducts_TruncatesDescription(t *testing.T) {
	long := strings.Repeat("ä", 800)
	html := `<div class="c"><h2>Thing</h2><p>` + long + `</p></div>`
	set := selectors.FromRules(selectors.Rules{Container: ".c", Name: "h2", Description: "p"}, false, "")

	records := ExtractProducts(html, set, "https://shop.example")
	if len(records) != 1 {
		t.Fatalf("expected 1 product, got %d", len(records))
	}
	if n := len([]rune(records[0].Description)); n != 500 {
		t.Errorf("description length = %d, want 500", n)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		link, base, want string
	}{
		{"//cdn.example/a.jpg", "https://shop.example/x", "https://cdn.example/a.jpg"},
		{"/p/1", "https://shop.example/category/shoes", "https://shop.example/p/1"},
		{"p/1", "https://shop.example/category/", "https://shop.example/category/p/1"},
		{"https://other.example/p", "https://shop.example", "https://other.example/p"},
		{"", "https://shop.example", ""},
		{"  /p/2 ", "http://shop.example:8080/", "http://shop.example:8080/p/2"},
	}

	for _, tt := range tests {
		if got := NormalizeURL(tt.link, tt.base); got != tt.want {
			t.Errorf("NormalizeURL(%q, %q) = %q, want %q", tt.link, tt.base, got, tt.want)
		}
	}
}

func TestNeedsJavaScript(t *testing.T) {
	rich := listingHTML(20)
	if NeedsJavaScript(rich, 0) {
		t.Error("a populated listing should not need JavaScript")
	}
	if !NeedsJavaScript(`<html><body><div id="root"></div><script>var x = "`+strings.Repeat("a", 2000)+`"</script></body></html>`, 0) {
		t.Error("an empty shell should need JavaScript")
	}
	if !NeedsJavaScript(rich+`<noscript>Please enable JavaScript to continue</noscript>`, 0) {
		t.Error("an explicit enable-javascript notice should trigger rendering")
	}
}

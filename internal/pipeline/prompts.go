// internal/pipeline/prompts.go
package pipeline

import "strings"

const selectorPrompt = `Analyze this HTML from a shopping website and extract CSS selectors for product listings.

The page URL is: {url}

I need you to identify CSS selectors that can extract product information from this page.
Look for product cards, listings, or grid items that contain products.

Return ONLY a valid JSON object with this exact structure (no markdown, no explanation):
{
    "product_container": "CSS selector for individual product cards/items",
    "name": "CSS selector for product name (relative to container)",
    "price": "CSS selector for current price (relative to container)",
    "original_price": "CSS selector for original/crossed-out price if exists (relative to container), or null",
    "image": "CSS selector for product image (relative to container)",
    "link": "CSS selector for product link (relative to container)",
    "description": "CSS selector for short description if exists (relative to container), or null",
    "requires_javascript": false,
    "notes": "Any notes about the page structure"
}

Important rules:
1. The product_container should match multiple product items on the page
2. All other selectors are RELATIVE to the product_container
3. For price selectors, target the element containing the price number
4. For image, target the img element or element with background-image
5. For link, target the anchor element with href
6. If a field doesn't exist, use null
7. Set requires_javascript to true if you detect signs the page needs JS to render products

Common patterns to look for:
- data-sku, data-product-id, data-pid attributes on product containers
- aria-label attributes often contain product name and price
- Classes like "product", "card", "item", "tile"
- Price in elements with classes like "price", "sale-price", "final-price"
- Images may use data-src or srcset for lazy loading

HTML content:
{html}`

const directPrompt = `Analyze this HTML from a shopping website and extract all products you can find.

The page URL is: {url}

Extract all products visible on this page. For each product, extract:
- name: Product title/name
- price: Current selling price (number only, no currency symbol). Convert from local format (e.g., €590 -> 590)
- original_price: Original price if on sale (number only), or null
- currency: ISO 4217 currency code of the prices if you can tell, or null
- image_url: URL of the product image (look for img src, data-src, or srcset)
- product_url: URL to the product detail page (full URL, not relative)
- description: Short description or color/variant info if available, or null

Tips for finding products:
- Look for repeated structures with similar classes (cards, tiles, items)
- Check aria-label attributes - they often contain product name and price
- Look for data-sku, data-product-id attributes
- Prices may be in elements with classes containing "price", "cost", "sale"
- Product names are often in h2, h3, or elements with "title" in the class

Return ONLY a valid JSON array with this structure (no markdown, no explanation):
[
    {
        "name": "Product Name",
        "price": 29.99,
        "original_price": 49.99,
        "currency": "USD",
        "image_url": "https://...",
        "product_url": "https://...",
        "description": "Short description"
    }
]

If no products found, return an empty array: []

HTML content:
{html}`

// renderPrompt fills the {url} and {html} placeholders in a single pass,
// so page content is never itself treated as a placeholder.
func renderPrompt(tmpl, url, html string) string {
	return strings.NewReplacer("{url}", url, "{html}", html).Replace(tmpl)
}

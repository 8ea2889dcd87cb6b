// internal/pipeline/direct.go
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/valpere/PriceScrapexter/internal/compactor"
	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/pricing"
	"github.com/valpere/PriceScrapexter/internal/scraper"
	"github.com/valpere/PriceScrapexter/internal/selectors"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// DirectMaxTokens bounds the direct-extraction reply.
const DirectMaxTokens = 4000

// directItem is one product as the model reports it. Prices are kept raw
// so that the decimal value comes straight from the JSON literal.
type directItem struct {
	Name          string          `json:"name"`
	Price         json.RawMessage `json:"price"`
	OriginalPrice json.RawMessage `json:"original_price"`
	Currency      string          `json:"currency"`
	ImageURL      string          `json:"image_url"`
	ProductURL    string          `json:"product_url"`
	Description   string          `json:"description"`
}

// DirectExtractor asks the model for the product list itself.
type DirectExtractor struct {
	provider  llm.Provider
	model     string
	maxLength int
	policy    *bluemonday.Policy
	logger    utils.Logger
}

// NewDirectExtractor creates an extractor compacting pages to maxLength.
func NewDirectExtractor(provider llm.Provider, model string, maxLength int, logger utils.Logger) *DirectExtractor {
	if model == "" {
		model = llm.DefaultModel
	}
	if maxLength <= 0 {
		maxLength = compactor.DirectMaxLength
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &DirectExtractor{
		provider:  provider,
		model:     model,
		maxLength: maxLength,
		policy:    bluemonday.StrictPolicy(),
		logger:    logger.WithField("component", "direct_extractor"),
	}
}

// Extract returns the products the model finds in markup. An unparseable
// reply yields an empty list; provider failures are returned as LLM_FAILED.
func (d *DirectExtractor) Extract(ctx context.Context, markup, url string, usage *llm.Usage) ([]domain.ProductRecord, error) {
	compacted := compactor.Compact(markup, d.maxLength)

	resp, err := d.provider.Complete(ctx, llm.UserText(d.model, DirectMaxTokens, renderPrompt(directPrompt, url, compacted)))
	if err != nil {
		return nil, utils.NewError(utils.ErrCodeLLMFailed, "direct extraction request failed").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	usage.Add(resp)

	items, err := selectors.ParseArray[directItem](resp.Text)
	if err != nil {
		d.logger.WithField("url", url).Warnf("direct extraction reply could not be parsed: %v", err)
		return []domain.ProductRecord{}, nil
	}

	records := make([]domain.ProductRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := d.toRecord(item, url); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (d *DirectExtractor) toRecord(item directItem, baseURL string) (domain.ProductRecord, bool) {
	rec := domain.ProductRecord{
		Name:          utils.TruncateRunes(d.clean(item.Name), domain.MaxNameLength),
		Price:         rawPrice(item.Price),
		OriginalPrice: rawPrice(item.OriginalPrice),
		Currency:      pricing.CurrencyCode(strings.ToUpper(d.clean(item.Currency))),
		Description:   utils.TruncateRunes(d.clean(item.Description), domain.MaxDescriptionLength),
	}
	if rec.Name == "" {
		return rec, false
	}
	if u := d.clean(item.ImageURL); u != "" {
		rec.ImageURL = scraper.NormalizeURL(u, baseURL)
	}
	if u := d.clean(item.ProductURL); u != "" {
		rec.ProductURL = scraper.NormalizeURL(u, baseURL)
	}
	return rec, true
}

// clean strips markup and collapses whitespace.
func (d *DirectExtractor) clean(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(d.policy.Sanitize(s))), " ")
}

// rawPrice converts a JSON number literal to a decimal without a float
// round trip. Quoted prices go through the locale-aware parser.
func rawPrice(raw json.RawMessage) decimal.NullDecimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.NullDecimal{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.NullDecimal{}
		}
		if d, ok := pricing.Parse(s); ok {
			return decimal.NewNullDecimal(d)
		}
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

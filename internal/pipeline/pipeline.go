// internal/pipeline/pipeline.go
package pipeline

import (
	"context"

	"github.com/valpere/PriceScrapexter/internal/compactor"
	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/scraper"
	"github.com/valpere/PriceScrapexter/internal/selectors"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// PageFetcher retrieves a page with escalation. *scraper.Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, requireJavaScript bool) scraper.FetchResult
}

// Method names the tier that produced an extraction.
type Method string

const (
	MethodSelectors   Method = "selectors"
	MethodRegenerated Method = "regenerated"
	MethodDirect      Method = "direct"
)

// Observer receives one callback per extraction.
type Observer interface {
	ObserveExtraction(method Method, products int)
}

// Config holds compaction budgets.
type Config struct {
	SynthesisMaxLength int `yaml:"synthesis_max_length" json:"synthesis_max_length"`
	DirectMaxLength    int `yaml:"direct_max_length" json:"direct_max_length"`
	PreviewLimit       int `yaml:"preview_limit" json:"preview_limit"`
}

// DefaultConfig returns the standard budgets.
func DefaultConfig() Config {
	return Config{
		SynthesisMaxLength: compactor.DefaultMaxLength,
		DirectMaxLength:    compactor.DirectMaxLength,
		PreviewLimit:       10,
	}
}

// ExtractionOutcome is the result of the fallback chain. Recoverable
// failures never surface here; Err is set only when every tier failed.
type ExtractionOutcome struct {
	Products             []domain.ProductRecord
	Err                  error
	SelectorsRegenerated bool
	Regenerated          selectors.Set
	Method               Method
}

// Pipeline runs fetch, compaction, synthesis and extraction for one
// credential.
type Pipeline struct {
	fetcher     PageFetcher
	model       string
	config      Config
	synthesizer *Synthesizer
	direct      *DirectExtractor
	observer    Observer
	logger      utils.Logger
}

// New builds a pipeline. Zero config fields take their defaults.
func New(fetcher PageFetcher, provider llm.Provider, model string, config Config, logger utils.Logger) *Pipeline {
	defaults := DefaultConfig()
	if config.SynthesisMaxLength <= 0 {
		config.SynthesisMaxLength = defaults.SynthesisMaxLength
	}
	if config.DirectMaxLength <= 0 {
		config.DirectMaxLength = defaults.DirectMaxLength
	}
	if config.PreviewLimit <= 0 {
		config.PreviewLimit = defaults.PreviewLimit
	}
	if model == "" {
		model = llm.DefaultModel
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Pipeline{
		fetcher:     fetcher,
		model:       model,
		config:      config,
		synthesizer: NewSynthesizer(provider, model, logger),
		direct:      NewDirectExtractor(provider, model, config.DirectMaxLength, logger),
		logger:      logger.WithField("component", "pipeline"),
	}
}

// SetObserver attaches a metrics observer.
func (p *Pipeline) SetObserver(o Observer) {
	p.observer = o
}

// Model returns the model identifier used for every call.
func (p *Pipeline) Model() string {
	return p.model
}

// AnalyzeURL fetches url, compacts it and synthesizes a validated Selector
// Set. An unparseable reply degrades to a direct-mode set.
func (p *Pipeline) AnalyzeURL(ctx context.Context, url string, usage *llm.Usage) (selectors.Set, error) {
	set, _, err := p.analyze(ctx, url, usage)
	return set, err
}

func (p *Pipeline) analyze(ctx context.Context, url string, usage *llm.Usage) (selectors.Set, scraper.FetchResult, error) {
	res := p.fetcher.Fetch(ctx, url, false)
	if res.Err != nil {
		return selectors.Set{}, res, res.Err
	}

	set, err := p.analyzeHTML(ctx, url, res.HTML, usage)
	if err != nil {
		return selectors.Set{}, res, err
	}
	if res.Strategy == scraper.StrategyBrowser {
		set.RequiresJavaScript = true
	}
	return set, res, nil
}

// analyzeHTML compacts markup already in hand and synthesizes a validated
// set from it. No fetch is issued.
func (p *Pipeline) analyzeHTML(ctx context.Context, url, markup string, usage *llm.Usage) (selectors.Set, error) {
	compacted := compactor.Compact(markup, p.config.SynthesisMaxLength)
	set, err := p.synthesizer.SynthesizeValidated(ctx, url, markup, compacted, usage)
	if err != nil {
		if !utils.IsCode(err, utils.ErrCodeParseFailed) {
			return selectors.Set{}, err
		}
		p.logger.WithField("url", url).Warnf("selector synthesis unusable, using direct extraction: %v", err)
		set = selectors.Direct(false, directNote)
	}
	return set, nil
}

// ExtractProducts runs the fallback chain: stored selectors, then one
// regeneration, then direct extraction. html may be empty, in which case
// the page is fetched honoring set.RequiresJavaScript.
func (p *Pipeline) ExtractProducts(ctx context.Context, url string, set selectors.Set, html string, usage *llm.Usage) ExtractionOutcome {
	log := p.logger.WithField("url", url)

	if html == "" {
		res := p.fetcher.Fetch(ctx, url, set.RequiresJavaScript)
		if res.Err != nil {
			return ExtractionOutcome{Err: res.Err}
		}
		html = res.HTML
		log.Debugf("fetched %d bytes via %s", len(html), res.Strategy)
	}

	if set.IsDirect() {
		products, err := p.direct.Extract(ctx, html, url, usage)
		return p.finish(ExtractionOutcome{Products: products, Err: err, Method: MethodDirect})
	}

	products := scraper.ExtractProducts(html, set, url)
	if len(products) > 0 {
		return p.finish(ExtractionOutcome{Products: products, Method: MethodSelectors})
	}

	log.Info("no products found with stored selectors, regenerating")
	out := ExtractionOutcome{Method: MethodRegenerated}
	regenerated, err := p.analyzeHTML(ctx, url, html, usage)
	if err != nil {
		out.Err = err
		return out
	}
	if set.RequiresJavaScript {
		regenerated.RequiresJavaScript = true
	}
	if !regenerated.IsDirect() {
		out.Products = scraper.ExtractProducts(html, regenerated, url)
		out.SelectorsRegenerated = true
		out.Regenerated = regenerated
	}

	if len(out.Products) == 0 {
		log.WithField("code", utils.ErrCodeExtractionEmpty).Info("selectors still empty, falling back to direct extraction")
		out.Products, out.Err = p.direct.Extract(ctx, html, url, usage)
		out.Method = MethodDirect
	}
	return p.finish(out)
}

// Preview analyzes url and extracts a bounded sample of products.
func (p *Pipeline) Preview(ctx context.Context, url string, usage *llm.Usage) (selectors.Set, []domain.ProductRecord, error) {
	set, res, err := p.analyze(ctx, url, usage)
	if err != nil {
		return selectors.Set{}, nil, err
	}

	html := res.HTML
	if set.RequiresJavaScript && res.Strategy != scraper.StrategyBrowser {
		again := p.fetcher.Fetch(ctx, url, true)
		if again.Err != nil {
			return set, nil, again.Err
		}
		html = again.HTML
	}

	var products []domain.ProductRecord
	if set.IsDirect() {
		products, err = p.direct.Extract(ctx, html, url, usage)
	} else {
		products = scraper.ExtractProducts(html, set, url)
	}
	return set, limit(products, p.config.PreviewLimit), err
}

func (p *Pipeline) finish(out ExtractionOutcome) ExtractionOutcome {
	if out.Err == nil && len(out.Products) == 0 {
		p.logger.WithField("code", utils.ErrCodeExtractionEmpty).Warn("extraction found no products")
	}
	if p.observer != nil && out.Err == nil {
		p.observer.ObserveExtraction(out.Method, len(out.Products))
	}
	return out
}

func limit(products []domain.ProductRecord, n int) []domain.ProductRecord {
	if len(products) > n {
		return products[:n]
	}
	return products
}

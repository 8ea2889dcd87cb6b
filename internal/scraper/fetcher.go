// internal/scraper/fetcher.go
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/valpere/PriceScrapexter/internal/antidetect"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// Strategy names how a page was obtained.
type Strategy string

const (
	StrategyStatic  Strategy = "static"
	StrategyBrowser Strategy = "browser"
)

// Renderer loads a page in a real browser.
type Renderer interface {
	Render(ctx context.Context, url string, fp antidetect.Fingerprint) (string, error)
}

// FetchObserver receives one callback per fetch outcome. Outcome is
// "success", "escalated" or an error code.
type FetchObserver interface {
	ObserveFetch(strategy Strategy, outcome string, duration time.Duration)
}

// FetchResult is the outcome of Fetch. Exactly one of HTML or Err is set.
type FetchResult struct {
	HTML      string
	Strategy  Strategy
	Escalated bool
	Err       error
}

// FetcherConfig tunes the escalation policy.
type FetcherConfig struct {
	MinTextLength int
	DelayMin      time.Duration
	DelayMax      time.Duration
}

// Fetcher implements cheapest-first page retrieval: a lightweight GET,
// escalating to a browser render when the site blocks or the page needs
// JavaScript.
type Fetcher struct {
	client        *HTTPClient
	renderer      Renderer
	fingerprints  *antidetect.BrowserFingerprinter
	delays        *antidetect.DelayRandomizer
	minTextLength int
	observer      FetchObserver
	logger        utils.Logger
}

// NewFetcher wires the escalation controller. renderer may be nil, in
// which case pages that need a browser fail with RENDER_FAILED.
func NewFetcher(client *HTTPClient, renderer Renderer, fingerprints *antidetect.BrowserFingerprinter, config FetcherConfig, logger utils.Logger) *Fetcher {
	if client == nil {
		client = NewHTTPClient(ClientConfig{})
	}
	if fingerprints == nil {
		fingerprints = antidetect.NewBrowserFingerprinter(nil)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if config.MinTextLength <= 0 {
		config.MinTextLength = DefaultMinTextLength
	}
	if config.DelayMin == 0 && config.DelayMax == 0 {
		config.DelayMin, config.DelayMax = time.Second, 3*time.Second
	}
	return &Fetcher{
		client:        client,
		renderer:      renderer,
		fingerprints:  fingerprints,
		delays:        antidetect.NewDelayRandomizer(config.DelayMin, config.DelayMax),
		minTextLength: config.MinTextLength,
		logger:        logger.WithField("component", "fetcher"),
	}
}

// SetObserver attaches a metrics observer.
func (f *Fetcher) SetObserver(o FetchObserver) {
	f.observer = o
}

// Pause sleeps for a random inter-request delay.
func (f *Fetcher) Pause(ctx context.Context) error {
	return utils.SleepContext(ctx, f.delays.GetDelay())
}

// FetchHTML is Fetch for callers that only need the markup.
func (f *Fetcher) FetchHTML(ctx context.Context, url string, requireJavaScript bool) (string, error) {
	res := f.Fetch(ctx, url, requireJavaScript)
	return res.HTML, res.Err
}

// Fetch retrieves url. It never panics; every failure is reported in
// FetchResult.Err as a *utils.StructuredError.
func (f *Fetcher) Fetch(ctx context.Context, url string, requireJavaScript bool) FetchResult {
	log := f.logger.WithField("url", url)

	if requireJavaScript {
		log.Debug("JavaScript required, rendering directly")
		return f.render(ctx, url)
	}

	start := time.Now()
	html, err := f.client.Get(ctx, url)
	if err != nil {
		f.observe(StrategyStatic, string(utils.CodeOf(err)), time.Since(start))
		if ctx.Err() != nil {
			return FetchResult{Strategy: StrategyStatic, Err: err}
		}
		log.Infof("static fetch failed, escalating to browser: %v", err)
		res := f.render(ctx, url)
		res.Escalated = true
		if res.Err != nil {
			res.Err = combineFailures(err, res.Err)
		}
		return res
	}

	if !NeedsJavaScript(html, f.minTextLength) {
		f.observe(StrategyStatic, "success", time.Since(start))
		return FetchResult{HTML: html, Strategy: StrategyStatic}
	}

	f.observe(StrategyStatic, "escalated", time.Since(start))
	if f.renderer == nil {
		return FetchResult{HTML: html, Strategy: StrategyStatic}
	}

	log.Info("static fetch may be incomplete, trying JavaScript rendering")
	rendered := f.render(ctx, url)
	if rendered.Err == nil && len(rendered.HTML) > len(html) {
		rendered.Escalated = true
		return rendered
	}
	if rendered.Err != nil {
		log.Warnf("browser render failed, keeping static page: %v", rendered.Err)
	}
	return FetchResult{HTML: html, Strategy: StrategyStatic, Escalated: true}
}

func (f *Fetcher) render(ctx context.Context, url string) FetchResult {
	if f.renderer == nil {
		return FetchResult{
			Strategy: StrategyBrowser,
			Err:      utils.NewError(utils.ErrCodeRenderFailed, "browser rendering is not available").WithContext("url", url).Build(),
		}
	}

	start := time.Now()
	html, err := f.renderer.Render(ctx, url, f.fingerprints.Generate())
	if err != nil {
		if utils.CodeOf(err) == "" {
			err = utils.WrapError(err, utils.ErrCodeRenderFailed, "browser render failed")
		}
		f.observe(StrategyBrowser, string(utils.CodeOf(err)), time.Since(start))
		return FetchResult{Strategy: StrategyBrowser, Err: err}
	}
	f.observe(StrategyBrowser, "success", time.Since(start))
	return FetchResult{HTML: html, Strategy: StrategyBrowser}
}

func (f *Fetcher) observe(strategy Strategy, outcome string, d time.Duration) {
	if f.observer != nil {
		f.observer.ObserveFetch(strategy, outcome, d)
	}
}

// combineFailures reports both causes when static fetch and browser
// render both failed. Blocking on either side classifies the whole
// attempt as blocked.
func combineFailures(static, browser error) error {
	code := utils.CodeOf(browser)
	if utils.IsCode(static, utils.ErrCodeFetchBlocked) || utils.IsCode(browser, utils.ErrCodeFetchBlocked) {
		code = utils.ErrCodeFetchBlocked
	}
	if code == "" {
		code = utils.ErrCodeRenderFailed
	}
	return utils.NewError(code, fmt.Sprintf("static fetch failed: %v; browser render failed: %v", static, browser)).
		WithCause(browser).
		Build()
}

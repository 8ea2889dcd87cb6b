// internal/browser/chromedp.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/valpere/PriceScrapexter/internal/antidetect"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// ChromeRenderer renders pages in a fresh headless Chrome per call. No
// browser state survives between renders.
type ChromeRenderer struct {
	config  *BrowserConfig
	captcha *antidetect.CaptchaDetector
	logger  utils.Logger
	slots   chan struct{}

	mu    sync.Mutex
	stats BrowserStats
}

// NewChromeRenderer creates a renderer. MaxConcurrent bounds how many
// Chrome processes may run at once.
func NewChromeRenderer(config *BrowserConfig, logger utils.Logger) *ChromeRenderer {
	if config == nil {
		config = DefaultBrowserConfig()
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	slots := config.MaxConcurrent
	if slots <= 0 {
		slots = 1
	}
	return &ChromeRenderer{
		config:  config,
		captcha: antidetect.NewCaptchaDetector(),
		logger:  logger.WithField("component", "chrome_renderer"),
		slots:   make(chan struct{}, slots),
	}
}

// Render loads targetURL with the given fingerprint and returns the
// rendered document. All browser resources are released before it returns.
func (r *ChromeRenderer) Render(ctx context.Context, targetURL string, fp antidetect.Fingerprint) (string, error) {
	if !r.config.Enabled {
		return "", utils.NewError(utils.ErrCodeRenderFailed, "browser rendering is disabled").Build()
	}

	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return "", utils.NewError(utils.ErrCodeRenderFailed, "render cancelled while waiting for a browser").WithCause(ctx.Err()).Build()
	}

	start := time.Now()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions(fp)...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	if err := chromedp.Run(tabCtx, r.prepare(targetURL, fp)); err != nil {
		r.recordError()
		return "", utils.NewError(utils.ErrCodeRenderFailed, "failed to prepare browser").WithCause(err).Build()
	}

	if err := r.navigate(tabCtx, targetURL); err != nil {
		r.recordError()
		return "", utils.NewError(utils.ErrCodeRenderFailed, "navigation failed").
			WithCause(err).
			WithContext("url", targetURL).
			Build()
	}

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Sleep(r.config.SettleDelay),
		chromedp.Evaluate(`window.scrollTo(0, document.body ? document.body.scrollHeight / 2 : 0)`, nil),
		chromedp.Sleep(r.config.ScrollDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		r.recordError()
		return "", utils.NewError(utils.ErrCodeRenderFailed, "failed to capture rendered page").WithCause(err).Build()
	}

	if indicator, blocked := r.captcha.Detect(html); blocked {
		r.mu.Lock()
		r.stats.CaptchaDetected++
		r.mu.Unlock()
		return "", utils.NewError(utils.ErrCodeFetchBlocked, "CAPTCHA detected - site may be blocking automated access").
			WithContext("indicator", indicator).
			WithContext("url", targetURL).
			Build()
	}

	r.recordSuccess(time.Since(start))
	r.logger.Debugf("rendered %s (%d bytes) in %s", targetURL, len(html), time.Since(start).Round(time.Millisecond))
	return html, nil
}

// allocatorOptions builds the Chrome command line for one render.
func (r *ChromeRenderer) allocatorOptions(fp antidetect.Fingerprint) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", fp.Locale),
		chromedp.WindowSize(fp.Viewport.Width, fp.Viewport.Height),
	}
	if r.config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if fp.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(fp.UserAgent))
	}
	if r.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.config.ExecPath))
	}
	for _, flag := range r.config.ExtraFlags {
		opts = append(opts, chromedp.Flag(flag, true))
	}
	return opts
}

// prepare applies the fingerprint before any page script runs.
func (r *ChromeRenderer) prepare(targetURL string, fp antidetect.Fingerprint) chromedp.Tasks {
	origin := ""
	if u, err := url.Parse(targetURL); err == nil && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}

	return chromedp.Tasks{
		chromedp.EmulateViewport(int64(fp.Viewport.Width), int64(fp.Viewport.Height)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(antidetect.StealthScript(fp)).Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(fp.UserAgent).
				WithAcceptLanguage(fp.AcceptLanguage).
				Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetTimezoneOverride(fp.Timezone).Do(ctx)
		}),
		r.optional("locale override", func(ctx context.Context) error {
			return emulation.SetLocaleOverride().WithLocale(fp.Locale).Do(ctx)
		}),
		r.optional("geolocation permission", func(ctx context.Context) error {
			grant := cdpbrowser.GrantPermissions([]cdpbrowser.PermissionType{cdpbrowser.PermissionTypeGeolocation})
			if origin != "" {
				grant = grant.WithOrigin(origin)
			}
			return grant.Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetGeolocationOverride().
				WithLatitude(fp.Geolocation.Latitude).
				WithLongitude(fp.Geolocation.Longitude).
				WithAccuracy(fp.Geolocation.Accuracy).
				Do(ctx)
		}),
	}
}

// optional wraps a fingerprint step whose failure only degrades the disguise.
func (r *ChromeRenderer) optional(name string, fn func(ctx context.Context) error) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			r.logger.Debugf("%s not applied: %v", name, err)
		}
		return nil
	})
}

// navigate waits for the load event within the navigation budget. When a
// site never settles, it falls back to committing the navigation and
// waiting only for a body element.
func (r *ChromeRenderer) navigate(ctx context.Context, targetURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, r.config.NavigationTimeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(targetURL))
	cancel()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r.logger.Warnf("strict navigation to %s failed, retrying on commit: %v", targetURL, err)
	r.mu.Lock()
	r.stats.Fallbacks++
	r.mu.Unlock()

	quoted, qerr := json.Marshal(targetURL)
	if qerr != nil {
		return errors.Join(err, qerr)
	}
	commitCtx, cancelCommit := context.WithTimeout(ctx, r.config.NavigationTimeout)
	defer cancelCommit()
	ferr := chromedp.Run(commitCtx,
		chromedp.Evaluate(fmt.Sprintf("window.location.href = %s", quoted), nil),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if ferr != nil {
		return fmt.Errorf("%w; commit fallback: %v", err, ferr)
	}
	return nil
}

func (r *ChromeRenderer) recordError() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *ChromeRenderer) recordSuccess(loadTime time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.PagesRendered++
	if r.stats.PagesRendered == 1 {
		r.stats.AverageLoadTime = loadTime
	} else {
		r.stats.AverageLoadTime = (r.stats.AverageLoadTime + loadTime) / 2
	}
}

// Stats returns a snapshot of rendering counters.
func (r *ChromeRenderer) Stats() BrowserStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

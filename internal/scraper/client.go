// internal/scraper/client.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/valpere/PriceScrapexter/internal/antidetect"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// maxBodyBytes bounds how much of a page the lightweight fetch reads.
const maxBodyBytes = 16 << 20

// HTTPClient performs lightweight page fetches that look like a desktop browser.
type HTTPClient struct {
	httpClient    *http.Client
	userAgents    *antidetect.UserAgentRotator
	captcha       *antidetect.CaptchaDetector
	rateLimiter   *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
	headers       map[string]string
}

// ClientConfig defines configuration options for the HTTP client
type ClientConfig struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	UserAgents    []string
	Headers       map[string]string
	RateLimit     float64 // requests per second
	RateBurst     int
	Transport     http.RoundTripper
}

// NewHTTPClient creates a new HTTP client with the specified configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}
	transport := config.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		userAgents:    antidetect.NewUserAgentRotator(config.UserAgents),
		captcha:       antidetect.NewCaptchaDetector(),
		rateLimiter:   rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
		headers:       config.Headers,
	}
}

// Get fetches targetURL and returns its body. Failures are
// *utils.StructuredError values coded FETCH_FAILED (status, timeout,
// connection) or FETCH_BLOCKED (challenge page).
func (c *HTTPClient) Get(ctx context.Context, targetURL string) (string, error) {
	if _, err := url.ParseRequestURI(targetURL); err != nil {
		return "", utils.NewError(utils.ErrCodeFetchFailed, "invalid URL").WithCause(err).Build()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", utils.NewError(utils.ErrCodeFetchFailed, "rate limiter wait aborted").WithCause(err).Build()
		}

		body, status, err := c.do(ctx, targetURL)
		if err == nil {
			if indicator, blocked := c.captcha.Detect(body); blocked {
				return "", utils.NewError(utils.ErrCodeFetchBlocked, "CAPTCHA detected - site may be blocking automated access").
					WithContext("indicator", indicator).
					WithContext("url", targetURL).
					Build()
			}
			return body, nil
		}
		lastErr = err

		if status != 0 && !shouldRetryStatusCode(status) {
			break
		}
		if attempt < c.retryAttempts {
			if werr := utils.SleepContext(ctx, c.backoff(attempt)); werr != nil {
				break
			}
		}
	}
	return "", lastErr
}

func (c *HTTPClient) do(ctx context.Context, targetURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", 0, utils.NewError(utils.ErrCodeFetchFailed, "failed to create request").WithCause(err).Build()
	}
	req.Header = antidetect.BrowserHeaders(c.userAgents.GetNext())
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, classifyTransportError(err, targetURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", resp.StatusCode, utils.NewError(utils.ErrCodeFetchFailed, fmt.Sprintf("HTTP error: %d", resp.StatusCode)).
			WithContext("status", resp.StatusCode).
			WithContext("url", targetURL).
			WithRetryable(shouldRetryStatusCode(resp.StatusCode)).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", 0, classifyTransportError(err, targetURL)
	}
	return string(data), resp.StatusCode, nil
}

// classifyTransportError maps network failures onto fetch error messages.
func classifyTransportError(err error, targetURL string) error {
	msg := "Failed to connect"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "Request timed out"
	}
	return utils.NewError(utils.ErrCodeFetchFailed, msg).
		WithCause(err).
		WithContext("url", targetURL).
		WithRetryable(true).
		Build()
}

// backoff implements exponential backoff with jitter
func (c *HTTPClient) backoff(attempt int) time.Duration {
	d := c.retryDelay * time.Duration(1<<uint(attempt))
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int63n(half))
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// shouldRetryStatusCode determines if a status code warrants a retry
func shouldRetryStatusCode(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504, 520, 521, 522, 523, 524:
		return true
	}
	return false
}

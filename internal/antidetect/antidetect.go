// internal/antidetect/antidetect.go
package antidetect

import (
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// UserAgentRotator rotates user agents
type UserAgentRotator struct {
	agents []string
	mu     sync.Mutex
	index  int
}

// NewUserAgentRotator creates a new user agent rotator
func NewUserAgentRotator(agents []string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = DefaultUserAgents()
	}
	return &UserAgentRotator{
		agents: append([]string(nil), agents...),
	}
}

// GetNext returns the next user agent
func (r *UserAgentRotator) GetNext() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[r.index]
	r.index = (r.index + 1) % len(r.agents)
	return agent
}

// GetRandom returns a random user agent
func (r *UserAgentRotator) GetRandom() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.agents[rand.Intn(len(r.agents))]
}

// BrowserHeaders returns the header set sent with every lightweight fetch.
// Accept-Encoding is left to the transport so that gzip bodies are
// decoded transparently.
func BrowserHeaders(userAgent string) http.Header {
	headers := make(http.Header)
	headers.Set("User-Agent", userAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	headers.Set("Accept-Language", "en-US,en;q=0.5")
	headers.Set("DNT", "1")
	headers.Set("Connection", "keep-alive")
	headers.Set("Upgrade-Insecure-Requests", "1")
	return headers
}

// DelayRandomizer provides random delays
type DelayRandomizer struct {
	min time.Duration
	max time.Duration
}

// NewDelayRandomizer creates a new delay randomizer
func NewDelayRandomizer(min, max time.Duration) *DelayRandomizer {
	if max < min {
		min, max = max, min
	}
	return &DelayRandomizer{min: min, max: max}
}

// GetDelay returns a random delay within the configured range
func (dr *DelayRandomizer) GetDelay() time.Duration {
	diff := dr.max - dr.min
	if diff <= 0 {
		return dr.min
	}
	return dr.min + time.Duration(rand.Int63n(int64(diff)))
}

// captchaIndicators are lower-case markers of an interstitial challenge page.
var captchaIndicators = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"challenge-form",
	"bot-detection",
	"verify you are human",
	"are you a robot",
	"prove you are not a robot",
}

// CaptchaDetector detects CAPTCHAs in HTML content
type CaptchaDetector struct {
	indicators []string
}

// NewCaptchaDetector creates a new CAPTCHA detector
func NewCaptchaDetector() *CaptchaDetector {
	return &CaptchaDetector{indicators: captchaIndicators}
}

// Detect reports whether the markup contains a challenge marker and which one.
func (cd *CaptchaDetector) Detect(html string) (string, bool) {
	lower := strings.ToLower(html)
	for _, indicator := range cd.indicators {
		if strings.Contains(lower, indicator) {
			return indicator, true
		}
	}
	return "", false
}

// DefaultUserAgents is the built-in desktop browser pool.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

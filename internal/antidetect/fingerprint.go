// internal/antidetect/fingerprint.go
package antidetect

import (
	"strings"

	"github.com/go-rod/stealth"
)

// Viewport represents screen dimensions
type Viewport struct {
	Width  int
	Height int
}

// Geolocation is a coordinate presented to pages that ask for it.
type Geolocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Fingerprint is the identity a rendered page sees. Every field is
// applied before the first document script runs.
type Fingerprint struct {
	UserAgent      string
	Viewport       Viewport
	Locale         string
	Languages      []string
	AcceptLanguage string
	Timezone       string
	Geolocation    Geolocation
}

// BrowserFingerprinter produces the fingerprint used for browser renders.
// Only the user agent rotates; the rest is a fixed, common desktop
// profile so that consecutive renders of one site look alike.
type BrowserFingerprinter struct {
	agents *UserAgentRotator
	base   Fingerprint
}

// NewBrowserFingerprinter creates a fingerprinter over the given UA pool.
func NewBrowserFingerprinter(agents *UserAgentRotator) *BrowserFingerprinter {
	if agents == nil {
		agents = NewUserAgentRotator(nil)
	}
	return &BrowserFingerprinter{agents: agents, base: DefaultFingerprint()}
}

// WithBase overrides the static part of the profile.
func (bf *BrowserFingerprinter) WithBase(fp Fingerprint) *BrowserFingerprinter {
	bf.base = fp
	return bf
}

// Generate returns the base profile with a freshly rotated user agent.
func (bf *BrowserFingerprinter) Generate() Fingerprint {
	fp := bf.base
	fp.Languages = append([]string(nil), bf.base.Languages...)
	fp.UserAgent = bf.agents.GetRandom()
	return fp
}

// DefaultFingerprint is a 1080p en-US desktop located in New York.
func DefaultFingerprint() Fingerprint {
	return Fingerprint{
		Viewport:       Viewport{Width: 1920, Height: 1080},
		Locale:         "en-US",
		Languages:      []string{"en-US", "en"},
		AcceptLanguage: "en-US,en;q=0.9",
		Timezone:       "America/New_York",
		Geolocation:    Geolocation{Latitude: 40.7128, Longitude: -74.0060, Accuracy: 100},
	}
}

// StealthScript returns the JavaScript evaluated on every new document:
// the go-rod stealth evasions followed by overrides matching fp.
func StealthScript(fp Fingerprint) string {
	langs := make([]string, 0, len(fp.Languages))
	for _, l := range fp.Languages {
		langs = append(langs, "'"+strings.ReplaceAll(l, "'", "")+"'")
	}

	var b strings.Builder
	b.WriteString(stealth.JS)
	b.WriteString("\n;(() => {\n")
	b.WriteString("  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });\n")
	b.WriteString("  Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });\n")
	b.WriteString("  Object.defineProperty(navigator, 'languages', { get: () => [" + strings.Join(langs, ", ") + "] });\n")
	b.WriteString("})();\n")
	return b.String()
}

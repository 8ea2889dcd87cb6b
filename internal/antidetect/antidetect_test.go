// internal/antidetect/antidetect_test.go
package antidetect

import (
	"strings"
	"testing"
	"time"
)

func TestUserAgentRotator_GetNextCycles(t *testing.T) {
	userAgents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
	}

	rotator := NewUserAgentRotator(userAgents)
	first, second, third := rotator.GetNext(), rotator.GetNext(), rotator.GetNext()
	if first != userAgents[0] || second != userAgents[1] || third != userAgents[0] {
		t.Errorf("unexpected rotation order: %q %q %q", first, second, third)
	}
}

func TestUserAgentRotator_DefaultPool(t *testing.T) {
	rotator := NewUserAgentRotator(nil)
	ua := rotator.GetRandom()
	if !strings.HasPrefix(ua, "Mozilla/5.0") {
		t.Errorf("unexpected default user agent %q", ua)
	}
}

func TestBrowserHeaders(t *testing.T) {
	h := BrowserHeaders("TestAgent/1.0")
	if h.Get("User-Agent") != "TestAgent/1.0" {
		t.Errorf("User-Agent = %q", h.Get("User-Agent"))
	}
	if h.Get("DNT") != "1" || h.Get("Upgrade-Insecure-Requests") != "1" {
		t.Error("expected DNT and Upgrade-Insecure-Requests headers")
	}
	if h.Get("Accept-Encoding") != "" {
		t.Error("Accept-Encoding must be left to the transport")
	}
}

func TestDelayRandomizer(t *testing.T) {
	dr := NewDelayRandomizer(time.Second, 3*time.Second)
	for i := 0; i < 100; i++ {
		d := dr.GetDelay()
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("delay %v out of range", d)
		}
	}
	if NewDelayRandomizer(0, 0).GetDelay() != 0 {
		t.Error("zero range should yield zero delay")
	}
}

func TestCaptchaDetector(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"recaptcha widget", `<div class="g-recaptcha" data-sitekey="x"></div>`, true},
		{"challenge text", `<h1>Please verify you are human</h1>`, true},
		{"mixed case", `<p>Are You A Robot?</p>`, true},
		{"clean listing", `<div class="product-card"><h2>Shoe</h2></div>`, false},
	}

	cd := NewCaptchaDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := cd.Detect(tt.html); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFingerprinter_Generate(t *testing.T) {
	fp := NewBrowserFingerprinter(NewUserAgentRotator([]string{"UA/1"})).Generate()

	if fp.UserAgent != "UA/1" {
		t.Errorf("UserAgent = %q", fp.UserAgent)
	}
	if fp.Viewport.Width != 1920 || fp.Viewport.Height != 1080 {
		t.Errorf("viewport = %+v", fp.Viewport)
	}
	if fp.Timezone != "America/New_York" || fp.Locale != "en-US" {
		t.Errorf("unexpected locale/timezone: %s %s", fp.Locale, fp.Timezone)
	}
	if fp.Geolocation.Latitude != 40.7128 || fp.Geolocation.Longitude != -74.0060 {
		t.Errorf("geolocation = %+v", fp.Geolocation)
	}
}

func TestStealthScript(t *testing.T) {
	script := StealthScript(DefaultFingerprint())
	for _, want := range []string{"'webdriver'", "[1, 2, 3, 4, 5]", "['en-US', 'en']"} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %s", want)
		}
	}
}

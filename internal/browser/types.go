// internal/browser/types.go
package browser

import (
	"time"
)

// BrowserConfig defines browser rendering configuration
type BrowserConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	Headless          bool          `yaml:"headless" json:"headless"`
	ExecPath          string        `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay"`
	ScrollDelay       time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
	MaxConcurrent     int           `yaml:"max_concurrent" json:"max_concurrent"`
	ExtraFlags        []string      `yaml:"extra_flags,omitempty" json:"extra_flags,omitempty"`
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Enabled:           true,
		Headless:          true,
		NavigationTimeout: 60 * time.Second,
		SettleDelay:       3 * time.Second,
		ScrollDelay:       time.Second,
		MaxConcurrent:     2,
	}
}

// BrowserStats contains rendering counters
type BrowserStats struct {
	PagesRendered   int64         `json:"pages_rendered"`
	Fallbacks       int64         `json:"navigation_fallbacks"`
	Errors          int64         `json:"errors"`
	CaptchaDetected int64         `json:"captcha_detected"`
	AverageLoadTime time.Duration `json:"average_load_time"`
}

// internal/config/types.go
package config

import (
	"strings"
	"time"

	"github.com/valpere/PriceScrapexter/internal/antidetect"
	"github.com/valpere/PriceScrapexter/internal/browser"
	"github.com/valpere/PriceScrapexter/internal/events"
	"github.com/valpere/PriceScrapexter/internal/lock"
	"github.com/valpere/PriceScrapexter/internal/monitoring"
	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/scraper"
	"github.com/valpere/PriceScrapexter/internal/storage/sqlstore"
	"github.com/valpere/PriceScrapexter/internal/tracker"
)

// Config is the service configuration file.
type Config struct {
	Database   sqlstore.Config          `yaml:"database" json:"database"`
	Fetch      FetchConfig              `yaml:"fetch" json:"fetch"`
	Browser    BrowserConfig            `yaml:"browser" json:"browser"`
	LLM        LLMConfig                `yaml:"llm" json:"llm"`
	Compaction pipeline.Config          `yaml:"compaction" json:"compaction"`
	Scheduler  SchedulerConfig          `yaml:"scheduler" json:"scheduler"`
	Sync       tracker.Config           `yaml:"sync" json:"sync"`
	Server     ServerConfig             `yaml:"server" json:"server"`
	Metrics    monitoring.MetricsConfig `yaml:"metrics" json:"metrics"`
	Events     EventsConfig             `yaml:"events" json:"events"`
	Lock       LockConfig               `yaml:"lock" json:"lock"`
	Logging    LoggingConfig            `yaml:"logging" json:"logging"`
}

// FetchConfig tunes the lightweight HTTP fetch and the escalation policy.
type FetchConfig struct {
	Timeout       time.Duration     `yaml:"timeout" json:"timeout"`
	RetryAttempts int               `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay    time.Duration     `yaml:"retry_delay" json:"retry_delay"`
	UserAgents    []string          `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	RateLimit     float64           `yaml:"rate_limit" json:"rate_limit"`
	RateBurst     int               `yaml:"rate_burst" json:"rate_burst"`
	DelayMin      time.Duration     `yaml:"delay_min" json:"delay_min"`
	DelayMax      time.Duration     `yaml:"delay_max" json:"delay_max"`
	MinTextLength int               `yaml:"min_text_length" json:"min_text_length"`
}

// BrowserConfig is the renderer configuration plus the fingerprint
// presented to rendered pages.
type BrowserConfig struct {
	browser.BrowserConfig `yaml:",inline"`

	ViewportWidth  int     `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int     `yaml:"viewport_height" json:"viewport_height"`
	Locale         string  `yaml:"locale" json:"locale"`
	Timezone       string  `yaml:"timezone" json:"timezone"`
	Latitude       float64 `yaml:"latitude" json:"latitude"`
	Longitude      float64 `yaml:"longitude" json:"longitude"`
}

// LLMConfig configures the model provider. APIKey is the fallback used
// when a user has no stored credential.
type LLMConfig struct {
	Provider     string        `yaml:"provider" json:"provider"`
	BaseURL      string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	DefaultModel string        `yaml:"default_model" json:"default_model"`
	APIKey       string        `yaml:"api_key,omitempty" json:"-"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// SchedulerConfig drives the periodic sync loop.
type SchedulerConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
	SyncTimeout  time.Duration `yaml:"sync_timeout" json:"sync_timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	APIToken        string        `yaml:"api_token,omitempty" json:"-"`
	RateLimit       float64       `yaml:"rate_limit" json:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst" json:"rate_burst"`
}

// EventsConfig configures product event publishing.
type EventsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	URL        string `yaml:"url" json:"-"`
	Exchange   string `yaml:"exchange" json:"exchange"`
	QueueName  string `yaml:"queue_name,omitempty" json:"queue_name,omitempty"`
	RoutingKey string `yaml:"routing_key" json:"routing_key"`
}

// LockConfig selects the per-source lock backend.
type LockConfig struct {
	Backend       string        `yaml:"backend" json:"backend"`
	RedisAddr     string        `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int           `yaml:"redis_db" json:"redis_db"`
	Prefix        string        `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
}

// LoggingConfig selects the zap preset and level.
type LoggingConfig struct {
	Mode  string `yaml:"mode" json:"mode"`
	Level string `yaml:"level" json:"level"`
}

const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"

	ProviderAnthropic = "anthropic"
)

// ClientConfig maps the fetch section onto the HTTP client settings.
func (f FetchConfig) ClientConfig() scraper.ClientConfig {
	return scraper.ClientConfig{
		Timeout:       f.Timeout,
		RetryAttempts: f.RetryAttempts,
		RetryDelay:    f.RetryDelay,
		UserAgents:    f.UserAgents,
		Headers:       f.Headers,
		RateLimit:     f.RateLimit,
		RateBurst:     f.RateBurst,
	}
}

// FetcherConfig maps the fetch section onto the escalation policy.
func (f FetchConfig) FetcherConfig() scraper.FetcherConfig {
	return scraper.FetcherConfig{
		MinTextLength: f.MinTextLength,
		DelayMin:      f.DelayMin,
		DelayMax:      f.DelayMax,
	}
}

// Fingerprint returns the browser profile described by the section,
// starting from the default desktop profile.
func (b BrowserConfig) Fingerprint() antidetect.Fingerprint {
	fp := antidetect.DefaultFingerprint()
	if b.ViewportWidth > 0 && b.ViewportHeight > 0 {
		fp.Viewport = antidetect.Viewport{Width: b.ViewportWidth, Height: b.ViewportHeight}
	}
	if b.Locale != "" && b.Locale != fp.Locale {
		fp.Locale = b.Locale
		lang := b.Locale
		if i := strings.IndexByte(lang, '-'); i > 0 {
			lang = lang[:i]
		}
		fp.Languages = []string{b.Locale, lang}
		fp.AcceptLanguage = b.Locale + "," + lang + ";q=0.9"
	}
	if b.Timezone != "" {
		fp.Timezone = b.Timezone
	}
	if b.Latitude != 0 || b.Longitude != 0 {
		fp.Geolocation = antidetect.Geolocation{Latitude: b.Latitude, Longitude: b.Longitude, Accuracy: 100}
	}
	return fp
}

// RabbitMQConfig maps the events section onto the publisher settings.
func (e EventsConfig) RabbitMQConfig() events.RabbitMQConfig {
	return events.RabbitMQConfig{
		URL:        e.URL,
		Exchange:   e.Exchange,
		QueueName:  e.QueueName,
		BindingKey: e.RoutingKey,
	}
}

// RedisConfig maps the lock section onto the Redis locker settings.
func (l LockConfig) RedisConfig() lock.RedisConfig {
	return lock.RedisConfig{
		Addr:     l.RedisAddr,
		Password: l.RedisPassword,
		DB:       l.RedisDB,
		Prefix:   l.Prefix,
		TTL:      l.TTL,
	}
}

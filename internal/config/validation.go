// internal/config/validation.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/storage/sqlstore"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Path, ve.Message)
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) fail(path, format string, args ...interface{}) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate returns an error listing every problem found, or nil.
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if result.Valid {
		return nil
	}
	return formatValidationError(result)
}

// ValidateWithDetails provides detailed validation results
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateDatabase(result)
	c.validateFetch(result)
	c.validateLLM(result)
	c.validateScheduler(result)
	c.validateEvents(result)
	c.validateLock(result)
	c.validateLogging(result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateDatabase(result *ValidationResult) {
	switch c.Database.Driver {
	case sqlstore.DriverPostgres, sqlstore.DriverSQLite, sqlstore.DriverMySQL:
	default:
		result.fail("database.driver", "unsupported driver %q (want postgres, sqlite3 or mysql)", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		result.fail("database.dsn", "DSN is required")
	}
}

func (c *Config) validateFetch(result *ValidationResult) {
	if c.Fetch.Timeout < 0 {
		result.fail("fetch.timeout", "must not be negative")
	}
	if c.Fetch.RetryAttempts < 0 {
		result.fail("fetch.retry_attempts", "must not be negative")
	}
	if c.Fetch.RateLimit < 0 {
		result.fail("fetch.rate_limit", "must not be negative")
	}
	if c.Fetch.DelayMin < 0 || c.Fetch.DelayMax < 0 {
		result.fail("fetch.delay_min", "delays must not be negative")
	} else if c.Fetch.DelayMax < c.Fetch.DelayMin {
		result.fail("fetch.delay_max", "must be at least delay_min")
	}
	if c.Fetch.MinTextLength < 0 {
		result.fail("fetch.min_text_length", "must not be negative")
	}
	if !c.Browser.Enabled {
		result.warn("browser rendering is disabled; JavaScript-only sites will fail")
	}
}

func (c *Config) validateLLM(result *ValidationResult) {
	if c.LLM.Provider != ProviderAnthropic {
		result.fail("llm.provider", "unsupported provider %q", c.LLM.Provider)
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			result.fail("llm.base_url", "invalid URL %q", c.LLM.BaseURL)
		}
	}
	if c.LLM.MaxRetries < 0 {
		result.fail("llm.max_retries", "must not be negative")
	}
	if !llm.IsKnownModel(c.LLM.DefaultModel) {
		result.warn("llm.default_model %q is not in the model catalog", c.LLM.DefaultModel)
	}
	if c.Compaction.SynthesisMaxLength < 0 || c.Compaction.DirectMaxLength < 0 {
		result.fail("compaction", "budgets must not be negative")
	}
}

func (c *Config) validateScheduler(result *ValidationResult) {
	if c.Scheduler.TickInterval < 0 {
		result.fail("scheduler.tick_interval", "must not be negative")
	}
	if c.Scheduler.SyncTimeout < 0 {
		result.fail("scheduler.sync_timeout", "must not be negative")
	}
	if c.Server.RateLimit < 0 {
		result.fail("server.rate_limit", "must not be negative")
	}
}

func (c *Config) validateEvents(result *ValidationResult) {
	if !c.Events.Enabled {
		return
	}
	u, err := url.Parse(c.Events.URL)
	if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
		result.fail("events.url", "must be an amqp:// or amqps:// URL")
	}
	if c.Events.Exchange == "" {
		result.fail("events.exchange", "exchange is required")
	}
}

func (c *Config) validateLock(result *ValidationResult) {
	switch c.Lock.Backend {
	case LockBackendMemory:
	case LockBackendRedis:
		if c.Lock.RedisAddr == "" {
			result.fail("lock.redis_addr", "required for the redis backend")
		}
	default:
		result.fail("lock.backend", "unsupported backend %q (want memory or redis)", c.Lock.Backend)
	}
	if c.Lock.TTL < 0 {
		result.fail("lock.ttl", "must not be negative")
	}
}

func (c *Config) validateLogging(result *ValidationResult) {
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		result.fail("logging.level", "unknown level %q", c.Logging.Level)
	}
}

// formatValidationError creates a comprehensive error message
func formatValidationError(result *ValidationResult) error {
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for i, err := range result.Errors {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, err.Error())
	}
	return fmt.Errorf("%s", b.String())
}

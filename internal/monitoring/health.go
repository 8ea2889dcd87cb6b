// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck is a named probe. A failing critical check makes the whole
// service unhealthy; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Check    func(ctx context.Context) error
}

// CheckResult is the latest outcome of one check.
type CheckResult struct {
	Status    HealthStatus  `json:"status"`
	Error     string        `json:"error,omitempty"`
	Critical  bool          `json:"critical"`
	LastCheck time.Time     `json:"last_check"`
	Duration  time.Duration `json:"duration"`
}

// HealthConfig configuration for health monitoring
type HealthConfig struct {
	Version        string
	DefaultTimeout time.Duration
	CacheTTL       time.Duration
}

// SystemHealth represents overall system health information
type SystemHealth struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	System    SystemMetrics          `json:"system"`
}

// SystemMetrics provides system-level metrics
type SystemMetrics struct {
	GoroutineCount int    `json:"goroutine_count"`
	AllocatedBytes uint64 `json:"allocated_bytes"`
	NumGC          uint32 `json:"num_gc"`
}

// HealthManager runs registered checks and serves the aggregate.
type HealthManager struct {
	mu      sync.RWMutex
	checks  []HealthCheck
	results map[string]CheckResult
	lastRun time.Time
	started time.Time
	config  HealthConfig
}

// NewHealthManager creates a new health manager
func NewHealthManager(config HealthConfig) *HealthManager {
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 5 * time.Second
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Second
	}
	return &HealthManager{
		results: make(map[string]CheckResult),
		started: time.Now(),
		config:  config,
	}
}

// RegisterCheck registers a new health check
func (hm *HealthManager) RegisterCheck(check HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = hm.config.DefaultTimeout
	}
	hm.mu.Lock()
	hm.checks = append(hm.checks, check)
	hm.lastRun = time.Time{}
	hm.mu.Unlock()
}

// RunChecks runs every check concurrently and stores the results.
func (hm *HealthManager) RunChecks(ctx context.Context) {
	hm.mu.RLock()
	checks := append([]HealthCheck(nil), hm.checks...)
	hm.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			r := runCheck(ctx, c)
			mu.Lock()
			results[c.Name] = r
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	hm.mu.Lock()
	hm.results = results
	hm.lastRun = time.Now()
	hm.mu.Unlock()
}

func runCheck(ctx context.Context, check HealthCheck) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	result := CheckResult{Critical: check.Critical, LastCheck: start, Status: HealthStatusHealthy}
	if check.Check == nil {
		result.Status = HealthStatusUnknown
	} else if err := check.Check(checkCtx); err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = err.Error()
	}
	result.Duration = time.Since(start)
	return result
}

// GetHealth returns the overall health status from the latest results.
func (hm *HealthManager) GetHealth() SystemHealth {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	health := SystemHealth{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Version:   hm.config.Version,
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult, len(hm.results)),
		System: SystemMetrics{
			GoroutineCount: runtime.NumGoroutine(),
			AllocatedBytes: m.Alloc,
			NumGC:          m.NumGC,
		},
	}

	for name, r := range hm.results {
		health.Checks[name] = r
		switch {
		case r.Status == HealthStatusHealthy:
		case r.Critical && r.Status == HealthStatusUnhealthy:
			health.Status = HealthStatusUnhealthy
		case health.Status == HealthStatusHealthy:
			health.Status = HealthStatusDegraded
		}
	}
	return health
}

// HealthHandler serves the aggregate as JSON, re-running checks when the
// cached results are older than CacheTTL.
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hm.mu.RLock()
		stale := time.Since(hm.lastRun) > hm.config.CacheTTL
		hm.mu.RUnlock()
		if stale {
			hm.RunChecks(r.Context())
		}

		health := hm.GetHealth()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// DatabaseHealthCheck creates a database connectivity health check
func DatabaseHealthCheck(name string, ping func(ctx context.Context) error) HealthCheck {
	return HealthCheck{Name: name, Critical: true, Check: ping}
}

// GoroutineHealthCheck degrades the service above max goroutines.
func GoroutineHealthCheck(max int) HealthCheck {
	return HealthCheck{
		Name: "goroutines",
		Check: func(context.Context) error {
			if n := runtime.NumGoroutine(); n > max {
				return fmt.Errorf("goroutine count %d above threshold %d", n, max)
			}
			return nil
		},
	}
}

// internal/monitoring/monitoring_test.go
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/scraper"
)

func TestMetricsManager_Observers(t *testing.T) {
	mm := NewMetricsManager(MetricsConfig{Namespace: "test"})

	mm.ObserveFetch(scraper.StrategyStatic, "success", 200*time.Millisecond)
	mm.ObserveFetch(scraper.StrategyBrowser, "FETCH_BLOCKED", time.Second)
	mm.ObserveExtraction(pipeline.MethodSelectors, 12)
	mm.ObserveExtraction(pipeline.MethodDirect, 0)

	done := time.Now()
	mm.ObserveSync(&domain.SyncLog{
		SourceID:             3,
		Status:               domain.SyncSuccess,
		ProductsAdded:        2,
		ProductsUpdated:      10,
		TokensUsed:           1500,
		SelectorsRegenerated: true,
		CompletedAt:          &done,
	}, 4*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(mm.fetchesTotal.WithLabelValues("browser", "FETCH_BLOCKED")))
	assert.Equal(t, 12.0, testutil.ToFloat64(mm.productsExtracted.WithLabelValues("selectors")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.extractionsEmpty))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.syncsTotal.WithLabelValues("success")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(mm.llmTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.selectorsRegenerated))
	assert.Equal(t, float64(done.Unix()), testutil.ToFloat64(mm.lastSyncTimestamp.WithLabelValues("3")))
}

func TestMetricsManager_Handler(t *testing.T) {
	mm := NewMetricsManager(MetricsConfig{})
	mm.RecordRequest(http.MethodPost, "/api/sources/{id}/sync", http.StatusConflict, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	mm.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), `pricescrapexter_http_requests_total{method="POST",route="/api/sources/{id}/sync",status_code="409"} 1`)
}

func TestMetricsManager_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetricsManager(MetricsConfig{EnableGoMetrics: true})
		NewMetricsManager(MetricsConfig{EnableGoMetrics: true})
	})
}

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager(HealthConfig{Version: "1.0.0"})
	hm.RegisterCheck(DatabaseHealthCheck("database", func(context.Context) error { return nil }))
	hm.RegisterCheck(HealthCheck{Name: "broker", Check: func(context.Context) error { return errors.New("connection refused") }})

	hm.RunChecks(context.Background())
	health := hm.GetHealth()

	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Equal(t, "1.0.0", health.Version)
	require.Contains(t, health.Checks, "broker")
	assert.Equal(t, "connection refused", health.Checks["broker"].Error)
	assert.Equal(t, HealthStatusHealthy, health.Checks["database"].Status)
}

func TestHealthHandler_CriticalFailure(t *testing.T) {
	hm := NewHealthManager(HealthConfig{})
	hm.RegisterCheck(DatabaseHealthCheck("database", func(context.Context) error { return errors.New("no such host") }))

	rec := httptest.NewRecorder()
	hm.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	var body SystemHealth
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, HealthStatusUnhealthy, body.Status)
}

func TestHealthCheck_Timeout(t *testing.T) {
	check := HealthCheck{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	r := runCheck(context.Background(), check)
	assert.Equal(t, HealthStatusUnhealthy, r.Status)
	assert.Contains(t, r.Error, "deadline")
}

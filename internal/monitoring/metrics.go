// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/scraper"
)

// MetricsManager manages Prometheus metrics for PriceScrapexter
type MetricsManager struct {
	registry *prometheus.Registry

	// HTTP API metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Fetch metrics
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// Extraction metrics
	extractionsTotal  *prometheus.CounterVec
	productsExtracted *prometheus.CounterVec
	extractionsEmpty  prometheus.Counter

	// Sync metrics
	syncsTotal           *prometheus.CounterVec
	syncDuration         *prometheus.HistogramVec
	productsAdded        prometheus.Counter
	productsUpdated      prometheus.Counter
	llmTokens            prometheus.Counter
	selectorsRegenerated prometheus.Counter
	lastSyncTimestamp    *prometheus.GaugeVec

	namespace string
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace            string `yaml:"namespace" json:"namespace"`
	Enabled              bool   `yaml:"enabled" json:"enabled"`
	EnableGoMetrics      bool   `yaml:"enable_go_metrics" json:"enable_go_metrics"`
	EnableProcessMetrics bool   `yaml:"enable_process_metrics" json:"enable_process_metrics"`
	MetricsPath          string `yaml:"path" json:"path"`
}

// NewMetricsManager creates a new metrics manager with its own registry.
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "pricescrapexter"
	}

	mm := &MetricsManager{
		registry:  prometheus.NewRegistry(),
		namespace: config.Namespace,
	}
	if config.EnableGoMetrics {
		mm.registry.MustRegister(collectors.NewGoCollector())
	}
	if config.EnableProcessMetrics {
		mm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	mm.initializeMetrics()

	return mm
}

// initializeMetrics initializes all Prometheus metrics
func (mm *MetricsManager) initializeMetrics() {
	factory := promauto.With(mm.registry)

	mm.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	mm.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	mm.fetchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Page fetch attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	mm.fetchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Page fetch duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"strategy"},
	)

	mm.extractionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "extraction",
			Name:      "runs_total",
			Help:      "Extraction runs by the tier that produced the result",
		},
		[]string{"method"},
	)

	mm.productsExtracted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "extraction",
			Name:      "products_total",
			Help:      "Products extracted by tier",
		},
		[]string{"method"},
	)

	mm.extractionsEmpty = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "extraction",
			Name:      "empty_total",
			Help:      "Extraction runs that found no products after every tier",
		},
	)

	mm.syncsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "sync",
			Name:      "attempts_total",
			Help:      "Finished sync attempts by status",
		},
		[]string{"status"},
	)

	mm.syncDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Sync attempt duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	mm.productsAdded = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "sync",
			Name:      "products_added_total",
			Help:      "Products created by syncs",
		},
	)

	mm.productsUpdated = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "sync",
			Name:      "products_updated_total",
			Help:      "Existing products refreshed by syncs",
		},
	)

	mm.llmTokens = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "LLM tokens consumed by syncs",
		},
	)

	mm.selectorsRegenerated = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "sync",
			Name:      "selectors_regenerated_total",
			Help:      "Syncs that replaced stale selectors",
		},
	)

	mm.lastSyncTimestamp = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: "sync",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time of the last finished sync per source",
		},
		[]string{"source_id"},
	)
}

// RecordRequest records one served API request.
func (mm *MetricsManager) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	mm.requestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	mm.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFetch implements scraper.FetchObserver.
func (mm *MetricsManager) ObserveFetch(strategy scraper.Strategy, outcome string, duration time.Duration) {
	mm.fetchesTotal.WithLabelValues(string(strategy), outcome).Inc()
	mm.fetchDuration.WithLabelValues(string(strategy)).Observe(duration.Seconds())
}

// ObserveExtraction implements pipeline.Observer.
func (mm *MetricsManager) ObserveExtraction(method pipeline.Method, products int) {
	mm.extractionsTotal.WithLabelValues(string(method)).Inc()
	mm.productsExtracted.WithLabelValues(string(method)).Add(float64(products))
	if products == 0 {
		mm.extractionsEmpty.Inc()
	}
}

// ObserveSync implements tracker.SyncObserver.
func (mm *MetricsManager) ObserveSync(entry *domain.SyncLog, duration time.Duration) {
	status := string(entry.Status)
	mm.syncsTotal.WithLabelValues(status).Inc()
	mm.syncDuration.WithLabelValues(status).Observe(duration.Seconds())
	mm.productsAdded.Add(float64(entry.ProductsAdded))
	mm.productsUpdated.Add(float64(entry.ProductsUpdated))
	mm.llmTokens.Add(float64(entry.TokensUsed))
	if entry.SelectorsRegenerated {
		mm.selectorsRegenerated.Inc()
	}
	if entry.CompletedAt != nil {
		mm.lastSyncTimestamp.WithLabelValues(strconv.FormatInt(entry.SourceID, 10)).Set(float64(entry.CompletedAt.Unix()))
	}
}

// Registry exposes the underlying registry.
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// MetricsHandler returns an HTTP handler for metrics endpoint
func (mm *MetricsManager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{Registry: mm.registry})
}

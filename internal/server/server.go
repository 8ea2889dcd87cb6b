// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/monitoring"
	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// Syncer runs one source sync.
type Syncer interface {
	SyncSource(ctx context.Context, sourceID int64) (*domain.SyncLog, error)
}

// StatsReader summarizes recent syncs of a source.
type StatsReader interface {
	Stats(ctx context.Context, sourceID int64) (domain.SyncStats, error)
}

// ProductReader reads tracked products.
type ProductReader interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
	ListBySource(ctx context.Context, sourceID int64) ([]domain.Product, error)
}

// HistoryReader reads a product's price history, oldest first.
type HistoryReader interface {
	ListByProduct(ctx context.Context, productID int64) ([]domain.PriceHistory, error)
}

// Analyzer runs an instrumented page analysis.
type Analyzer interface {
	Analyze(ctx context.Context, url string, sink pipeline.EventSink) pipeline.Event
}

// AnalyzerFactory builds an Analyzer with the user's LLM credential.
type AnalyzerFactory func(ctx context.Context, userID int64) (Analyzer, error)

// Dependencies are the services behind the routes. Metrics and Health
// may be nil.
type Dependencies struct {
	Syncer    Syncer
	Stats     StatsReader
	Products  ProductReader
	History   HistoryReader
	Analyzers AnalyzerFactory
	Metrics   *monitoring.MetricsManager
	Health    *monitoring.HealthManager
}

// Config configures the listener and request guards.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	// APIToken, when set, is required as a Bearer token on /api routes.
	APIToken  string
	RateLimit float64
	RateBurst int
}

// Server is the HTTP surface.
type Server struct {
	config  Config
	deps    Dependencies
	router  *mux.Router
	limiter *rate.Limiter
	logger  utils.Logger
}

// New builds the router.
func New(config Config, deps Dependencies, logger utils.Logger) *Server {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if config.Address == "" {
		config.Address = ":8080"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		config:  config,
		deps:    deps,
		router:  mux.NewRouter(),
		limiter: newLimiter(config.RateLimit, config.RateBurst),
		logger:  logger.WithField("component", "server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(s.recoverMiddleware, s.metricsMiddleware)

	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.MetricsHandler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware, s.rateLimitMiddleware)
	api.HandleFunc("/sources/{id:[0-9]+}/sync", s.syncHandler).Methods(http.MethodPost)
	api.HandleFunc("/sources/{id:[0-9]+}/stats", s.statsHandler).Methods(http.MethodGet)
	api.HandleFunc("/sources/{id:[0-9]+}/export", s.exportHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}/history", s.historyHandler).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.analyzeHandler).Methods(http.MethodPost)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", s.config.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

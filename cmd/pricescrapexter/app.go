// cmd/pricescrapexter/app.go
package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/valpere/PriceScrapexter/internal/antidetect"
	"github.com/valpere/PriceScrapexter/internal/browser"
	"github.com/valpere/PriceScrapexter/internal/config"
	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/events"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/lock"
	"github.com/valpere/PriceScrapexter/internal/monitoring"
	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/scraper"
	"github.com/valpere/PriceScrapexter/internal/server"
	"github.com/valpere/PriceScrapexter/internal/storage/sqlstore"
	"github.com/valpere/PriceScrapexter/internal/tracker"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// app is the wired service graph shared by the commands.
type app struct {
	cfg    *config.Config
	logger utils.Logger

	db       *sqlx.DB
	sources  *sqlstore.SourceStore
	products *sqlstore.ProductStore
	history  *sqlstore.PriceHistoryStore
	logs     *sqlstore.SyncLogStore

	metrics      *monitoring.MetricsManager
	health       *monitoring.HealthManager
	fetcher      *scraper.Fetcher
	providers    llm.Factory
	credentials  *tracker.StoreCredentialResolver
	orchestrator *tracker.Orchestrator

	closers []func() error
}

// newApp opens the database and builds every component the config
// enables. Call close when done.
func newApp(ctx context.Context, cfg *config.Config, logger utils.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	a.sources = sqlstore.NewSourceStore(db)
	a.products = sqlstore.NewProductStore(db)
	a.history = sqlstore.NewPriceHistoryStore(db)
	a.logs = sqlstore.NewSyncLogStore(db)

	if cfg.Metrics.Enabled {
		a.metrics = monitoring.NewMetricsManager(cfg.Metrics)
	}
	a.health = monitoring.NewHealthManager(monitoring.HealthConfig{Version: version})
	a.health.RegisterCheck(monitoring.DatabaseHealthCheck("database", db.PingContext))
	a.health.RegisterCheck(monitoring.GoroutineHealthCheck(10000))

	a.fetcher = a.buildFetcher()
	a.providers = llm.NewAnthropicFactory(llm.AnthropicConfig{
		BaseURL:    cfg.LLM.BaseURL,
		MaxRetries: cfg.LLM.MaxRetries,
		Timeout:    cfg.LLM.Timeout,
	})
	a.credentials = tracker.NewCredentialResolver(sqlstore.NewCredentialStore(db), cfg.LLM.APIKey, cfg.LLM.DefaultModel)

	a.orchestrator = tracker.NewOrchestrator(
		tracker.Stores{Sources: a.sources, Products: a.products, History: a.history, Logs: a.logs},
		a.credentials,
		func(cred domain.Credential) tracker.Extractor { return a.pipelineFor(cred) },
		sqlstore.NewTransactionManager(db),
		logger,
		cfg.Sync,
	)
	if a.metrics != nil {
		a.orchestrator.SetObserver(a.metrics)
	}

	if err := a.attachLocker(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.attachPublisher(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildFetcher() *scraper.Fetcher {
	cfg := a.cfg
	fingerprints := antidetect.NewBrowserFingerprinter(antidetect.NewUserAgentRotator(cfg.Fetch.UserAgents)).
		WithBase(cfg.Browser.Fingerprint())

	var renderer scraper.Renderer
	if cfg.Browser.Enabled {
		browserCfg := cfg.Browser.BrowserConfig
		renderer = browser.NewChromeRenderer(&browserCfg, a.logger)
	}

	f := scraper.NewFetcher(scraper.NewHTTPClient(cfg.Fetch.ClientConfig()), renderer, fingerprints, cfg.Fetch.FetcherConfig(), a.logger)
	if a.metrics != nil {
		f.SetObserver(a.metrics)
	}
	return f
}

func (a *app) attachLocker(ctx context.Context) error {
	switch a.cfg.Lock.Backend {
	case config.LockBackendRedis:
		locker, err := lock.NewRedisLocker(ctx, a.cfg.Lock.RedisConfig(), a.logger)
		if err != nil {
			return fmt.Errorf("connect lock backend: %w", err)
		}
		a.closers = append(a.closers, locker.Close)
		a.orchestrator.SetLocker(locker)
	default:
		a.orchestrator.SetLocker(lock.NewMemoryLocker())
	}
	return nil
}

func (a *app) attachPublisher() error {
	if !a.cfg.Events.Enabled {
		return nil
	}
	publisher, err := events.NewRabbitMQPublisher(a.cfg.Events.RabbitMQConfig(), a.logger)
	if err != nil {
		return fmt.Errorf("connect event broker: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)
	a.orchestrator.SetPublisher(publisher)
	return nil
}

// pipelineFor binds the extraction pipeline to a credential.
func (a *app) pipelineFor(cred domain.Credential) *pipeline.Pipeline {
	p := pipeline.New(a.fetcher, a.providers(cred.APIKey), cred.Model, a.cfg.Compaction, a.logger)
	if a.metrics != nil {
		p.SetObserver(a.metrics)
	}
	return p
}

// analyzerFor resolves the user's credential and returns a pipeline for it.
func (a *app) analyzerFor(ctx context.Context, userID int64) (server.Analyzer, error) {
	cred, err := a.credentials.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.pipelineFor(cred), nil
}

func (a *app) newServer() *server.Server {
	return server.New(server.Config{
		Address:         a.cfg.Server.Address,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		APIToken:        a.cfg.Server.APIToken,
		RateLimit:       a.cfg.Server.RateLimit,
		RateBurst:       a.cfg.Server.RateBurst,
	}, server.Dependencies{
		Syncer:    a.orchestrator,
		Stats:     a.orchestrator,
		Products:  a.products,
		History:   a.history,
		Analyzers: a.analyzerFor,
		Metrics:   a.metrics,
		Health:    a.health,
	}, a.logger)
}

func (a *app) newScheduler() *tracker.Scheduler {
	s := tracker.NewScheduler(a.sources, a.orchestrator, a.cfg.Scheduler.TickInterval, a.logger)
	s.SetSyncTimeout(a.cfg.Scheduler.SyncTimeout)
	s.SetPacer(a.fetcher)
	return s
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warnf("close: %v", err)
		}
	}
	a.closers = nil
}

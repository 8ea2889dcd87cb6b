// internal/tracker/orchestrator.go

// Package tracker turns extraction results into tracked product state.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/events"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/lock"
	"github.com/valpere/PriceScrapexter/internal/storage/sqlstore"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// ErrSourceNotFound is returned when the source does not exist.
var ErrSourceNotFound = errors.New("source not found")

// unknownProductName replaces an empty extracted name on creation.
const unknownProductName = "Unknown Product"

// ExtractorFactory binds the extraction pipeline to a credential.
type ExtractorFactory func(cred domain.Credential) Extractor

// SyncObserver receives every finalized sync log.
type SyncObserver interface {
	ObserveSync(entry *domain.SyncLog, duration time.Duration)
}

// Config tunes the orchestrator.
type Config struct {
	MarkMissingUnavailable bool `yaml:"mark_missing_unavailable" json:"mark_missing_unavailable"`
}

// Stores groups the persistence dependencies.
type Stores struct {
	Sources  SourceStore
	Products ProductStore
	History  PriceHistoryStore
	Logs     SyncLogStore
}

// Orchestrator runs one sync attempt per call.
type Orchestrator struct {
	sources     SourceStore
	products    ProductStore
	history     PriceHistoryStore
	logs        SyncLogStore
	credentials CredentialResolver
	extractors  ExtractorFactory
	txManager   TransactionManager
	publisher   Publisher
	locker      Locker
	observer    SyncObserver
	config      Config
	logger      utils.Logger
	now         func() time.Time
}

// NewOrchestrator wires the orchestrator. Publishing, locking and
// observation are optional and attached with the Set methods.
func NewOrchestrator(
	stores Stores,
	credentials CredentialResolver,
	extractors ExtractorFactory,
	txManager TransactionManager,
	logger utils.Logger,
	cfg Config,
) *Orchestrator {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Orchestrator{
		sources:     stores.Sources,
		products:    stores.Products,
		history:     stores.History,
		logs:        stores.Logs,
		credentials: credentials,
		extractors:  extractors,
		txManager:   txManager,
		publisher:   events.NopPublisher{},
		config:      cfg,
		logger:      logger.WithField("component", "orchestrator"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher attaches a product event publisher.
func (o *Orchestrator) SetPublisher(p Publisher) {
	if p != nil {
		o.publisher = p
	}
}

// SetLocker enables single-flight per source.
func (o *Orchestrator) SetLocker(l Locker) {
	o.locker = l
}

// SetObserver attaches a metrics observer.
func (o *Orchestrator) SetObserver(obs SyncObserver) {
	o.observer = obs
}

// SetClock replaces the time source.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// syncResult is what a successful attempt produced.
type syncResult struct {
	added   int
	updated int
	seen    []int64
	events  []events.ProductEvent
}

// SyncSource runs one sync attempt for the source. A failed attempt is
// reported through the returned log's status; the error is non-nil only
// when the attempt could not start or could not be recorded.
// lock.ErrLocked is returned when another sync of the source is running.
func (o *Orchestrator) SyncSource(ctx context.Context, sourceID int64) (*domain.SyncLog, error) {
	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, lock.SourceKey(sourceID))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	// Loaded under the lock so a sync that just finished is not overwritten.
	src, err := o.sources.Get(ctx, sourceID)
	if errors.Is(err, sqlstore.ErrNotFound) || (err == nil && src == nil) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load source %d: %w", sourceID, err)
	}

	log := o.logger.WithFields(map[string]interface{}{
		"source_id": src.ID,
		"url":       src.URL,
	})

	started := o.now()
	entry := &domain.SyncLog{
		SourceID:  src.ID,
		Status:    domain.SyncRunning,
		StartedAt: started,
	}
	if err := o.logs.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create sync log: %w", err)
	}
	log.Info("starting sync")

	usage := llm.NewUsage()
	result, runErr := o.run(ctx, src, entry, usage, log)

	finished := o.now()
	entry.CompletedAt = &finished
	entry.TokensUsed = usage.Total()
	if runErr != nil {
		entry.Status = domain.SyncFailed
		entry.ErrorMessage = runErr.Error()
		src.RecordFailure(finished, entry.ErrorMessage)
		log.Errorf("sync failed (%d consecutive): %v", src.ConsecutiveFailures, runErr)
	} else {
		entry.Status = domain.SyncSuccess
		src.RecordSuccess(finished)
	}

	// The attempt is recorded even when the caller's context is gone.
	finalCtx := context.WithoutCancel(ctx)
	if err := o.logs.Finish(finalCtx, entry); err != nil {
		return entry, fmt.Errorf("finish sync log: %w", err)
	}
	if err := o.sources.Update(finalCtx, src); err != nil {
		return entry, fmt.Errorf("update source: %w", err)
	}
	if o.observer != nil {
		o.observer.ObserveSync(entry, finished.Sub(started))
	}

	if runErr == nil {
		log.Infof("synced source: %d found, %d added, %d updated, %d tokens",
			entry.ProductsFound, entry.ProductsAdded, entry.ProductsUpdated, entry.TokensUsed)
		o.publish(finalCtx, result.events, log)
	}
	return entry, nil
}

func (o *Orchestrator) run(ctx context.Context, src *domain.Source, entry *domain.SyncLog, usage *llm.Usage, log utils.Logger) (*syncResult, error) {
	cred, err := o.credentials.Resolve(ctx, src.UserID)
	if err != nil {
		return nil, err
	}
	extractor := o.extractors(cred)

	if src.Selectors == nil {
		set, err := extractor.AnalyzeURL(ctx, src.URL, usage)
		if err != nil {
			return nil, fmt.Errorf("analyze source: %w", err)
		}
		if src.NeedsJavaScript {
			set.RequiresJavaScript = true
		}
		src.Selectors = &set
		src.SelectorVersion = 1
		src.NeedsJavaScript = set.RequiresJavaScript
		log.Infof("stored initial selectors (mode %s)", set.Mode)
	}

	outcome := extractor.ExtractProducts(ctx, src.URL, *src.Selectors, "", usage)
	if outcome.Err != nil {
		return nil, fmt.Errorf("extract products: %w", outcome.Err)
	}

	if outcome.SelectorsRegenerated {
		fresh, err := extractor.AnalyzeURL(ctx, src.URL, usage)
		if err != nil {
			log.Warnf("re-synthesis for persistence failed, keeping regenerated selectors: %v", err)
			fresh = outcome.Regenerated
		}
		src.Selectors = &fresh
		src.SelectorVersion++
		entry.SelectorsRegenerated = true
		log.Infof("selectors regenerated, now version %d", src.SelectorVersion)
	}

	entry.ProductsFound = len(outcome.Products)

	result := &syncResult{}
	err = o.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, rec := range outcome.Products {
			if rec.ProductURL == "" {
				continue
			}
			if err := o.apply(ctx, src.ID, rec, result); err != nil {
				return err
			}
		}
		if o.config.MarkMissingUnavailable {
			n, err := o.products.MarkUnavailableExcept(ctx, src.ID, result.seen, o.now())
			if err != nil {
				return fmt.Errorf("mark missing products unavailable: %w", err)
			}
			if n > 0 {
				log.Infof("marked %d missing products unavailable", n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	entry.ProductsAdded = result.added
	entry.ProductsUpdated = result.updated
	return result, nil
}

// apply upserts one record by its fingerprint.
func (o *Orchestrator) apply(ctx context.Context, sourceID int64, rec domain.ProductRecord, result *syncResult) error {
	now := o.now()

	existing, err := o.products.FindByURL(ctx, sourceID, rec.ProductURL)
	if err != nil && !errors.Is(err, sqlstore.ErrNotFound) {
		return fmt.Errorf("find product %s: %w", rec.ProductURL, err)
	}

	if existing != nil {
		old := existing.CurrentPrice
		changed := existing.PriceChanged(rec.Price)
		existing.ApplyRecord(rec, now)
		existing.Name = utils.TruncateRunes(existing.Name, domain.MaxNameLength)
		if err := o.products.Update(ctx, existing); err != nil {
			return fmt.Errorf("update product %d: %w", existing.ID, err)
		}
		if changed {
			if err := o.appendHistory(ctx, existing.ID, rec.Price.Decimal, now); err != nil {
				return err
			}
			result.events = append(result.events, events.PriceChanged(existing, old, now))
		}
		result.updated++
		result.seen = append(result.seen, existing.ID)
		return nil
	}

	p := &domain.Product{
		SourceID:    sourceID,
		ProductURL:  rec.ProductURL,
		Name:        unknownProductName,
		FirstSeenAt: now,
	}
	p.ApplyRecord(rec, now)
	p.Name = utils.TruncateRunes(p.Name, domain.MaxNameLength)
	if err := o.products.Create(ctx, p); err != nil {
		return fmt.Errorf("create product %s: %w", rec.ProductURL, err)
	}
	if p.CurrentPrice.Valid {
		if err := o.appendHistory(ctx, p.ID, p.CurrentPrice.Decimal, now); err != nil {
			return err
		}
	}
	result.added++
	result.seen = append(result.seen, p.ID)
	result.events = append(result.events, events.Created(p, now))
	return nil
}

func (o *Orchestrator) appendHistory(ctx context.Context, productID int64, price decimal.Decimal, at time.Time) error {
	if err := o.history.Append(ctx, &domain.PriceHistory{ProductID: productID, Price: price, RecordedAt: at}); err != nil {
		return fmt.Errorf("append price history for product %d: %w", productID, err)
	}
	return nil
}

// publish delivers events after commit. Delivery failures are logged and
// never affect the sync outcome.
func (o *Orchestrator) publish(ctx context.Context, evs []events.ProductEvent, log utils.Logger) {
	published := 0
	for _, ev := range evs {
		if err := o.publisher.Publish(ctx, ev); err != nil {
			log.Warnf("failed to publish %s for product %d: %v", ev.Type, ev.ProductID, err)
			continue
		}
		published++
	}
	if len(evs) > 0 {
		log.Debugf("published %d/%d product events", published, len(evs))
	}
}

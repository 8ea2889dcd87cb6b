// internal/tracker/interfaces.go
package tracker

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/events"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/selectors"
)

// SourceStore defines operations for source persistence.
type SourceStore interface {
	Get(ctx context.Context, id int64) (*domain.Source, error)
	ListDue(ctx context.Context, now time.Time) ([]domain.Source, error)
	Update(ctx context.Context, src *domain.Source) error
}

// ProductStore defines operations for product persistence.
type ProductStore interface {
	FindByURL(ctx context.Context, sourceID int64, productURL string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	MarkUnavailableExcept(ctx context.Context, sourceID int64, seen []int64, now time.Time) (int64, error)
}

// PriceHistoryStore appends price observations.
type PriceHistoryStore interface {
	Append(ctx context.Context, entry *domain.PriceHistory) error
}

// SyncLogStore defines operations for sync attempt records.
type SyncLogStore interface {
	Create(ctx context.Context, l *domain.SyncLog) error
	Finish(ctx context.Context, l *domain.SyncLog) error
	Recent(ctx context.Context, sourceID int64, limit int) ([]domain.SyncLog, error)
}

// CredentialResolver finds the LLM credential for a user.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID int64) (domain.Credential, error)
}

// TransactionManager handles database transactions.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Extractor is the adaptive extraction pipeline bound to one credential.
type Extractor interface {
	AnalyzeURL(ctx context.Context, url string, usage *llm.Usage) (selectors.Set, error)
	ExtractProducts(ctx context.Context, url string, set selectors.Set, html string, usage *llm.Usage) pipeline.ExtractionOutcome
}

// Publisher delivers product events after a successful sync.
type Publisher interface {
	Publish(ctx context.Context, event events.ProductEvent) error
}

// Locker guards a source against concurrent syncs.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

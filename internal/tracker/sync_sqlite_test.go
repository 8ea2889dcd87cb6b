// internal/tracker/sync_sqlite_test.go
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/lock"
	"github.com/valpere/PriceScrapexter/internal/pipeline"
	"github.com/valpere/PriceScrapexter/internal/scraper"
	"github.com/valpere/PriceScrapexter/internal/selectors"
	"github.com/valpere/PriceScrapexter/internal/storage/sqlstore"
)

const shopSelectors = `{"product_container": ".card", "name": ".title", "price": ".price", "original_price": null, "image": "img", "link": "a.title", "description": null, "requires_javascript": false, "notes": ""}`

// shopPage renders n product cards; firstPrice overrides the first card.
func shopPage(n int, firstPrice string) string {
	var b strings.Builder
	b.WriteString(`<html><body><main><h1>Catalogue</h1>`)
	for i := 1; i <= n; i++ {
		p := fmt.Sprintf("$%d.00", i*10)
		if i == 1 && firstPrice != "" {
			p = firstPrice
		}
		fmt.Fprintf(&b, `<div class="card"><a class="title" href="/p/%d">Item %d</a><span class="price">%s</span><img src="/img/%d.jpg"></div>`, i, i, p, i)
	}
	b.WriteString(`</main></body></html>`)
	return b.String()
}

type staticPages struct {
	mu   sync.Mutex
	html string
}

func (p *staticPages) set(html string) {
	p.mu.Lock()
	p.html = html
	p.mu.Unlock()
}

func (p *staticPages) Fetch(context.Context, string, bool) scraper.FetchResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return scraper.FetchResult{HTML: p.html, Strategy: scraper.StrategyStatic}
}

type syncFixture struct {
	ctx          context.Context
	sources      *sqlstore.SourceStore
	products     *sqlstore.ProductStore
	history      *sqlstore.PriceHistoryStore
	logs         *sqlstore.SyncLogStore
	pages        *staticPages
	orchestrator *Orchestrator
	synthCalls   int
	now          time.Time
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlstore.Migrate(ctx, db))

	f := &syncFixture{
		ctx:      ctx,
		sources:  sqlstore.NewSourceStore(db),
		products: sqlstore.NewProductStore(db),
		history:  sqlstore.NewPriceHistoryStore(db),
		logs:     sqlstore.NewSyncLogStore(db),
		pages:    &staticPages{},
		now:      time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}

	provider := llm.ProviderFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		if strings.Contains(req.Messages[0].Content, "extract CSS selectors") {
			f.synthCalls++
			return llm.Response{Text: shopSelectors, InputTokens: 900, OutputTokens: 100}, nil
		}
		return llm.Response{Text: "[]"}, nil
	})

	f.orchestrator = NewOrchestrator(
		Stores{Sources: f.sources, Products: f.products, History: f.history, Logs: f.logs},
		NewCredentialResolver(nil, "sk-test", ""),
		func(cred domain.Credential) Extractor {
			return pipeline.New(f.pages, provider, cred.Model, pipeline.Config{}, nil)
		},
		sqlstore.NewTransactionManager(db),
		nil,
		Config{MarkMissingUnavailable: true},
	)
	f.orchestrator.SetLocker(lock.NewMemoryLocker())
	f.orchestrator.SetClock(func() time.Time { return f.now })
	return f
}

func TestSyncSource_EndToEnd(t *testing.T) {
	f := newSyncFixture(t)

	src := &domain.Source{UserID: 1, Name: "Shop", URL: "https://shop.example/catalogue", SyncIntervalHours: 24}
	require.NoError(t, f.sources.Create(f.ctx, src))

	// First sync: no selectors yet, twelve cards on a static page.
	f.pages.set(shopPage(12, ""))
	entry, err := f.orchestrator.SyncSource(f.ctx, src.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.SyncSuccess, entry.Status)
	assert.Equal(t, 12, entry.ProductsFound)
	assert.Equal(t, 12, entry.ProductsAdded)
	assert.Equal(t, 0, entry.ProductsUpdated)
	assert.Equal(t, 1000, entry.TokensUsed)
	assert.Equal(t, 1, f.synthCalls)

	stored, err := f.sources.Get(f.ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Selectors)
	assert.Equal(t, selectors.ModeSelectors, stored.Selectors.Mode)
	assert.Equal(t, 1, stored.SelectorVersion)
	require.NotNil(t, stored.NextSyncAt)
	assert.True(t, stored.NextSyncAt.Equal(f.now.Add(24*time.Hour)))

	products, err := f.products.ListBySource(f.ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, products, 12)
	first := products[0]
	assert.Equal(t, "https://shop.example/p/1", first.ProductURL)
	assert.True(t, first.CurrentPrice.Decimal.Equal(decimal.RequireFromString("10")))

	// Second sync: same URLs, first price drops from 10 to 8.
	f.now = f.now.Add(25 * time.Hour)
	f.pages.set(shopPage(12, "$8.00"))
	entry, err = f.orchestrator.SyncSource(f.ctx, src.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.SyncSuccess, entry.Status)
	assert.Equal(t, 0, entry.ProductsAdded)
	assert.Equal(t, 12, entry.ProductsUpdated)
	assert.Equal(t, 0, entry.TokensUsed, "stored selectors need no LLM call")
	assert.Equal(t, 1, f.synthCalls)

	products, err = f.products.ListBySource(f.ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, products, 12, "fingerprint prevents duplicates")

	history, err := f.history.ListByProduct(f.ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Price.Equal(decimal.RequireFromString("10")))
	assert.True(t, history[1].Price.Equal(decimal.RequireFromString("8")))

	second, err := f.history.ListByProduct(f.ctx, products[1].ID)
	require.NoError(t, err)
	assert.Len(t, second, 1, "unchanged price appends nothing")

	// Third sync: a product disappears from the listing.
	f.now = f.now.Add(25 * time.Hour)
	f.pages.set(shopPage(11, "$8.00"))
	_, err = f.orchestrator.SyncSource(f.ctx, src.ID)
	require.NoError(t, err)

	last, err := f.products.FindByURL(f.ctx, src.ID, "https://shop.example/p/12")
	require.NoError(t, err)
	assert.False(t, last.IsAvailable)

	stats, err := f.orchestrator.Stats(f.ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSyncs)
	assert.Equal(t, float64(100), stats.SuccessRate)
}

func TestSyncSource_FailureKeepsProducts(t *testing.T) {
	f := newSyncFixture(t)

	src := &domain.Source{UserID: 1, Name: "Shop", URL: "https://shop.example/catalogue", SyncIntervalHours: 24}
	require.NoError(t, f.sources.Create(f.ctx, src))
	f.pages.set(shopPage(3, ""))
	_, err := f.orchestrator.SyncSource(f.ctx, src.ID)
	require.NoError(t, err)

	f.orchestrator.credentials = NewCredentialResolver(nil, "", "")
	entry, err := f.orchestrator.SyncSource(f.ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncFailed, entry.Status)

	products, err := f.products.ListBySource(f.ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	stored, err := f.sources.Get(f.ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ConsecutiveFailures)
	assert.NotEmpty(t, stored.LastError)
	assert.True(t, stored.NextSyncAt.Equal(f.now.Add(48*time.Hour)))

	recent, err := f.logs.Recent(f.ctx, src.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, domain.SyncFailed, recent[0].Status)
	assert.Equal(t, domain.SyncSuccess, recent[1].Status)
}

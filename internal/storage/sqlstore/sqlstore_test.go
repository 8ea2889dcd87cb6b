// internal/storage/sqlstore/sqlstore_test.go
package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/selectors"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

type SQLiteStoreSuite struct {
	suite.Suite
	ctx       context.Context
	db        *sqlx.DB
	sources   *SourceStore
	products  *ProductStore
	history   *PriceHistoryStore
	logs      *SyncLogStore
	creds     *CredentialStore
	txManager *TransactionManager
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := Open(s.ctx, Config{Driver: DriverSQLite, DSN: ":memory:"})
	s.Require().NoError(err)
	s.Require().NoError(Migrate(s.ctx, db))
	s.db = db
	s.sources = NewSourceStore(db)
	s.products = NewProductStore(db)
	s.history = NewPriceHistoryStore(db)
	s.logs = NewSyncLogStore(db)
	s.creds = NewCredentialStore(db)
	s.txManager = NewTransactionManager(db)
}

func (s *SQLiteStoreSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) newSource(name string) *domain.Source {
	src := &domain.Source{UserID: 1, Name: name, URL: "https://shop.example/" + name, SyncIntervalHours: 24}
	s.Require().NoError(s.sources.Create(s.ctx, src))
	return src
}

func (s *SQLiteStoreSuite) newProduct(sourceID int64, url string, price string) *domain.Product {
	now := time.Now()
	p := &domain.Product{
		SourceID:      sourceID,
		Name:          "Item " + url,
		ProductURL:    url,
		IsAvailable:   true,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	if price != "" {
		p.CurrentPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	s.Require().NoError(s.products.Create(s.ctx, p))
	return p
}

func (s *SQLiteStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(Migrate(s.ctx, s.db))
}

func (s *SQLiteStoreSuite) TestSourceRoundTrip() {
	set := selectors.FromRules(selectors.Rules{Container: ".card", Name: ".title", Price: ".price"}, true, "grid")
	next := time.Now().Add(time.Hour)
	src := &domain.Source{
		UserID:            7,
		Name:              "Lamps",
		URL:               "https://shop.example/lamps",
		SyncIntervalHours: 12,
		NextSyncAt:        &next,
		Selectors:         &set,
		SelectorVersion:   2,
	}
	s.Require().NoError(s.sources.Create(s.ctx, src))
	s.Greater(src.ID, int64(0))

	got, err := s.sources.Get(s.ctx, src.ID)
	s.Require().NoError(err)
	s.Equal("Lamps", got.Name)
	s.Equal(domain.SourceActive, got.Status)
	s.Equal(12, got.SyncIntervalHours)
	s.Require().NotNil(got.Selectors)
	s.Equal(set, *got.Selectors)
	s.Equal(2, got.SelectorVersion)
	s.Require().NotNil(got.NextSyncAt)
	s.WithinDuration(next, *got.NextSyncAt, time.Millisecond)
	s.Nil(got.LastSyncedAt)

	got.Selectors = nil
	got.Status = domain.SourceError
	got.ConsecutiveFailures = 3
	got.LastError = "CAPTCHA detected"
	s.Require().NoError(s.sources.Update(s.ctx, got))

	again, err := s.sources.Get(s.ctx, src.ID)
	s.Require().NoError(err)
	s.Nil(again.Selectors)
	s.Equal(domain.SourceError, again.Status)
	s.Equal(3, again.ConsecutiveFailures)
	s.Equal("CAPTCHA detected", again.LastError)
}

func (s *SQLiteStoreSuite) TestSourceNotFound() {
	_, err := s.sources.Get(s.ctx, 999)
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.sources.Update(s.ctx, &domain.Source{ID: 999, Status: domain.SourceActive}), ErrNotFound)
}

func (s *SQLiteStoreSuite) TestListDue() {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	never := s.newSource("never")
	due := s.newSource("due")
	due.NextSyncAt = &past
	s.Require().NoError(s.sources.Update(s.ctx, due))
	later := s.newSource("later")
	later.NextSyncAt = &future
	s.Require().NoError(s.sources.Update(s.ctx, later))
	paused := s.newSource("paused")
	paused.NextSyncAt = &past
	paused.Status = domain.SourcePaused
	s.Require().NoError(s.sources.Update(s.ctx, paused))

	list, err := s.sources.ListDue(s.ctx, now)
	s.Require().NoError(err)

	var ids []int64
	for _, src := range list {
		ids = append(ids, src.ID)
	}
	s.Equal([]int64{never.ID, due.ID}, ids)
}

func (s *SQLiteStoreSuite) TestProductFingerprintIsUnique() {
	src := s.newSource("shop")
	s.newProduct(src.ID, "https://shop.example/p/1", "10.00")

	dup := &domain.Product{SourceID: src.ID, Name: "dup", ProductURL: "https://shop.example/p/1", FirstSeenAt: time.Now(), LastUpdatedAt: time.Now()}
	err := s.products.Create(s.ctx, dup)
	s.Error(err)
	s.True(utils.IsCode(err, utils.ErrCodeDatabaseError))

	other := s.newSource("other")
	s.newProduct(other.ID, "https://shop.example/p/1", "")
}

func (s *SQLiteStoreSuite) TestProductFindAndUpdate() {
	src := s.newSource("shop")
	created := s.newProduct(src.ID, "https://shop.example/p/1", "19.99")

	found, err := s.products.FindByURL(s.ctx, src.ID, "https://shop.example/p/1")
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
	s.True(found.CurrentPrice.Valid)
	s.Equal("19.99", found.CurrentPrice.Decimal.StringFixed(2))
	s.False(found.OriginalPrice.Valid)

	found.CurrentPrice = decimal.NewNullDecimal(decimal.RequireFromString("17.5"))
	found.IsFavorite = true
	found.Notes = "watch"
	s.Require().NoError(s.products.Update(s.ctx, found))

	again, err := s.products.Get(s.ctx, found.ID)
	s.Require().NoError(err)
	s.True(again.CurrentPrice.Decimal.Equal(decimal.RequireFromString("17.5")))
	s.True(again.IsFavorite)
	s.Equal("watch", again.Notes)

	_, err = s.products.FindByURL(s.ctx, src.ID, "https://shop.example/p/missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteStoreSuite) TestMarkUnavailableExcept() {
	src := s.newSource("shop")
	a := s.newProduct(src.ID, "https://shop.example/p/a", "")
	b := s.newProduct(src.ID, "https://shop.example/p/b", "")
	c := s.newProduct(src.ID, "https://shop.example/p/c", "")

	n, err := s.products.MarkUnavailableExcept(s.ctx, src.ID, []int64{a.ID, c.ID}, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	got, err := s.products.Get(s.ctx, b.ID)
	s.Require().NoError(err)
	s.False(got.IsAvailable)

	n, err = s.products.MarkUnavailableExcept(s.ctx, src.ID, nil, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *SQLiteStoreSuite) TestPriceHistoryOrderedOldestFirst() {
	src := s.newSource("shop")
	p := s.newProduct(src.ID, "https://shop.example/p/1", "10")

	base := time.Now().Add(-time.Hour)
	for i, price := range []string{"10", "8", "9.5"} {
		s.Require().NoError(s.history.Append(s.ctx, &domain.PriceHistory{
			ProductID:  p.ID,
			Price:      decimal.RequireFromString(price),
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.history.ListByProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.True(entries[0].Price.Equal(decimal.RequireFromString("10")))
	s.True(entries[2].Price.Equal(decimal.RequireFromString("9.5")))
}

func (s *SQLiteStoreSuite) TestDeleteSourceCascades() {
	src := s.newSource("shop")
	p := s.newProduct(src.ID, "https://shop.example/p/1", "10")
	s.Require().NoError(s.history.Append(s.ctx, &domain.PriceHistory{ProductID: p.ID, Price: decimal.NewFromInt(10), RecordedAt: time.Now()}))
	s.Require().NoError(s.logs.Create(s.ctx, &domain.SyncLog{SourceID: src.ID, StartedAt: time.Now()}))

	s.Require().NoError(s.sources.Delete(s.ctx, src.ID))

	var count int
	for _, table := range []string{"products", "price_history", "sync_logs"} {
		s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM "+table))
		s.Zero(count, table)
	}
}

func (s *SQLiteStoreSuite) TestSyncLogFinalizedOnce() {
	src := s.newSource("shop")
	l := &domain.SyncLog{SourceID: src.ID, StartedAt: time.Now()}
	s.Require().NoError(s.logs.Create(s.ctx, l))
	s.Equal(domain.SyncRunning, l.Status)

	l.Status = domain.SyncSuccess
	l.ProductsFound = 12
	l.ProductsAdded = 12
	l.TokensUsed = 1500
	s.Require().NoError(s.logs.Finish(s.ctx, l))
	s.NotNil(l.CompletedAt)

	l.Status = domain.SyncFailed
	s.ErrorIs(s.logs.Finish(s.ctx, l), ErrAlreadyFinished)

	recent, err := s.logs.Recent(s.ctx, src.ID, 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal(domain.SyncSuccess, recent[0].Status)
	s.Equal(12, recent[0].ProductsFound)
	s.Equal(1500, recent[0].TokensUsed)
	s.NotNil(recent[0].CompletedAt)
}

func (s *SQLiteStoreSuite) TestSyncLogRejectsNonTerminalFinish() {
	src := s.newSource("shop")
	l := &domain.SyncLog{SourceID: src.ID, StartedAt: time.Now()}
	s.Require().NoError(s.logs.Create(s.ctx, l))
	s.Error(s.logs.Finish(s.ctx, l))
}

func (s *SQLiteStoreSuite) TestCredentialPut() {
	_, err := s.creds.Get(s.ctx, 1)
	s.ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.creds.Put(s.ctx, domain.Credential{UserID: 1, APIKey: "sk-1", Model: "claude-3-5-haiku-latest"}))
	s.Require().NoError(s.creds.Put(s.ctx, domain.Credential{UserID: 1, APIKey: "sk-2"}))

	got, err := s.creds.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("sk-2", got.APIKey)
	s.Equal("", got.Model)
}

func (s *SQLiteStoreSuite) TestTransactionRollback() {
	src := s.newSource("shop")
	boom := errors.New("boom")

	err := s.txManager.WithTransaction(s.ctx, func(ctx context.Context) error {
		p := &domain.Product{SourceID: src.ID, Name: "tx", ProductURL: "https://shop.example/p/tx", FirstSeenAt: time.Now(), LastUpdatedAt: time.Now()}
		if err := s.products.Create(ctx, p); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	list, err := s.products.ListBySource(s.ctx, src.ID)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *SQLiteStoreSuite) TestTransactionCommit() {
	src := s.newSource("shop")

	err := s.txManager.WithTransaction(s.ctx, func(ctx context.Context) error {
		for _, u := range []string{"a", "b"} {
			p := &domain.Product{SourceID: src.ID, Name: u, ProductURL: "https://shop.example/p/" + u, FirstSeenAt: time.Now(), LastUpdatedAt: time.Now()}
			if err := s.products.Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)

	list, err := s.products.ListBySource(s.ctx, src.ID)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	if !utils.IsCode(err, utils.ErrCodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

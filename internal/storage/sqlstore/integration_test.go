//go:build integration

// internal/storage/sqlstore/integration_test.go
package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/selectors"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := Open(s.ctx, Config{Driver: DriverPostgres, DSN: connStr})
	s.Require().NoError(err)
	s.Require().NoError(Migrate(s.ctx, db))
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sources")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM llm_credentials")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestSourceAndProductRoundTrip() {
	sources := NewSourceStore(s.db)
	products := NewProductStore(s.db)
	history := NewPriceHistoryStore(s.db)

	set := selectors.FromRules(selectors.Rules{Container: "[data-sku]", Name: "h3"}, false, "")
	src := &domain.Source{UserID: 1, Name: "Shop", URL: "https://shop.example", Selectors: &set, SelectorVersion: 1}
	s.Require().NoError(sources.Create(s.ctx, src))
	s.Greater(src.ID, int64(0))

	now := time.Now()
	p := &domain.Product{
		SourceID:      src.ID,
		Name:          "Lamp",
		ProductURL:    "https://shop.example/p/lamp",
		CurrentPrice:  decimal.NewNullDecimal(decimal.RequireFromString("1234.56")),
		Currency:      "EUR",
		IsAvailable:   true,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	s.Require().NoError(products.Create(s.ctx, p))
	s.Require().NoError(history.Append(s.ctx, &domain.PriceHistory{ProductID: p.ID, Price: p.CurrentPrice.Decimal, RecordedAt: now}))

	found, err := products.FindByURL(s.ctx, src.ID, p.ProductURL)
	s.Require().NoError(err)
	s.True(found.CurrentPrice.Decimal.Equal(decimal.RequireFromString("1234.56")))

	got, err := sources.Get(s.ctx, src.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.Selectors)
	s.Equal(set, *got.Selectors)

	s.Require().NoError(sources.Delete(s.ctx, src.ID))
	_, err = products.Get(s.ctx, p.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestListDueAndSyncLogs() {
	sources := NewSourceStore(s.db)
	logs := NewSyncLogStore(s.db)

	src := &domain.Source{UserID: 1, Name: "Due", URL: "https://shop.example/due"}
	s.Require().NoError(sources.Create(s.ctx, src))

	due, err := sources.ListDue(s.ctx, time.Now())
	s.Require().NoError(err)
	s.Len(due, 1)

	l := &domain.SyncLog{SourceID: src.ID, StartedAt: time.Now()}
	s.Require().NoError(logs.Create(s.ctx, l))
	l.Status = domain.SyncFailed
	l.ErrorMessage = "boom"
	s.Require().NoError(logs.Finish(s.ctx, l))
	s.ErrorIs(logs.Finish(s.ctx, l), ErrAlreadyFinished)
}

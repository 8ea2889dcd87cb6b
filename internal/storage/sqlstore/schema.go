// internal/storage/sqlstore/schema.go
package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// columnTypes are the per-dialect spellings used by the schema.
type columnTypes struct {
	ID      string
	Time    string
	Money   string
	Bool    string
	URLKey  string
	Short   string
	Engine  string
	Indexes bool
}

var dialects = map[string]columnTypes{
	DriverPostgres: {
		ID: "BIGSERIAL PRIMARY KEY", Time: "TIMESTAMPTZ", Money: "NUMERIC(14,2)",
		Bool: "BOOLEAN", URLKey: "TEXT", Short: "VARCHAR(500)", Indexes: true,
	},
	DriverSQLite: {
		ID: "INTEGER PRIMARY KEY AUTOINCREMENT", Time: "DATETIME", Money: "TEXT",
		Bool: "BOOLEAN", URLKey: "TEXT", Short: "TEXT", Indexes: true,
	},
	DriverMySQL: {
		ID: "BIGINT AUTO_INCREMENT PRIMARY KEY", Time: "DATETIME(6)", Money: "DECIMAL(14,2)",
		Bool: "BOOLEAN", URLKey: "VARCHAR(700)", Short: "VARCHAR(500)", Engine: " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
	},
}

func schemaStatements(t columnTypes) []string {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS llm_credentials (
			user_id BIGINT PRIMARY KEY,
			api_key TEXT NOT NULL,
			model VARCHAR(100) NOT NULL DEFAULT '',
			updated_at %[1]s NOT NULL
		)%[2]s`, t.Time, t.Engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sources (
			id %[1]s,
			user_id BIGINT NOT NULL,
			name %[2]s NOT NULL,
			url TEXT NOT NULL,
			needs_javascript %[3]s NOT NULL DEFAULT FALSE,
			sync_interval_hours INTEGER NOT NULL DEFAULT 24,
			last_synced_at %[4]s NULL,
			next_sync_at %[4]s NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL,
			selectors TEXT NULL,
			selector_version INTEGER NOT NULL DEFAULT 0,
			created_at %[4]s NOT NULL,
			updated_at %[4]s NOT NULL
		)%[5]s`, t.ID, t.Short, t.Bool, t.Time, t.Engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id %[1]s,
			source_id BIGINT NOT NULL,
			name %[2]s NOT NULL,
			description TEXT NOT NULL,
			image_url TEXT NOT NULL,
			product_url %[3]s NOT NULL,
			current_price %[4]s NULL,
			original_price %[4]s NULL,
			currency VARCHAR(3) NOT NULL DEFAULT '',
			is_available %[5]s NOT NULL DEFAULT TRUE,
			is_favorite %[5]s NOT NULL DEFAULT FALSE,
			notes TEXT NOT NULL,
			first_seen_at %[6]s NOT NULL,
			last_updated_at %[6]s NOT NULL,
			UNIQUE (source_id, product_url),
			FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
		)%[7]s`, t.ID, t.Short, t.URLKey, t.Money, t.Bool, t.Time, t.Engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS price_history (
			id %[1]s,
			product_id BIGINT NOT NULL,
			price %[2]s NOT NULL,
			recorded_at %[3]s NOT NULL,
			FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
		)%[4]s`, t.ID, t.Money, t.Time, t.Engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sync_logs (
			id %[1]s,
			source_id BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			started_at %[2]s NOT NULL,
			completed_at %[2]s NULL,
			products_found INTEGER NOT NULL DEFAULT 0,
			products_added INTEGER NOT NULL DEFAULT 0,
			products_updated INTEGER NOT NULL DEFAULT 0,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			selectors_regenerated %[3]s NOT NULL DEFAULT FALSE,
			error_message TEXT NOT NULL,
			FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
		)%[4]s`, t.ID, t.Time, t.Bool, t.Engine),
	}

	if t.Indexes {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_sources_due ON sources (status, next_sync_at)`,
			`CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history (product_id, recorded_at)`,
			`CREATE INDEX IF NOT EXISTS idx_sync_logs_source ON sync_logs (source_id, started_at)`,
		)
	}
	return stmts
}

// Migrate creates the schema if it does not exist. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	t, ok := dialects[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}
	for _, stmt := range schemaStatements(t) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return dbError("migrate", err)
		}
	}
	return nil
}

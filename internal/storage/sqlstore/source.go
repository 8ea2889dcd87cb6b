// internal/storage/sqlstore/source.go
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/selectors"
)

const sourceColumns = `id, user_id, name, url, needs_javascript, sync_interval_hours,
	last_synced_at, next_sync_at, status, consecutive_failures, last_error,
	selectors, selector_version, created_at, updated_at`

type sourceRow struct {
	ID                  int64          `db:"id"`
	UserID              int64          `db:"user_id"`
	Name                string         `db:"name"`
	URL                 string         `db:"url"`
	NeedsJavaScript     bool           `db:"needs_javascript"`
	SyncIntervalHours   int            `db:"sync_interval_hours"`
	LastSyncedAt        sql.NullTime   `db:"last_synced_at"`
	NextSyncAt          sql.NullTime   `db:"next_sync_at"`
	Status              string         `db:"status"`
	ConsecutiveFailures int            `db:"consecutive_failures"`
	LastError           string         `db:"last_error"`
	Selectors           sql.NullString `db:"selectors"`
	SelectorVersion     int            `db:"selector_version"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r sourceRow) toDomain() (*domain.Source, error) {
	src := &domain.Source{
		ID:                  r.ID,
		UserID:              r.UserID,
		Name:                r.Name,
		URL:                 r.URL,
		NeedsJavaScript:     r.NeedsJavaScript,
		SyncIntervalHours:   r.SyncIntervalHours,
		Status:              domain.SourceStatus(r.Status),
		ConsecutiveFailures: r.ConsecutiveFailures,
		LastError:           r.LastError,
		SelectorVersion:     r.SelectorVersion,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.LastSyncedAt.Valid {
		t := r.LastSyncedAt.Time
		src.LastSyncedAt = &t
	}
	if r.NextSyncAt.Valid {
		t := r.NextSyncAt.Time
		src.NextSyncAt = &t
	}
	if r.Selectors.Valid && r.Selectors.String != "" {
		var set selectors.Set
		if err := json.Unmarshal([]byte(r.Selectors.String), &set); err != nil {
			return nil, fmt.Errorf("decode selectors of source %d: %w", r.ID, err)
		}
		src.Selectors = &set
	}
	return src, nil
}

func encodeSelectors(set *selectors.Set) (sql.NullString, error) {
	if set == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(set)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

// Create inserts src and sets its ID and timestamps.
func (s *SourceStore) Create(ctx context.Context, src *domain.Source) error {
	now := dbTime(time.Now())
	if src.Status == "" {
		src.Status = domain.SourceActive
	}
	if src.SyncIntervalHours <= 0 {
		src.SyncIntervalHours = 24
	}
	sel, err := encodeSelectors(src.Selectors)
	if err != nil {
		return fmt.Errorf("encode selectors: %w", err)
	}

	exec := GetExecutor(ctx, s.db)
	id, err := insert(ctx, exec, `
		INSERT INTO sources (
			user_id, name, url, needs_javascript, sync_interval_hours,
			last_synced_at, next_sync_at, status, consecutive_failures, last_error,
			selectors, selector_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.UserID, src.Name, src.URL, src.NeedsJavaScript, src.SyncIntervalHours,
		dbTimePtr(src.LastSyncedAt), dbTimePtr(src.NextSyncAt), string(src.Status), src.ConsecutiveFailures, src.LastError,
		sel, src.SelectorVersion, now, now,
	)
	if err != nil {
		return dbError("create source", err)
	}
	src.ID = id
	src.CreatedAt, src.UpdatedAt = now, now
	return nil
}

func (s *SourceStore) Get(ctx context.Context, id int64) (*domain.Source, error) {
	exec := GetExecutor(ctx, s.db)
	var row sourceRow
	err := sqlx.GetContext(ctx, exec, &row, exec.Rebind(`SELECT `+sourceColumns+` FROM sources WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbError("get source", err)
	}
	return row.toDomain()
}

// ListDue returns active sources whose next sync is unset or has elapsed.
func (s *SourceStore) ListDue(ctx context.Context, now time.Time) ([]domain.Source, error) {
	return s.list(ctx, `SELECT `+sourceColumns+` FROM sources
		WHERE status = ? AND (next_sync_at IS NULL OR next_sync_at <= ?)
		ORDER BY id`, string(domain.SourceActive), dbTime(now))
}

func (s *SourceStore) List(ctx context.Context) ([]domain.Source, error) {
	return s.list(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
}

func (s *SourceStore) list(ctx context.Context, query string, args ...interface{}) ([]domain.Source, error) {
	exec := GetExecutor(ctx, s.db)
	var rows []sourceRow
	if err := sqlx.SelectContext(ctx, exec, &rows, exec.Rebind(query), args...); err != nil {
		return nil, dbError("list sources", err)
	}
	out := make([]domain.Source, 0, len(rows))
	for _, r := range rows {
		src, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, nil
}

// Update writes every mutable column of src.
func (s *SourceStore) Update(ctx context.Context, src *domain.Source) error {
	sel, err := encodeSelectors(src.Selectors)
	if err != nil {
		return fmt.Errorf("encode selectors: %w", err)
	}
	now := dbTime(time.Now())

	exec := GetExecutor(ctx, s.db)
	res, err := exec.ExecContext(ctx, exec.Rebind(`
		UPDATE sources SET
			name = ?, url = ?, needs_javascript = ?, sync_interval_hours = ?,
			last_synced_at = ?, next_sync_at = ?, status = ?, consecutive_failures = ?,
			last_error = ?, selectors = ?, selector_version = ?, updated_at = ?
		WHERE id = ?`),
		src.Name, src.URL, src.NeedsJavaScript, src.SyncIntervalHours,
		dbTimePtr(src.LastSyncedAt), dbTimePtr(src.NextSyncAt), string(src.Status), src.ConsecutiveFailures,
		src.LastError, sel, src.SelectorVersion, now,
		src.ID,
	)
	if err != nil {
		return dbError("update source", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	src.UpdatedAt = now
	return nil
}

func (s *SourceStore) Delete(ctx context.Context, id int64) error {
	exec := GetExecutor(ctx, s.db)
	res, err := exec.ExecContext(ctx, exec.Rebind(`DELETE FROM sources WHERE id = ?`), id)
	if err != nil {
		return dbError("delete source", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

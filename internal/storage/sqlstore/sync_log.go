// internal/storage/sqlstore/sync_log.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/valpere/PriceScrapexter/internal/domain"
)

// ErrAlreadyFinished is returned when a sync log that is no longer
// running is finalized again.
var ErrAlreadyFinished = errors.New("sync log already finalized")

const syncLogColumns = `id, source_id, status, started_at, completed_at, products_found,
	products_added, products_updated, tokens_used, selectors_regenerated, error_message`

type syncLogRow struct {
	ID                   int64        `db:"id"`
	SourceID             int64        `db:"source_id"`
	Status               string       `db:"status"`
	StartedAt            time.Time    `db:"started_at"`
	CompletedAt          sql.NullTime `db:"completed_at"`
	ProductsFound        int          `db:"products_found"`
	ProductsAdded        int          `db:"products_added"`
	ProductsUpdated      int          `db:"products_updated"`
	TokensUsed           int          `db:"tokens_used"`
	SelectorsRegenerated bool         `db:"selectors_regenerated"`
	ErrorMessage         string       `db:"error_message"`
}

func (r syncLogRow) toDomain() domain.SyncLog {
	l := domain.SyncLog{
		ID:                   r.ID,
		SourceID:             r.SourceID,
		Status:               domain.SyncStatus(r.Status),
		StartedAt:            r.StartedAt,
		ProductsFound:        r.ProductsFound,
		ProductsAdded:        r.ProductsAdded,
		ProductsUpdated:      r.ProductsUpdated,
		TokensUsed:           r.TokensUsed,
		SelectorsRegenerated: r.SelectorsRegenerated,
		ErrorMessage:         r.ErrorMessage,
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		l.CompletedAt = &t
	}
	return l
}

type SyncLogStore struct {
	db *sqlx.DB
}

func NewSyncLogStore(db *sqlx.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

// Create persists a new log in the running state.
func (s *SyncLogStore) Create(ctx context.Context, l *domain.SyncLog) error {
	l.Status = domain.SyncRunning
	l.StartedAt = dbTime(l.StartedAt)

	exec := GetExecutor(ctx, s.db)
	id, err := insert(ctx, exec, `
		INSERT INTO sync_logs (source_id, status, started_at, error_message)
		VALUES (?, ?, ?, ?)`,
		l.SourceID, string(l.Status), l.StartedAt, "")
	if err != nil {
		return dbError("create sync log", err)
	}
	l.ID = id
	return nil
}

// Finish moves a running log to its terminal state. A second call for
// the same log fails with ErrAlreadyFinished.
func (s *SyncLogStore) Finish(ctx context.Context, l *domain.SyncLog) error {
	if !l.IsTerminal() {
		return fmt.Errorf("sync log %d: status %q is not terminal", l.ID, l.Status)
	}
	completed := dbTimePtr(l.CompletedAt)
	if completed == nil {
		now := dbTime(time.Now())
		completed = &now
	}

	exec := GetExecutor(ctx, s.db)
	res, err := exec.ExecContext(ctx, exec.Rebind(`
		UPDATE sync_logs SET
			status = ?, completed_at = ?, products_found = ?, products_added = ?,
			products_updated = ?, tokens_used = ?, selectors_regenerated = ?, error_message = ?
		WHERE id = ? AND status = ?`),
		string(l.Status), *completed, l.ProductsFound, l.ProductsAdded,
		l.ProductsUpdated, l.TokensUsed, l.SelectorsRegenerated, l.ErrorMessage,
		l.ID, string(domain.SyncRunning),
	)
	if err != nil {
		return dbError("finish sync log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError("finish sync log", err)
	}
	if n == 0 {
		return ErrAlreadyFinished
	}
	l.CompletedAt = completed
	return nil
}

// Recent returns up to limit logs of a source, newest first.
func (s *SyncLogStore) Recent(ctx context.Context, sourceID int64, limit int) ([]domain.SyncLog, error) {
	exec := GetExecutor(ctx, s.db)
	var rows []syncLogRow
	err := sqlx.SelectContext(ctx, exec, &rows, exec.Rebind(`SELECT `+syncLogColumns+` FROM sync_logs
		WHERE source_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`), sourceID, limit)
	if err != nil {
		return nil, dbError("list sync logs", err)
	}
	out := make([]domain.SyncLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// internal/storage/sqlstore/credential.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/valpere/PriceScrapexter/internal/domain"
)

type CredentialStore struct {
	db *sqlx.DB
}

func NewCredentialStore(db *sqlx.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Get returns the stored credential of a user.
func (s *CredentialStore) Get(ctx context.Context, userID int64) (*domain.Credential, error) {
	exec := GetExecutor(ctx, s.db)
	var row struct {
		UserID int64  `db:"user_id"`
		APIKey string `db:"api_key"`
		Model  string `db:"model"`
	}
	err := sqlx.GetContext(ctx, exec, &row, exec.Rebind(`SELECT user_id, api_key, model FROM llm_credentials WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbError("get credential", err)
	}
	return &domain.Credential{UserID: row.UserID, APIKey: row.APIKey, Model: row.Model}, nil
}

// Put stores or replaces a user's credential.
func (s *CredentialStore) Put(ctx context.Context, cred domain.Credential) error {
	now := dbTime(time.Now())
	exec := GetExecutor(ctx, s.db)

	res, err := exec.ExecContext(ctx, exec.Rebind(`UPDATE llm_credentials SET api_key = ?, model = ?, updated_at = ? WHERE user_id = ?`),
		cred.APIKey, cred.Model, now, cred.UserID)
	if err != nil {
		return dbError("update credential", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = exec.ExecContext(ctx, exec.Rebind(`INSERT INTO llm_credentials (user_id, api_key, model, updated_at) VALUES (?, ?, ?, ?)`),
		cred.UserID, cred.APIKey, cred.Model, now)
	if err != nil {
		return dbError("insert credential", err)
	}
	return nil
}

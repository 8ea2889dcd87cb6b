// internal/domain/sync.go
package domain

import "time"

// SyncStatus is the lifecycle state of a sync attempt.
type SyncStatus string

const (
	SyncRunning SyncStatus = "running"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// SyncLog records one sync attempt. It is created running and finalized
// exactly once.
type SyncLog struct {
	ID                   int64
	SourceID             int64
	Status               SyncStatus
	StartedAt            time.Time
	CompletedAt          *time.Time
	ProductsFound        int
	ProductsAdded        int
	ProductsUpdated      int
	TokensUsed           int
	SelectorsRegenerated bool
	ErrorMessage         string
}

// IsTerminal reports whether the log has been finalized.
func (l *SyncLog) IsTerminal() bool {
	return l.Status == SyncSuccess || l.Status == SyncFailed
}

// SyncStats summarizes recent attempts for a source.
type SyncStats struct {
	TotalSyncs       int     `json:"total_syncs"`
	SuccessRate      float64 `json:"success_rate"`
	AvgProductsFound float64 `json:"avg_products_found"`
}

// Credential is a user's LLM access.
type Credential struct {
	UserID int64
	APIKey string
	Model  string
}

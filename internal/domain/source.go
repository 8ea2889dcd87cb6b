// Package domain holds the tracked-product data model.
package domain

import (
	"time"

	"github.com/valpere/PriceScrapexter/internal/selectors"
)

// SourceStatus is the scheduling state of a source.
type SourceStatus string

const (
	SourceActive SourceStatus = "active"
	SourcePaused SourceStatus = "paused"
	SourceError  SourceStatus = "error"
)

// MaxConsecutiveFailures moves a source to SourceError.
const MaxConsecutiveFailures = 3

// MaxBackoff caps the retry delay after failed syncs.
const MaxBackoff = 7 * 24 * time.Hour

// Source is a listing page whose products are tracked.
type Source struct {
	ID                  int64
	UserID              int64
	Name                string
	URL                 string
	NeedsJavaScript     bool
	SyncIntervalHours   int
	LastSyncedAt        *time.Time
	NextSyncAt          *time.Time
	Status              SourceStatus
	ConsecutiveFailures int
	LastError           string
	Selectors           *selectors.Set
	SelectorVersion     int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SyncInterval is the configured interval as a duration.
func (s *Source) SyncInterval() time.Duration {
	hours := s.SyncIntervalHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// DueAt reports whether the source should be synced at now.
func (s *Source) DueAt(now time.Time) bool {
	if s.Status != SourceActive {
		return false
	}
	return s.NextSyncAt == nil || !s.NextSyncAt.After(now)
}

// Backoff returns min(interval * 2^failures, MaxBackoff).
func Backoff(interval time.Duration, failures int) time.Duration {
	if failures < 0 {
		failures = 0
	}
	d := interval
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= MaxBackoff || d <= 0 {
			return MaxBackoff
		}
	}
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// RecordSuccess applies a successful sync to the source state.
func (s *Source) RecordSuccess(now time.Time) {
	next := now.Add(s.SyncInterval())
	s.ConsecutiveFailures = 0
	s.LastError = ""
	s.LastSyncedAt = &now
	s.NextSyncAt = &next
	if s.Status == SourceError {
		s.Status = SourceActive
	}
}

// RecordFailure applies a failed sync: the failure counter grows, the
// source is parked in SourceError at the threshold, and the next attempt
// is pushed out exponentially.
func (s *Source) RecordFailure(now time.Time, message string) {
	s.ConsecutiveFailures++
	s.LastError = message
	if s.ConsecutiveFailures >= MaxConsecutiveFailures {
		s.Status = SourceError
	}
	next := now.Add(Backoff(s.SyncInterval(), s.ConsecutiveFailures))
	s.NextSyncAt = &next
}

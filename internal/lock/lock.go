// internal/lock/lock.go

// Package lock provides per-key single-flight guards shared by the
// scheduler and manual sync triggers.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLocked is returned when the key is already held.
var ErrLocked = errors.New("lock is held by another owner")

// Locker grants exclusive, non-blocking ownership of a key. The returned
// release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// SourceKey is the lock key for syncing one source.
func SourceKey(sourceID int64) string {
	return fmt.Sprintf("source:%d:sync", sourceID)
}

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// Acquire takes key or fails with ErrLocked.
func (m *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, ErrLocked
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently taken.
func (m *MemoryLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}

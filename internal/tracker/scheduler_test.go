// internal/tracker/scheduler_test.go
package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/lock"
	"github.com/valpere/PriceScrapexter/internal/tracker/mocks"
)

type syncFunc func(ctx context.Context, id int64) (*domain.SyncLog, error)

func (f syncFunc) SyncSource(ctx context.Context, id int64) (*domain.SyncLog, error) {
	return f(ctx, id)
}

func TestScheduler_RunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	sources := mocks.NewMockSourceStore(ctrl)

	sources.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return([]domain.Source{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}, nil)

	var order []int64
	syncer := syncFunc(func(ctx context.Context, id int64) (*domain.SyncLog, error) {
		order = append(order, id)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline, "each sync runs under a timeout")
		switch id {
		case 1:
			return &domain.SyncLog{Status: domain.SyncSuccess}, nil
		case 2:
			return &domain.SyncLog{Status: domain.SyncFailed}, nil
		case 3:
			return nil, lock.ErrLocked
		default:
			return nil, errors.New("source vanished")
		}
	})

	s := NewScheduler(sources, syncer, time.Hour, nil)
	res, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, order, "sources sync sequentially in order")
	assert.Equal(t, TickResult{Due: 4, Succeeded: 1, Failed: 2, Skipped: 1}, res)
}

type countingPacer struct {
	pauses int
	err    error
}

func (c *countingPacer) Pause(ctx context.Context) error {
	c.pauses++
	return c.err
}

func TestScheduler_PausesBetweenSources(t *testing.T) {
	ctrl := gomock.NewController(t)
	sources := mocks.NewMockSourceStore(ctrl)
	sources.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return([]domain.Source{{ID: 1}, {ID: 2}, {ID: 3}}, nil)

	var trace []string
	syncer := syncFunc(func(ctx context.Context, id int64) (*domain.SyncLog, error) {
		trace = append(trace, "sync")
		return &domain.SyncLog{Status: domain.SyncSuccess}, nil
	})

	s := NewScheduler(sources, syncer, time.Hour, nil)
	s.SetPacer(pacerFunc(func(ctx context.Context) error {
		trace = append(trace, "pause")
		return nil
	}))

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, []string{"sync", "pause", "sync", "pause", "sync"}, trace)
}

func TestScheduler_PauseInterruptedStopsTick(t *testing.T) {
	ctrl := gomock.NewController(t)
	sources := mocks.NewMockSourceStore(ctrl)
	sources.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return([]domain.Source{{ID: 1}, {ID: 2}}, nil)

	synced := 0
	s := NewScheduler(sources, syncFunc(func(context.Context, int64) (*domain.SyncLog, error) {
		synced++
		return &domain.SyncLog{Status: domain.SyncSuccess}, nil
	}), time.Hour, nil)
	pacer := &countingPacer{err: context.Canceled}
	s.SetPacer(pacer)

	res, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, synced)
	assert.Equal(t, 1, pacer.pauses)
	assert.Equal(t, 1, res.Succeeded)
}

type pacerFunc func(ctx context.Context) error

func (f pacerFunc) Pause(ctx context.Context) error { return f(ctx) }

func TestScheduler_RunOnceListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	sources := mocks.NewMockSourceStore(ctrl)
	sources.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	s := NewScheduler(sources, syncFunc(func(context.Context, int64) (*domain.SyncLog, error) {
		t.Fatal("no sync expected")
		return nil, nil
	}), time.Hour, nil)

	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestScheduler_StartTicksUntilCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	sources := mocks.NewMockSourceStore(ctrl)

	var mu sync.Mutex
	ticks := 0
	sources.EXPECT().ListDue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, time.Time) ([]domain.Source, error) {
			mu.Lock()
			ticks++
			mu.Unlock()
			return nil, nil
		},
	).MinTimes(2)

	s := NewScheduler(sources, syncFunc(func(context.Context, int64) (*domain.SyncLog, error) {
		return nil, nil
	}), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(nil, nil, 0, nil)
	assert.Equal(t, DefaultTickInterval, s.interval)
}

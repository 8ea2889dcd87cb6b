// internal/tracker/scheduler.go
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/lock"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

const (
	// DefaultTickInterval is how often due sources are checked.
	DefaultTickInterval = 15 * time.Minute
	// DefaultSyncTimeout bounds one source sync inside a tick.
	DefaultSyncTimeout = 10 * time.Minute
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	SyncSource(ctx context.Context, sourceID int64) (*domain.SyncLog, error)
}

// Pacer spaces out consecutive syncs so that one tick does not hit sites
// at machine speed.
type Pacer interface {
	Pause(ctx context.Context) error
}

// TickResult summarizes one scheduler pass.
type TickResult struct {
	Due       int
	Succeeded int
	Failed    int
	Skipped   int
}

// Scheduler syncs due sources sequentially on a fixed tick.
type Scheduler struct {
	sources  SourceStore
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	pacer    Pacer
	logger   utils.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler that checks for due sources every
// interval. A non-positive interval selects DefaultTickInterval.
func NewScheduler(sources SourceStore, syncer Syncer, interval time.Duration, logger utils.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Scheduler{
		sources:  sources,
		syncer:   syncer,
		interval: interval,
		timeout:  DefaultSyncTimeout,
		logger:   logger.WithField("component", "scheduler"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetSyncTimeout overrides the per-source timeout.
func (s *Scheduler) SetSyncTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// SetPacer applies a random delay between consecutive source syncs.
func (s *Scheduler) SetPacer(p Pacer) {
	s.pacer = p
}

// Start runs a pass immediately and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Infof("scheduler started, interval %s", s.interval)

	s.runTick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Errorf("scheduler tick failed: %v", err)
	}
}

// RunOnce syncs every source that is due now.
func (s *Scheduler) RunOnce(ctx context.Context) (TickResult, error) {
	var res TickResult

	due, err := s.sources.ListDue(ctx, s.now())
	if err != nil {
		return res, err
	}
	res.Due = len(due)
	if len(due) > 0 {
		s.logger.Infof("%d sources due for sync", len(due))
	}

	for i, src := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if i > 0 && s.pacer != nil {
			if err := s.pacer.Pause(ctx); err != nil {
				return res, err
			}
		}
		s.syncOne(ctx, src.ID, &res)
	}

	if res.Due > 0 {
		s.logger.Infof("tick finished: %d succeeded, %d failed, %d skipped", res.Succeeded, res.Failed, res.Skipped)
	}
	return res, nil
}

func (s *Scheduler) syncOne(ctx context.Context, sourceID int64, res *TickResult) {
	syncCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.logger.WithField("source_id", sourceID)
	entry, err := s.syncer.SyncSource(syncCtx, sourceID)
	switch {
	case errors.Is(err, lock.ErrLocked):
		log.Info("sync already in progress, skipping")
		res.Skipped++
	case err != nil:
		log.Errorf("error syncing source: %v", err)
		res.Failed++
	case entry.Status == domain.SyncSuccess:
		res.Succeeded++
	default:
		res.Failed++
	}
}

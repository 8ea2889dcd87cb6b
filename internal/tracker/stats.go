// internal/tracker/stats.go
package tracker

import (
	"context"
	"math"

	"github.com/valpere/PriceScrapexter/internal/domain"
)

// StatsWindow is how many recent attempts Stats considers.
const StatsWindow = 10

// Stats summarizes the most recent sync attempts of a source.
func Stats(ctx context.Context, logs SyncLogStore, sourceID int64) (domain.SyncStats, error) {
	recent, err := logs.Recent(ctx, sourceID, StatsWindow)
	if err != nil {
		return domain.SyncStats{}, err
	}
	return summarize(recent), nil
}

// Stats summarizes the most recent sync attempts of a source.
func (o *Orchestrator) Stats(ctx context.Context, sourceID int64) (domain.SyncStats, error) {
	return Stats(ctx, o.logs, sourceID)
}

func summarize(recent []domain.SyncLog) domain.SyncStats {
	if len(recent) == 0 {
		return domain.SyncStats{}
	}

	var succeeded, found int
	for _, l := range recent {
		if l.Status == domain.SyncSuccess {
			succeeded++
		}
		found += l.ProductsFound
	}

	n := float64(len(recent))
	return domain.SyncStats{
		TotalSyncs:       len(recent),
		SuccessRate:      float64(succeeded) / n * 100,
		AvgProductsFound: math.Round(float64(found)/n*10) / 10,
	}
}

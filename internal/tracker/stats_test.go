// internal/tracker/stats_test.go
package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/tracker/mocks"
)

func TestStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	logs := mocks.NewMockSyncLogStore(ctrl)

	logs.EXPECT().Recent(gomock.Any(), int64(3), StatsWindow).Return([]domain.SyncLog{
		{Status: domain.SyncSuccess, ProductsFound: 12},
		{Status: domain.SyncSuccess, ProductsFound: 11},
		{Status: domain.SyncFailed},
	}, nil)

	stats, err := Stats(context.Background(), logs, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalSyncs)
	assert.InDelta(t, 66.666, stats.SuccessRate, 0.01)
	assert.Equal(t, 7.7, stats.AvgProductsFound)
}

func TestStats_NoHistory(t *testing.T) {
	assert.Equal(t, domain.SyncStats{}, summarize(nil))
}

package returns

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/infrastructure/cache"
)

func pendingStatistics(vendorID uuid.UUID, pending int64) *returns.Statistics {
	return returns.NewStatistics(vendorID,
		map[returns.ReturnStatus]int64{returns.StatusPendingApproval: pending},
		map[returns.ReturnStatus]decimal.Decimal{returns.StatusPendingApproval: decimal.NewFromInt(100 * pending)})
}

func TestStatistics_TransitionDuringComputeIsNotCached(t *testing.T) {
	repo := new(MockReturnOrderRepository)
	stats := cache.NewStatisticsCache(time.Minute)
	qs := NewReturnQueryService(repo, nil, zap.NewNop())
	qs.SetStatisticsCache(stats)
	vendorID := uuid.New()
	ctx := context.Background()

	// a transition commits and invalidates while the first read is still aggregating
	repo.On("Statistics", mock.Anything, vendorID).
		Run(func(mock.Arguments) { stats.Invalidate(vendorID) }).
		Return(pendingStatistics(vendorID, 2), nil).Once()
	repo.On("Statistics", mock.Anything, vendorID).
		Return(pendingStatistics(vendorID, 1), nil).Once()

	first, err := qs.Statistics(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.AwaitingApproval)
	_, cached := stats.Get(vendorID)
	assert.False(t, cached, "a dashboard older than the last invalidation must not be cached")

	second, err := qs.Statistics(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.AwaitingApproval)

	third, err := qs.Statistics(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), third.AwaitingApproval)
	repo.AssertNumberOfCalls(t, "Statistics", 2)
}

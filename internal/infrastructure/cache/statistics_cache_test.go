package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/returns/internal/domain/returns"
)

func sampleStatistics(vendorID uuid.UUID) *returns.Statistics {
	return returns.NewStatistics(vendorID,
		map[returns.ReturnStatus]int64{returns.StatusPendingApproval: 2, returns.StatusRefundCompleted: 1},
		map[returns.ReturnStatus]decimal.Decimal{
			returns.StatusPendingApproval: decimal.RequireFromString("100.00"),
			returns.StatusRefundCompleted: decimal.RequireFromString("50.00"),
		})
}

func TestStatisticsCache_SetGetInvalidate(t *testing.T) {
	c := NewStatisticsCache(time.Minute)
	vendorID := uuid.New()

	_, found := c.Get(vendorID)
	assert.False(t, found)

	assert.True(t, c.Set(vendorID, c.Generation(vendorID), sampleStatistics(vendorID)))
	got, found := c.Get(vendorID)
	require.True(t, found)
	assert.Equal(t, int64(3), got.Total)
	assert.True(t, got.RefundedAmount.Equal(decimal.RequireFromString("50.00")))

	_, found = c.Get(uuid.New())
	assert.False(t, found, "entries are per vendor")

	c.Invalidate(vendorID)
	_, found = c.Get(vendorID)
	assert.False(t, found)
}

func TestStatisticsCache_ReturnsCopies(t *testing.T) {
	c := NewStatisticsCache(time.Minute)
	vendorID := uuid.New()
	c.Set(vendorID, c.Generation(vendorID), sampleStatistics(vendorID))

	first, _ := c.Get(vendorID)
	first.ByStatus[returns.StatusPendingApproval] = 99

	second, _ := c.Get(vendorID)
	assert.Equal(t, int64(2), second.ByStatus[returns.StatusPendingApproval])
}

func TestStatisticsCache_Expires(t *testing.T) {
	c := NewStatisticsCache(20 * time.Millisecond)
	vendorID := uuid.New()
	c.Set(vendorID, 0, sampleStatistics(vendorID))

	time.Sleep(40 * time.Millisecond)
	_, found := c.Get(vendorID)
	assert.False(t, found)
}

func TestStatisticsCache_DisabledWithZeroTTL(t *testing.T) {
	c := NewStatisticsCache(0)
	vendorID := uuid.New()
	assert.False(t, c.Set(vendorID, 0, sampleStatistics(vendorID)))
	c.Invalidate(vendorID)

	_, found := c.Get(vendorID)
	assert.False(t, found)
}

func TestStatisticsCache_SetRefusesStaleGeneration(t *testing.T) {
	c := NewStatisticsCache(time.Minute)
	vendorID := uuid.New()
	other := uuid.New()

	// a dashboard computed before a transition landed
	before := c.Generation(vendorID)
	c.Invalidate(vendorID)
	assert.False(t, c.Set(vendorID, before, sampleStatistics(vendorID)))
	_, found := c.Get(vendorID)
	assert.False(t, found)

	assert.True(t, c.Set(vendorID, c.Generation(vendorID), sampleStatistics(vendorID)))
	_, found = c.Get(vendorID)
	assert.True(t, found)

	assert.True(t, c.Set(other, c.Generation(other), sampleStatistics(other)),
		"another vendor's invalidation does not affect this one")
}

func TestStatisticsCache_ConcurrentInvalidateWins(t *testing.T) {
	c := NewStatisticsCache(time.Minute)
	vendorID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set(vendorID, c.Generation(vendorID), sampleStatistics(vendorID))
		}()
		go func() {
			defer wg.Done()
			c.Invalidate(vendorID)
		}()
	}
	wg.Wait()

	c.Invalidate(vendorID)
	_, found := c.Get(vendorID)
	assert.False(t, found)
	assert.Equal(t, uint64(51), c.Generation(vendorID))
}

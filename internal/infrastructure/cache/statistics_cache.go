package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/marketplace/returns/internal/domain/returns"
)

// StatisticsCache keeps each vendor's return dashboard for a short TTL.
// Transitions invalidate the vendor's entry so a dashboard never lags a
// write made through this instance. Every invalidation bumps the vendor's
// generation, and Set refuses a dashboard computed under an older one.
type StatisticsCache struct {
	items *gocache.Cache

	mu          sync.Mutex
	generations map[uuid.UUID]uint64
}

// NewStatisticsCache creates a cache. A non-positive ttl disables caching.
func NewStatisticsCache(ttl time.Duration) *StatisticsCache {
	c := &StatisticsCache{generations: make(map[uuid.UUID]uint64)}
	if ttl > 0 {
		c.items = gocache.New(ttl, 2*ttl)
	}
	return c
}

// Get returns a copy of the cached dashboard
func (c *StatisticsCache) Get(vendorID uuid.UUID) (*returns.Statistics, bool) {
	if c.items == nil {
		return nil, false
	}
	v, found := c.items.Get(vendorID.String())
	if !found {
		return nil, false
	}
	return cloneStatistics(v.(*returns.Statistics)), true
}

// Generation returns the vendor's invalidation count. Read it before
// computing a dashboard and hand it to Set.
func (c *StatisticsCache) Generation(vendorID uuid.UUID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[vendorID]
}

// Set stores the dashboard with the default TTL unless the vendor was
// invalidated since generation was read. It reports whether it stored.
func (c *StatisticsCache) Set(vendorID uuid.UUID, generation uint64, stats *returns.Statistics) bool {
	if c.items == nil || stats == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[vendorID] != generation {
		return false
	}
	c.items.SetDefault(vendorID.String(), cloneStatistics(stats))
	return true
}

// Invalidate drops the vendor's dashboard and bumps its generation
func (c *StatisticsCache) Invalidate(vendorID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[vendorID]++
	if c.items != nil {
		c.items.Delete(vendorID.String())
	}
}

func cloneStatistics(s *returns.Statistics) *returns.Statistics {
	out := *s
	out.ByStatus = make(map[returns.ReturnStatus]int64, len(s.ByStatus))
	for k, v := range s.ByStatus {
		out.ByStatus[k] = v
	}
	out.ByBucket = make(map[returns.StatusBucket]int64, len(s.ByBucket))
	for k, v := range s.ByBucket {
		out.ByBucket[k] = v
	}
	return &out
}

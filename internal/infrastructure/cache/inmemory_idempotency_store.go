package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/marketplace/returns/internal/domain/shared"
)

const defaultCleanupInterval = 5 * time.Minute

// InMemoryIdempotencyStore implements IdempotencyStore on a process-local TTL cache.
// Suitable for single-instance deployments and tests.
type InMemoryIdempotencyStore struct {
	items *gocache.Cache
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store.
// Expired entries are swept every five minutes.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		items: gocache.New(gocache.NoExpiration, defaultCleanupInterval),
	}
}

// MarkProcessed marks an event as processed with a TTL.
// Returns true if the event was newly marked, false if it was already processed.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	// Add fails when an unexpired item exists; the check and the insert share one lock.
	if err := s.items.Add(eventID, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// IsProcessed checks if an event has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	_, found := s.items.Get(eventID)
	return found, nil
}

// Unmark forgets an event so its handler runs again on redelivery
func (s *InMemoryIdempotencyStore) Unmark(ctx context.Context, eventID string) error {
	s.items.Delete(eventID)
	return nil
}

// Close releases the stored entries
func (s *InMemoryIdempotencyStore) Close() error {
	s.items.Flush()
	return nil
}

// Size returns the number of entries in the store, expired ones included until swept
func (s *InMemoryIdempotencyStore) Size() int {
	return s.items.ItemCount()
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

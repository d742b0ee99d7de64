package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed event IDs so that at-least-once delivery
// from the outbox results in a single side effect
type IdempotencyStore interface {
	// MarkProcessed returns true if the event was newly marked, false if already seen
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// Unmark forgets an event so a failed side effect can be retried
	Unmark(ctx context.Context, eventID string) error
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL must exceed the outbox's full retry window
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     72 * time.Hour,
		Enabled: true,
	}
}

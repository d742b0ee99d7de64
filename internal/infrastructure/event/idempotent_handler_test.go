package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
)

type memoryStore struct {
	mu      sync.Mutex
	seen    map[string]bool
	markErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{seen: make(map[string]bool)}
}

func (s *memoryStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *memoryStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

func (s *memoryStore) Unmark(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, eventID)
	return nil
}

func (s *memoryStore) Close() error { return nil }

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	inner := newRecordingHandler(returns.EventTypeInspectionPassed)
	h := NewIdempotentHandler(inner, newMemoryStore(), zap.NewNop())
	event := newReturnEvent(returns.EventTypeInspectionPassed)

	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, 1, inner.count())
	stats := h.Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.EventsDuplicate)
	assert.Equal(t, []string{returns.EventTypeInspectionPassed}, h.EventTypes())
}

func TestIdempotentHandler_FailureAllowsRetry(t *testing.T) {
	inner := newRecordingHandler(returns.EventTypeInspectionFailed)
	inner.setError(errors.New("smtp timeout"))
	store := newMemoryStore()
	h := NewIdempotentHandler(inner, store, zap.NewNop())
	event := newReturnEvent(returns.EventTypeInspectionFailed)

	require.Error(t, h.Handle(context.Background(), event))
	processed, _ := store.IsProcessed(context.Background(), event.EventID().String())
	assert.False(t, processed, "mark is cleared after a failure")

	inner.setError(nil)
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Equal(t, 2, inner.count())
	assert.Equal(t, int64(1), h.Stats().EventsFailed)
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	inner := newRecordingHandler()
	store := newMemoryStore()
	store.markErr = errors.New("redis down")
	h := NewIdempotentHandler(inner, store, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), newReturnEvent(returns.EventTypePickupScheduled)))
	assert.Equal(t, 1, inner.count())
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	inner := newRecordingHandler()
	h := NewIdempotentHandler(inner, newMemoryStore(), zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	event := newReturnEvent(returns.EventTypePickupScheduled)

	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Equal(t, 2, inner.count())
}

// outcomeRecorder remembers reported outcomes in order
type outcomeRecorder struct {
	outcomes []string
}

func (r *outcomeRecorder) RecordDelivery(_ context.Context, eventType, outcome string) {
	r.outcomes = append(r.outcomes, eventType+":"+outcome)
}

func TestIdempotentHandler_ReportsOutcomes(t *testing.T) {
	inner := newRecordingHandler(returns.EventTypeRefundCompleted)
	rec := &outcomeRecorder{}
	h := NewIdempotentHandler(inner, newMemoryStore(), zap.NewNop(), WithDeliveryRecorder(rec))
	event := newReturnEvent(returns.EventTypeRefundCompleted)
	ctx := context.Background()

	inner.setError(errors.New("smtp timeout"))
	require.Error(t, h.Handle(ctx, event))
	inner.setError(nil)
	require.NoError(t, h.Handle(ctx, event))
	require.NoError(t, h.Handle(ctx, event))

	assert.Equal(t, []string{
		"ReturnRefundCompleted:failed",
		"ReturnRefundCompleted:processed",
		"ReturnRefundCompleted:duplicate",
	}, rec.outcomes)
}

package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/infrastructure/config"
)

func newProcessorFixture(t *testing.T) (*GormOutboxRepository, *InMemoryEventBus, *OutboxProcessor) {
	t.Helper()
	repo := NewGormOutboxRepository(setupOutboxDB(t))
	bus := NewInMemoryEventBus(zap.NewNop())
	serializer := NewEventSerializer()
	RegisterReturnEvents(serializer)
	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), zap.NewNop())
	return repo, bus, processor
}

func TestOutboxProcessor_ProcessBatch_Delivers(t *testing.T) {
	repo, bus, processor := newProcessorFixture(t)
	handler := newRecordingHandler(returns.EventTypePackageReceived)
	bus.Subscribe(handler)
	ctx := context.Background()

	entry := newTestEntry(t, time.Now())
	require.NoError(t, repo.Save(ctx, entry))

	stats := processor.ProcessBatch(ctx)

	assert.Equal(t, BatchStats{Sent: 1}, stats)
	assert.Equal(t, 1, handler.count())
	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestOutboxProcessor_ProcessBatch_HandlerFailureSchedulesRetry(t *testing.T) {
	repo, bus, processor := newProcessorFixture(t)
	handler := newRecordingHandler(returns.EventTypePackageReceived)
	handler.setError(errors.New("notifier down"))
	bus.Subscribe(handler)
	ctx := context.Background()

	entry := newTestEntry(t, time.Now())
	require.NoError(t, repo.Save(ctx, entry))

	assert.Equal(t, BatchStats{Failed: 1}, processor.ProcessBatch(ctx))

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, "notifier down")
	require.NotNil(t, stored.NextRetryAt)
}

func TestOutboxProcessor_ProcessBatch_UnknownTypeFails(t *testing.T) {
	repo, _, processor := newProcessorFixture(t)
	ctx := context.Background()

	entry := newTestEntry(t, time.Now())
	entry.EventType = "LegacyEvent"
	require.NoError(t, repo.Save(ctx, entry))

	processor.ProcessBatch(ctx)

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "unknown event type")
}

func TestOutboxProcessor_ProcessBatch_RetriesDueEntriesUntilDead(t *testing.T) {
	repo, bus, processor := newProcessorFixture(t)
	handler := newRecordingHandler(returns.EventTypePackageReceived)
	handler.setError(errors.New("smtp: connection refused"))
	bus.Subscribe(handler)
	ctx := context.Background()

	entry := newTestEntry(t, time.Now())
	entry.MaxRetries = 2
	require.NoError(t, repo.Save(ctx, entry))

	assert.Equal(t, BatchStats{Failed: 1}, processor.ProcessBatch(ctx))

	// backoff has not elapsed yet
	assert.Equal(t, BatchStats{}, processor.ProcessBatch(ctx))

	processor.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, BatchStats{Dead: 1}, processor.ProcessBatch(ctx))
	assert.Equal(t, 2, handler.count())

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDead())
	assert.Nil(t, stored.NextRetryAt)
}

func TestOutboxProcessor_CleanupPurgesOldSentEntries(t *testing.T) {
	repo, bus, processor := newProcessorFixture(t)
	bus.Subscribe(newRecordingHandler(returns.EventTypePackageReceived))
	ctx := context.Background()

	entry := newTestEntry(t, time.Now())
	require.NoError(t, repo.Save(ctx, entry))
	require.Equal(t, BatchStats{Sent: 1}, processor.ProcessBatch(ctx))

	processor.cleanup(ctx)
	_, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err, "entry inside the retention window is kept")

	processor.now = func() time.Time { return time.Now().Add(DefaultOutboxProcessorConfig().CleanupRetention + time.Hour) }
	processor.cleanup(ctx)
	_, err = repo.FindByID(ctx, entry.ID)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	_, _, processor := newProcessorFixture(t)

	require.NoError(t, processor.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, processor.Stop(ctx))
}

func TestOutboxProcessorConfigFrom(t *testing.T) {
	cfg := OutboxProcessorConfigFrom(config.EventConfig{
		BatchSize:      25,
		PollInterval:   2 * time.Second,
		CleanupEnabled: false,
	})

	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.False(t, cfg.CleanupEnabled)
	assert.Equal(t, DefaultOutboxProcessorConfig().CleanupRetention, cfg.CleanupRetention)
}

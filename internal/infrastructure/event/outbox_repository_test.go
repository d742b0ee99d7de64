package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
)

func newTestEntry(t *testing.T, createdAt time.Time) *shared.OutboxEntry {
	t.Helper()
	serializer := NewEventSerializer()
	event := newReturnEvent(returns.EventTypePackageReceived)
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)

	entry := shared.NewOutboxEntry(event, payload)
	entry.CreatedAt = createdAt
	entry.UpdatedAt = createdAt
	return entry
}

func TestGormOutboxRepository_SaveAndFindPending(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	second := newTestEntry(t, base.Add(time.Minute))
	first := newTestEntry(t, base)
	require.NoError(t, repo.Save(ctx, second, first))
	require.NoError(t, repo.Save(ctx))

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
	assert.Equal(t, first.VendorID, pending[0].VendorID)
	assert.JSONEq(t, string(first.Payload), string(pending[0].Payload))
}

func TestGormOutboxRepository_MarkProcessing_ClaimsOnce(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()

	entry := newTestEntry(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Save(ctx, entry))

	claimed, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, shared.OutboxStatusProcessing, claimed[0].Status)

	again, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	assert.Empty(t, again)

	none, err := repo.MarkProcessing(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGormOutboxRepository_RetryAndDeadLetter(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	retrying := newTestEntry(t, base)
	dead := newTestEntry(t, base)
	require.NoError(t, repo.Save(ctx, retrying, dead))

	retrying.MarkFailed("webhook timeout")
	due := base.Add(time.Minute)
	retrying.NextRetryAt = &due
	require.NoError(t, repo.Update(ctx, retrying))

	dead.RetryCount = dead.MaxRetries - 1
	dead.MarkFailed("still failing")
	require.True(t, dead.IsDead())
	require.NoError(t, repo.Update(ctx, dead))

	notYet, err := repo.FindRetryable(ctx, base, 10)
	require.NoError(t, err)
	assert.Empty(t, notYet)

	ready, err := repo.FindRetryable(ctx, base.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, retrying.ID, ready[0].ID)
	assert.Equal(t, "webhook timeout", ready[0].LastError)

	deadEntries, total, err := repo.FindDead(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, deadEntries, 1)
	assert.Equal(t, dead.ID, deadEntries[0].ID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusFailed])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusDead])
}

func TestGormOutboxRepository_FindByIDAndCleanup(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	entry := newTestEntry(t, base)
	require.NoError(t, repo.Save(ctx, entry))

	found, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.EventID, found.EventID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	entry.MarkSent()
	entry.ProcessedAt = &base
	require.NoError(t, repo.Update(ctx, entry))

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestOutboxPublisher_SaveEvents(t *testing.T) {
	db := setupOutboxDB(t)
	serializer := NewEventSerializer()
	RegisterReturnEvents(serializer)
	publisher := NewOutboxPublisher(serializer, 3)
	ctx := context.Background()

	event := newReturnEvent(returns.EventTypeReturnApproved)
	require.NoError(t, publisher.SaveEvents(ctx, db, event))

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, event.EventID(), pending[0].EventID)
	assert.Equal(t, returns.EventTypeReturnApproved, pending[0].EventType)
	assert.Equal(t, 3, pending[0].MaxRetries)

	err = publisher.SaveEvents(ctx, "not a transaction", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "txProvider must be a *gorm.DB")
}

package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/infrastructure/persistence/models"
)

func newReturnEvent(eventType string) *returns.ReturnLifecycleEvent {
	return &returns.ReturnLifecycleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, returns.AggregateTypeReturnOrder, uuid.New(), uuid.New(), time.Now().UTC()),
		ReturnNumber:    "RET-20260301-000001",
		OrderID:         uuid.New(),
		CustomerID:      uuid.New(),
		FromStatus:      returns.StatusApproved,
		ToStatus:        returns.StatusPickupScheduled,
		RefundAmount:    decimal.RequireFromString("499.00"),
		AwbNumber:       "AWB123",
		ActorType:       "vendor",
		ActorID:         "vendor-user-1",
	}
}

// recordingHandler remembers what it handled and fails on demand
type recordingHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) setError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))
	return db
}

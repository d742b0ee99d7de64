package returns

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/infrastructure/cache"
	"github.com/marketplace/returns/internal/infrastructure/event"
)

func lifecycleEvent(eventType string, customerID uuid.UUID) *returns.ReturnLifecycleEvent {
	return &returns.ReturnLifecycleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, returns.AggregateTypeReturnOrder, uuid.New(), uuid.New(), testNow),
		ReturnNumber:    "RET-20260310-000011",
		CustomerID:      customerID,
		ToStatus:        returns.StatusPickupScheduled,
		RefundAmount:    decimal.RequireFromString("500"),
	}
}

func TestReturnNotificationHandler_EventTypes(t *testing.T) {
	h := NewReturnNotificationHandler(new(MockCustomerReader), new(MockNotifier), zap.NewNop())
	assert.ElementsMatch(t, []string{
		returns.EventTypePickupScheduled,
		returns.EventTypePackageReceived,
		returns.EventTypeInspectionPassed,
		returns.EventTypeInspectionFailed,
	}, h.EventTypes())
}

func TestReturnNotificationHandler_Handle(t *testing.T) {
	ctx := context.Background()
	customer := &returns.CustomerContact{ID: uuid.New(), Name: "Asha Rao", Email: "asha@example.com"}

	t.Run("notifies customer", func(t *testing.T) {
		customers := new(MockCustomerReader)
		notifier := new(MockNotifier)
		h := NewReturnNotificationHandler(customers, notifier, zap.NewNop())
		evt := lifecycleEvent(returns.EventTypeInspectionFailed, customer.ID)

		customers.On("GetCustomer", ctx, customer.ID).Return(customer, nil)
		notifier.On("Notify", ctx, returns.NotifyInspectionFailed, evt, customer).Return(nil)

		require.NoError(t, h.Handle(ctx, evt))
		notifier.AssertExpectations(t)
	})

	t.Run("notifier failure is returned for retry", func(t *testing.T) {
		customers := new(MockCustomerReader)
		notifier := new(MockNotifier)
		h := NewReturnNotificationHandler(customers, notifier, zap.NewNop())
		evt := lifecycleEvent(returns.EventTypePickupScheduled, customer.ID)

		customers.On("GetCustomer", ctx, customer.ID).Return(customer, nil)
		notifier.On("Notify", ctx, returns.NotifyPickupScheduled, evt, customer).Return(errors.New("smtp down"))

		err := h.Handle(ctx, evt)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "smtp down")
	})

	t.Run("missing customer", func(t *testing.T) {
		customers := new(MockCustomerReader)
		notifier := new(MockNotifier)
		h := NewReturnNotificationHandler(customers, notifier, zap.NewNop())
		evt := lifecycleEvent(returns.EventTypePackageReceived, customer.ID)

		customers.On("GetCustomer", ctx, customer.ID).Return(nil, shared.NewNotFoundError("Customer"))

		err := h.Handle(ctx, evt)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("event without notification is skipped", func(t *testing.T) {
		notifier := new(MockNotifier)
		h := NewReturnNotificationHandler(new(MockCustomerReader), notifier, zap.NewNop())

		require.NoError(t, h.Handle(ctx, lifecycleEvent(returns.EventTypeReturnApproved, customer.ID)))
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

// The outbox delivers at least once; the idempotent wrapper keeps a redelivered
// event from notifying the customer twice.
func TestReturnNotificationHandler_RedeliveryNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	customer := &returns.CustomerContact{ID: uuid.New(), Name: "Asha Rao"}
	customers := new(MockCustomerReader)
	notifier := new(MockNotifier)
	customers.On("GetCustomer", ctx, customer.ID).Return(customer, nil)
	notifier.On("Notify", ctx, returns.NotifyPackageReceived, mock.Anything, customer).Return(nil).Once()

	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	h := event.NewIdempotentHandler(NewReturnNotificationHandler(customers, notifier, zap.NewNop()), store, zap.NewNop())

	evt := lifecycleEvent(returns.EventTypePackageReceived, customer.ID)
	require.NoError(t, h.Handle(ctx, evt))
	require.NoError(t, h.Handle(ctx, evt))

	notifier.AssertNumberOfCalls(t, "Notify", 1)
}

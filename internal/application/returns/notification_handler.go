package returns

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/infrastructure/telemetry"
)

// ReturnNotificationHandler tells the customer about pickup, receipt and
// inspection results. It runs from the outbox, after the transition committed.
type ReturnNotificationHandler struct {
	customers returns.CustomerReader
	notifier  returns.Notifier
	metrics   *telemetry.ReturnMetrics
	logger    *zap.Logger
}

// NewReturnNotificationHandler creates a new handler for customer notifications
func NewReturnNotificationHandler(
	customers returns.CustomerReader,
	notifier returns.Notifier,
	logger *zap.Logger,
) *ReturnNotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnNotificationHandler{
		customers: customers,
		notifier:  notifier,
		logger:    logger,
	}
}

// SetMetrics sets the lifecycle metrics recorder
func (h *ReturnNotificationHandler) SetMetrics(m *telemetry.ReturnMetrics) {
	h.metrics = m
}

// EventTypes returns the event types this handler is interested in
func (h *ReturnNotificationHandler) EventTypes() []string {
	return returns.NotificationEventTypes()
}

// Handle notifies the customer of the event. A returned error makes the outbox retry.
func (h *ReturnNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	lifecycle, ok := event.(*returns.ReturnLifecycleEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", "*returns.ReturnLifecycleEvent"),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event payload for %s: %T", event.EventType(), event)
	}

	notification, ok := returns.NotificationFor(event.EventType())
	if !ok {
		return nil
	}

	customer, err := h.customers.GetCustomer(ctx, lifecycle.CustomerID)
	if err != nil {
		h.logger.Error("failed to load customer for notification",
			zap.String("return_number", lifecycle.ReturnNumber),
			zap.String("customer_id", lifecycle.CustomerID.String()),
			zap.Error(err),
		)
		h.metrics.RecordNotification(ctx, string(notification), err)
		return fmt.Errorf("load customer %s: %w", lifecycle.CustomerID, err)
	}

	err = h.notifier.Notify(ctx, notification, lifecycle, customer)
	h.metrics.RecordNotification(ctx, string(notification), err)
	if err != nil {
		h.logger.Warn("customer notification failed",
			zap.String("event_id", event.EventID().String()),
			zap.String("notification", string(notification)),
			zap.String("return_number", lifecycle.ReturnNumber),
			zap.Error(err),
		)
		return fmt.Errorf("notify %s for %s: %w", notification, lifecycle.ReturnNumber, err)
	}

	h.logger.Info("customer notified",
		zap.String("event_id", event.EventID().String()),
		zap.String("notification", string(notification)),
		zap.String("return_number", lifecycle.ReturnNumber),
	)
	return nil
}

var _ shared.EventHandler = (*ReturnNotificationHandler)(nil)

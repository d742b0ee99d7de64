package event

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/shared"
)

// Delivery outcomes reported by IdempotentHandler
const (
	DeliveryProcessed = "processed"
	DeliveryDuplicate = "duplicate"
	DeliveryFailed    = "failed"
)

// DeliveryRecorder receives one outcome per delivered event
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, eventType, outcome string)
}

// IdempotencyStats counts what the wrapper did since it was created
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// IdempotentHandler wraps an EventHandler so that an event redelivered by the
// outbox produces its side effect at most once
type IdempotentHandler struct {
	handler  shared.EventHandler
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	logger   *zap.Logger
	recorder DeliveryRecorder

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the default TTL and enablement
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithDeliveryRecorder reports every outcome, e.g. to telemetry.ReturnMetrics
func WithDeliveryRecorder(r DeliveryRecorder) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.recorder = r
	}
}

// NewIdempotentHandler wraps handler with the given store
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle marks the event before running the wrapped handler and clears the
// mark when the handler fails, so the outbox retry runs it again. A store
// error is not fatal: the event is processed without the guard.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	eventID := event.EventID().String()
	log := h.logger.With(
		zap.String("event_id", eventID),
		zap.String("event_type", event.EventType()),
	)

	fresh, err := h.store.MarkProcessed(ctx, eventID, h.config.TTL)
	switch {
	case err != nil:
		log.Warn("Idempotency check failed, processing anyway", zap.Error(err))
	case !fresh:
		h.record(ctx, event, DeliveryDuplicate)
		log.Debug("Duplicate event skipped")
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.record(ctx, event, DeliveryFailed)
		log.Error("Event handler failed", zap.Error(err))
		if err := h.store.Unmark(ctx, eventID); err != nil {
			log.Warn("Failed to clear idempotency mark", zap.Error(err))
		}
		return err
	}

	h.record(ctx, event, DeliveryProcessed)
	return nil
}

func (h *IdempotentHandler) record(ctx context.Context, event shared.DomainEvent, outcome string) {
	switch outcome {
	case DeliveryProcessed:
		h.processed.Add(1)
	case DeliveryDuplicate:
		h.duplicate.Add(1)
	case DeliveryFailed:
		h.failed.Add(1)
	}
	if h.recorder != nil {
		h.recorder.RecordDelivery(ctx, event.EventType(), outcome)
	}
}

// Stats returns a snapshot of the outcome counts
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: h.processed.Load(),
		EventsDuplicate: h.duplicate.Load(),
		EventsFailed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)

package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Courier call outcomes
const (
	CourierOutcomeBooked   = "booked"
	CourierOutcomeRejected = "rejected"
	CourierOutcomeFailed   = "failed"
	CourierOutcomeTimeout  = "timeout"
	CourierOutcomeDisabled = "disabled"
)

// ReturnMetrics records the return lifecycle.
// A nil *ReturnMetrics is valid and records nothing.
type ReturnMetrics struct {
	transitions     *Counter
	rejected        *Counter
	courierCalls    *Counter
	courierDuration *Histogram
	refundAmount    *Histogram
	scans           *Counter
	notifications   *Counter
	deliveries      *Counter
}

// NewReturnMetrics creates the return lifecycle instruments on meter
func NewReturnMetrics(meter metric.Meter) (*ReturnMetrics, error) {
	var (
		m   ReturnMetrics
		err error
	)
	if m.transitions, err = NewCounter(meter, "returns.transitions",
		"Return order status transitions", "{transition}"); err != nil {
		return nil, err
	}
	if m.rejected, err = NewCounter(meter, "returns.transitions.rejected",
		"Return operations refused by the state guard", "{operation}"); err != nil {
		return nil, err
	}
	if m.courierCalls, err = NewCounter(meter, "returns.courier.calls",
		"Reverse pickup booking attempts", "{call}"); err != nil {
		return nil, err
	}
	if m.courierDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "returns.courier.duration",
		Description: "Reverse pickup booking latency",
		Unit:        "s",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}); err != nil {
		return nil, err
	}
	if m.refundAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "returns.refund.amount",
		Description: "Refund amounts at initiation",
		Unit:        "{currency}",
		Buckets:     []float64{100, 500, 1000, 5000, 10000, 50000},
	}); err != nil {
		return nil, err
	}
	if m.scans, err = NewCounter(meter, "returns.courier.scans",
		"Courier webhook scans by outcome", "{scan}"); err != nil {
		return nil, err
	}
	if m.notifications, err = NewCounter(meter, "returns.notifications",
		"Customer notifications by outcome", "{notification}"); err != nil {
		return nil, err
	}
	if m.deliveries, err = NewCounter(meter, "returns.events.deliveries",
		"Outbox event deliveries to subscribers by outcome", "{delivery}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordTransition counts a committed status change
func (m *ReturnMetrics) RecordTransition(ctx context.Context, operation, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Inc(ctx,
		attribute.String("operation", operation),
		attribute.String("from", from),
		attribute.String("to", to),
	)
}

// RecordRejected counts an operation the guard refused, by error kind
func (m *ReturnMetrics) RecordRejected(ctx context.Context, operation, kind string) {
	if m == nil {
		return
	}
	m.rejected.Inc(ctx, attribute.String("operation", operation), attribute.String("kind", kind))
}

// RecordCourierCall records a booking attempt and its latency
func (m *ReturnMetrics) RecordCourierCall(ctx context.Context, partner, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("partner", partner), attribute.String("outcome", outcome)}
	m.courierCalls.Inc(ctx, attrs...)
	if outcome != CourierOutcomeDisabled {
		m.courierDuration.RecordDuration(ctx, d, attrs...)
	}
}

// RecordRefundInitiated records the refund amount by method
func (m *ReturnMetrics) RecordRefundInitiated(ctx context.Context, method string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.refundAmount.Record(ctx, amount.InexactFloat64(), attribute.String("method", method))
}

// RecordScan counts a courier webhook scan by outcome
func (m *ReturnMetrics) RecordScan(ctx context.Context, code, outcome string) {
	if m == nil {
		return
	}
	m.scans.Inc(ctx, attribute.String("code", code), attribute.String("outcome", outcome))
}

// RecordNotification counts a notification delivery attempt
func (m *ReturnMetrics) RecordNotification(ctx context.Context, event string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.notifications.Inc(ctx, attribute.String("event", event), attribute.String("outcome", outcome))
}

// RecordDelivery counts an event handed to a subscriber: processed, duplicate or failed
func (m *ReturnMetrics) RecordDelivery(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.Inc(ctx, attribute.String("event", eventType), attribute.String("outcome", outcome))
}

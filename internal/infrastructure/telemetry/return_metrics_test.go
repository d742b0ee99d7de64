package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*ReturnMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewReturnMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestReturnMetrics_Transitions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTransition(ctx, "approve", "pending_approval", "approved")
	m.RecordTransition(ctx, "approve", "pending_approval", "approved")
	m.RecordRejected(ctx, "approve", "invalid_transition")

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumValue(t, got["returns.transitions"],
		attribute.String("operation", "approve"),
		attribute.String("from", "pending_approval"),
		attribute.String("to", "approved"),
	))
	assert.Equal(t, int64(1), sumValue(t, got["returns.transitions.rejected"],
		attribute.String("operation", "approve"),
		attribute.String("kind", "invalid_transition"),
	))
}

func TestReturnMetrics_CourierAndNotifications(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCourierCall(ctx, "partner", CourierOutcomeBooked, 120*time.Millisecond)
	m.RecordCourierCall(ctx, "manual", CourierOutcomeDisabled, 0)
	m.RecordNotification(ctx, "pickup_scheduled", nil)
	m.RecordNotification(ctx, "pickup_scheduled", errors.New("smtp down"))
	m.RecordScan(ctx, "PICKED_UP", "duplicate")
	m.RecordRefundInitiated(ctx, "wallet", decimal.RequireFromString("500"))

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, got["returns.courier.calls"],
		attribute.String("partner", "partner"), attribute.String("outcome", CourierOutcomeBooked)))

	hist, ok := got["returns.courier.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1, "disabled courier records no latency")
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	assert.Equal(t, int64(1), sumValue(t, got["returns.notifications"],
		attribute.String("event", "pickup_scheduled"), attribute.String("outcome", "failed")))
	assert.Equal(t, int64(1), sumValue(t, got["returns.courier.scans"],
		attribute.String("code", "PICKED_UP"), attribute.String("outcome", "duplicate")))

	refunds, ok := got["returns.refund.amount"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Equal(t, 500.0, refunds.DataPoints[0].Sum)
}

func TestReturnMetrics_NilIsNoop(t *testing.T) {
	var m *ReturnMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordTransition(ctx, "approve", "a", "b")
		m.RecordRejected(ctx, "approve", "validation")
		m.RecordCourierCall(ctx, "p", CourierOutcomeFailed, time.Second)
		m.RecordRefundInitiated(ctx, "wallet", decimal.NewFromInt(1))
		m.RecordScan(ctx, "X", "ignored")
		m.RecordNotification(ctx, "e", nil)
	})
}

func TestReturnMetrics_Deliveries(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDelivery(ctx, "ReturnPickupScheduled", "processed")
	m.RecordDelivery(ctx, "ReturnPickupScheduled", "duplicate")
	m.RecordDelivery(ctx, "ReturnPickupScheduled", "processed")

	got := collect(t, reader)["returns.events.deliveries"]
	assert.Equal(t, int64(2), sumValue(t, got,
		attribute.String("event", "ReturnPickupScheduled"), attribute.String("outcome", "processed")))
	assert.Equal(t, int64(1), sumValue(t, got,
		attribute.String("event", "ReturnPickupScheduled"), attribute.String("outcome", "duplicate")))
}

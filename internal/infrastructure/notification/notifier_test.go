package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/infrastructure/config"
)

func samplePayload(eventType string, to returns.ReturnStatus) *returns.ReturnLifecycleEvent {
	pickup := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	return &returns.ReturnLifecycleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, returns.AggregateTypeReturnOrder,
			uuid.New(), uuid.New(), time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)),
		ReturnNumber: "RET-20261018-000042",
		CustomerID:   uuid.New(),
		ToStatus:     to,
		RefundAmount: decimal.RequireFromString("499.5"),
		PickupDate:   &pickup,
		AwbNumber:    "AWB777",
	}
}

func sampleCustomer() *returns.CustomerContact {
	return &returns.CustomerContact{ID: uuid.New(), Name: "Asha", Email: "asha@example.com", Phone: "9800000000"}
}

func TestRender(t *testing.T) {
	payload := samplePayload(returns.EventTypePickupScheduled, returns.StatusPickupScheduled)

	msg := Render(returns.NotifyPickupScheduled, payload, sampleCustomer())
	assert.Contains(t, msg.Subject, "RET-20261018-000042")
	assert.Contains(t, msg.Body, "Hello Asha")
	assert.Contains(t, msg.Body, "20 Oct 2026")
	assert.Contains(t, msg.Body, "AWB777")

	payload.AwbNumber = ""
	msg = Render(returns.NotifyPickupScheduled, payload, nil)
	assert.Contains(t, msg.Body, "seller will contact you")

	msg = Render(returns.NotifyInspectionPassed, payload, nil)
	assert.Contains(t, msg.Body, "499.50")

	payload.InspectionNotes = "Seal broken"
	msg = Render(returns.NotifyInspectionFailed, payload, nil)
	assert.Contains(t, msg.Body, "Seal broken")
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	err := n.Notify(context.Background(), returns.NotifyPackageReceived,
		samplePayload(returns.EventTypePackageReceived, returns.StatusReceived), sampleCustomer())
	require.NoError(t, err)

	entries := logs.FilterMessage("Customer notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "package_received", entries[0].ContextMap()["notification"])
}

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestEmailNotifier(t *testing.T) {
	ctx := context.Background()
	payload := samplePayload(returns.EventTypeInspectionPassed, returns.StatusInspectionPassed)

	t.Run("sends to the customer", func(t *testing.T) {
		sender := &fakeSender{}
		n := newEmailNotifier(sender, "returns@shop.example", zap.NewNop())

		require.NoError(t, n.Notify(ctx, returns.NotifyInspectionPassed, payload, sampleCustomer()))
		require.Len(t, sender.sent, 1)
		assert.Equal(t, []string{"returns@shop.example"}, sender.sent[0].GetHeader("From"))
		assert.Contains(t, sender.sent[0].GetHeader("To")[0], "asha@example.com")
	})

	t.Run("skips customers without email", func(t *testing.T) {
		sender := &fakeSender{}
		n := newEmailNotifier(sender, "returns@shop.example", zap.NewNop())

		require.NoError(t, n.Notify(ctx, returns.NotifyInspectionPassed, payload, &returns.CustomerContact{Name: "NoMail"}))
		assert.Empty(t, sender.sent)
	})

	t.Run("propagates smtp failures for retry", func(t *testing.T) {
		n := newEmailNotifier(&fakeSender{err: errors.New("connection refused")}, "returns@shop.example", zap.NewNop())

		err := n.Notify(ctx, returns.NotifyInspectionPassed, payload, sampleCustomer())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestWebhookNotifier(t *testing.T) {
	payload := samplePayload(returns.EventTypeInspectionFailed, returns.StatusInspectionFailed)

	t.Run("posts the notification", func(t *testing.T) {
		var got webhookPayload
		var idemKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey = r.Header.Get("Idempotency-Key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		n := NewWebhookNotifier(server.URL, time.Second)
		require.NoError(t, n.Notify(context.Background(), returns.NotifyInspectionFailed, payload, sampleCustomer()))

		assert.Equal(t, payload.EventID().String(), idemKey)
		assert.Equal(t, returns.NotifyInspectionFailed, got.Event)
		assert.Equal(t, "RET-20261018-000042", got.ReturnNumber)
		assert.Equal(t, "asha@example.com", got.Email)
		assert.Equal(t, returns.StatusInspectionFailed, got.Status)
	})

	t.Run("gateway error is returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		err := NewWebhookNotifier(server.URL, time.Second).Notify(context.Background(), returns.NotifyInspectionFailed, payload, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})
}

func TestNewNotifier(t *testing.T) {
	logger := zap.NewNop()

	n, err := NewNotifier(config.NotificationConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	n, err = NewNotifier(config.NotificationConfig{Channel: "email", SMTP: config.SMTPConfig{Host: "smtp", Port: 587, From: "a@b.c"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &EmailNotifier{}, n)

	_, err = NewNotifier(config.NotificationConfig{Channel: "email"}, logger)
	assert.Error(t, err)

	n, err = NewNotifier(config.NotificationConfig{Channel: "webhook", WebhookURL: "http://gw"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &WebhookNotifier{}, n)

	_, err = NewNotifier(config.NotificationConfig{Channel: "carrier-pigeon"}, logger)
	assert.Error(t, err)
}

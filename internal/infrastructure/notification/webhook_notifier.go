package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketplace/returns/internal/domain/returns"
)

const defaultWebhookTimeout = 5 * time.Second

// webhookPayload is the document posted to the notification gateway
type webhookPayload struct {
	Event        returns.NotificationEvent `json:"event"`
	EventID      string                    `json:"event_id"`
	ReturnID     string                    `json:"return_id"`
	ReturnNumber string                    `json:"return_number"`
	Status       returns.ReturnStatus      `json:"status"`
	CustomerID   string                    `json:"customer_id"`
	Email        string                    `json:"email,omitempty"`
	Phone        string                    `json:"phone,omitempty"`
	Subject      string                    `json:"subject"`
	Body         string                    `json:"body"`
	OccurredAt   time.Time                 `json:"occurred_at"`
}

// WebhookNotifier hands notifications to an external gateway (SMS, push) over HTTP
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookNotifier{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Notify posts the notification. The event id is sent as Idempotency-Key so
// the gateway can drop redeliveries.
func (n *WebhookNotifier) Notify(ctx context.Context, event returns.NotificationEvent, payload *returns.ReturnLifecycleEvent, customer *returns.CustomerContact) error {
	msg := Render(event, payload, customer)
	doc := webhookPayload{
		Event:        event,
		EventID:      payload.EventID().String(),
		ReturnID:     payload.AggregateID().String(),
		ReturnNumber: payload.ReturnNumber,
		Status:       payload.ToStatus,
		CustomerID:   payload.CustomerID.String(),
		Subject:      msg.Subject,
		Body:         msg.Body,
		OccurredAt:   payload.OccurredAt(),
	}
	if customer != nil {
		doc.Email = customer.Email
		doc.Phone = customer.Phone
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", doc.EventID)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification gateway returned HTTP %d", resp.StatusCode)
	}
	return nil
}

var _ returns.Notifier = (*WebhookNotifier)(nil)

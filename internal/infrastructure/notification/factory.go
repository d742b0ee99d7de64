package notification

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/infrastructure/config"
)

const (
	ChannelLog     = "log"
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

// NewNotifier builds the configured notification channel
func NewNotifier(cfg config.NotificationConfig, logger *zap.Logger) (returns.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Channel)) {
	case "", ChannelLog:
		return NewLogNotifier(logger), nil
	case ChannelEmail:
		if cfg.SMTP.Host == "" || cfg.SMTP.From == "" {
			return nil, fmt.Errorf("notification: smtp host and from address are required for the email channel")
		}
		return NewEmailNotifier(cfg.SMTP, logger), nil
	case ChannelWebhook:
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("notification: webhook url is required for the webhook channel")
		}
		return NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout), nil
	default:
		return nil, fmt.Errorf("notification: unknown channel %q", cfg.Channel)
	}
}

package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/infrastructure/config"
	"github.com/marketplace/returns/internal/infrastructure/logger"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends notifications over SMTP
type EmailNotifier struct {
	sender mailSender
	from   string
	logger *zap.Logger
}

// NewEmailNotifier creates a notifier dialing the configured SMTP server
func NewEmailNotifier(cfg config.SMTPConfig, logger *zap.Logger) *EmailNotifier {
	return newEmailNotifier(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, logger)
}

func newEmailNotifier(sender mailSender, from string, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from, logger: logger}
}

// Notify sends the email. A customer without an email address is skipped,
// not retried.
func (n *EmailNotifier) Notify(ctx context.Context, event returns.NotificationEvent, payload *returns.ReturnLifecycleEvent, customer *returns.CustomerContact) error {
	log := logger.WithLogger(ctx, n.logger).With(
		zap.String("notification", string(event)),
		zap.String("return_number", payload.ReturnNumber),
	)
	if customer == nil || customer.Email == "" {
		log.Warn("Customer has no email address, notification skipped")
		return nil
	}

	msg := Render(event, payload, customer)
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetAddressHeader("To", customer.Email, customer.Name)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := n.sender.DialAndSend(m); err != nil {
		log.Error("Failed to send notification email", zap.Error(err))
		return fmt.Errorf("send %s email: %w", event, err)
	}
	log.Info("Notification email sent")
	return nil
}

var _ returns.Notifier = (*EmailNotifier)(nil)

package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/infrastructure/logger"
)

// LogNotifier writes notifications to the log. Used in development and when
// no delivery channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event returns.NotificationEvent, payload *returns.ReturnLifecycleEvent, customer *returns.CustomerContact) error {
	msg := Render(event, payload, customer)
	fields := []zap.Field{
		zap.String("notification", string(event)),
		zap.String("return_number", payload.ReturnNumber),
		zap.String("customer_id", payload.CustomerID.String()),
		zap.String("subject", msg.Subject),
	}
	logger.WithLogger(ctx, n.logger).Info("Customer notification", fields...)
	return nil
}

var _ returns.Notifier = (*LogNotifier)(nil)

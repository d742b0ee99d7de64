package courier

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/infrastructure/config"
)

// NewAdapter selects the courier implementation once, at startup
func NewAdapter(cfg config.CourierConfig, logger *zap.Logger) (returns.CourierAdapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderManual:
		logger.Info("Courier integration disabled, pickups are scheduled manually")
		return NewManualAdapter(), nil
	case ProviderHTTP:
		adapter, err := NewHTTPAdapter(HTTPConfigFrom(cfg))
		if err != nil {
			return nil, err
		}
		logger.Info("Courier integration enabled",
			zap.String("partner", adapter.Name()),
			zap.Duration("timeout", adapter.config.timeout()),
		)
		return adapter, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

package courier

import (
	"errors"
	"strings"
	"time"

	"github.com/marketplace/returns/internal/infrastructure/config"
)

const (
	ProviderHTTP   = "http"
	ProviderManual = "manual"

	defaultTimeout = 10 * time.Second
)

var (
	ErrMissingBaseURL  = errors.New("courier: base URL is required")
	ErrMissingAPIKey   = errors.New("courier: API key is required")
	ErrMissingName     = errors.New("courier: partner name is required")
	ErrUnknownProvider = errors.New("courier: unknown provider")
)

// HTTPConfig configures the reverse pickup API client
type HTTPConfig struct {
	Name          string
	BaseURL       string
	APIKey        string
	WarehouseCode string
	Timeout       time.Duration
}

// HTTPConfigFrom builds the client config from application config
func HTTPConfigFrom(cfg config.CourierConfig) *HTTPConfig {
	return &HTTPConfig{
		Name:          cfg.Name,
		BaseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:        cfg.APIKey,
		WarehouseCode: cfg.WarehouseCode,
		Timeout:       cfg.Timeout,
	}
}

// Validate checks the client config
func (c *HTTPConfig) Validate() error {
	if c.Name == "" {
		return ErrMissingName
	}
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (c *HTTPConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

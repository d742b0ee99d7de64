package courier

import (
	"context"
	"errors"

	"github.com/marketplace/returns/internal/domain/returns"
)

// ErrManualCourier is returned if a disabled adapter is called anyway
var ErrManualCourier = errors.New("courier: no courier integration configured")

// ManualAdapter stands in when no courier is integrated. Pickups are arranged
// by the vendor and recorded without an awb.
type ManualAdapter struct{}

// NewManualAdapter creates the disabled adapter
func NewManualAdapter() *ManualAdapter {
	return &ManualAdapter{}
}

func (ManualAdapter) Name() string {
	return ProviderManual
}

func (ManualAdapter) IsEnabled() bool {
	return false
}

func (ManualAdapter) CreatePickup(context.Context, returns.PickupRequest) (*returns.PickupResult, error) {
	return nil, ErrManualCourier
}

var _ returns.CourierAdapter = ManualAdapter{}

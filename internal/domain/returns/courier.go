package returns

import (
	"context"
	"encoding/json"
)

// Dimensions of the package handed to the courier
type Dimensions struct {
	LengthCm float64 `json:"length_cm"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
}

// PickupRequest is a reverse pickup booking sent to a courier
type PickupRequest struct {
	ReferenceNumber    string
	CustomerName       string
	Phone              string
	Address            string
	City               string
	State              string
	Pincode            string
	ProductDescription string
	Quantity           int
	WeightGrams        int
	Dimensions         Dimensions
	PickupDate         string
}

// PickupResult is what the courier returned for a booking
type PickupResult struct {
	Success bool
	Waybill string
	Raw     json.RawMessage
}

// CourierAdapter books reverse pickups with a courier partner.
// A disabled adapter is never called; pickups fall back to manual.
type CourierAdapter interface {
	Name() string
	IsEnabled() bool
	CreatePickup(ctx context.Context, req PickupRequest) (*PickupResult, error)
}

// ScanCode is a normalized courier scan reported through the webhook
type ScanCode string

const (
	ScanOutForPickup ScanCode = "OUT_FOR_PICKUP"
	ScanPickedUp     ScanCode = "PICKED_UP"
	ScanInTransit    ScanCode = "IN_TRANSIT"
	ScanDelivered    ScanCode = "DELIVERED"
)

// TargetStatus returns the pickup progress status a scan drives. Delivery to
// the vendor is not one of them: receipt is confirmed by the vendor.
func (c ScanCode) TargetStatus() (ReturnStatus, bool) {
	switch c {
	case ScanOutForPickup:
		return StatusOutForPickup, true
	case ScanPickedUp:
		return StatusPickedUp, true
	case ScanInTransit:
		return StatusInTransit, true
	}
	return "", false
}

// ScanOutcome tells the courier what happened to a reported scan
type ScanOutcome string

const (
	ScanApplied    ScanOutcome = "applied"
	ScanDuplicate  ScanOutcome = "duplicate"
	ScanOutOfOrder ScanOutcome = "out_of_order"
	ScanIgnored    ScanOutcome = "ignored"
)

// ClassifyScan decides how a scan relates to the current status without
// touching storage. Only ScanApplied leads to a transition.
func ClassifyScan(current ReturnStatus, code ScanCode) ScanOutcome {
	target, ok := code.TargetStatus()
	if !ok {
		return ScanIgnored
	}
	if current == target {
		return ScanDuplicate
	}
	if current.CanTransitionTo(target) {
		return ScanApplied
	}
	return ScanOutOfOrder
}

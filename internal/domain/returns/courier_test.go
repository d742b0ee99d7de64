package returns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyScan(t *testing.T) {
	tests := []struct {
		name    string
		current ReturnStatus
		code    ScanCode
		want    ScanOutcome
	}{
		{"first scan after scheduling", StatusPickupScheduled, ScanOutForPickup, ScanApplied},
		{"skip straight to in transit", StatusPickupScheduled, ScanInTransit, ScanApplied},
		{"picked up after out for pickup", StatusOutForPickup, ScanPickedUp, ScanApplied},
		{"repeated scan", StatusPickedUp, ScanPickedUp, ScanDuplicate},
		{"late out for pickup", StatusInTransit, ScanOutForPickup, ScanOutOfOrder},
		{"scan before pickup is scheduled", StatusApproved, ScanPickedUp, ScanOutOfOrder},
		{"scan after receipt", StatusReceived, ScanInTransit, ScanOutOfOrder},
		{"delivered is never applied", StatusInTransit, ScanDelivered, ScanIgnored},
		{"unknown code", StatusPickupScheduled, ScanCode("RTO_INITIATED"), ScanIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyScan(tt.current, tt.code))
		})
	}
}

func TestScanCode_TargetStatus(t *testing.T) {
	status, ok := ScanPickedUp.TargetStatus()
	assert.True(t, ok)
	assert.Equal(t, StatusPickedUp, status)
	assert.True(t, status.IsPickupProgress())

	_, ok = ScanDelivered.TargetStatus()
	assert.False(t, ok)
}

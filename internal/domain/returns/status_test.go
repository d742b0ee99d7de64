package returns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/returns/internal/domain/shared"
)

func TestReturnStatus_IsValid(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, ReturnStatus("").IsValid())
	assert.False(t, ReturnStatus("REQUESTED").IsValid())
	assert.False(t, ReturnStatus("cancelled").IsValid())
}

func TestReturnStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ReturnStatus
		to   ReturnStatus
		ok   bool
	}{
		{StatusRequested, StatusPendingApproval, true},
		{StatusRequested, StatusApproved, false},
		{StatusPendingApproval, StatusApproved, true},
		{StatusPendingApproval, StatusRejected, true},
		{StatusPendingApproval, StatusPickupScheduled, false},
		{StatusApproved, StatusPickupScheduled, true},
		{StatusApproved, StatusRejected, false},
		// courier legs may skip forward but never go back
		{StatusPickupScheduled, StatusOutForPickup, true},
		{StatusPickupScheduled, StatusInTransit, true},
		{StatusOutForPickup, StatusPickedUp, true},
		{StatusPickedUp, StatusOutForPickup, false},
		{StatusInTransit, StatusPickedUp, false},
		{StatusPickedUp, StatusReceived, true},
		{StatusInTransit, StatusReceived, true},
		{StatusPickupScheduled, StatusReceived, false},
		{StatusReceived, StatusInspecting, true},
		{StatusReceived, StatusInspectionPassed, true},
		{StatusReceived, StatusRefundInitiated, false},
		{StatusInspecting, StatusInspectionFailed, true},
		{StatusInspectionPassed, StatusRefundInitiated, true},
		{StatusInspectionFailed, StatusRefundInitiated, false},
		{StatusRefundInitiated, StatusRefundCompleted, true},
		{StatusRefundInitiated, StatusCompleted, true},
		{StatusRefundCompleted, StatusCompleted, false},
		{StatusRejected, StatusPendingApproval, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestReturnStatus_IsTerminal(t *testing.T) {
	terminal := map[ReturnStatus]bool{
		StatusRejected:         true,
		StatusInspectionFailed: true,
		StatusRefundCompleted:  true,
		StatusCompleted:        true,
	}
	for _, s := range AllStatuses() {
		assert.Equal(t, terminal[s], s.IsTerminal(), s)
	}
	assert.False(t, ReturnStatus("bogus").IsTerminal())
}

func TestReturnStatus_Bucket(t *testing.T) {
	assert.Equal(t, BucketAwaitingApproval, StatusPendingApproval.Bucket())
	assert.Equal(t, BucketAwaitingApproval, StatusRequested.Bucket())
	assert.Equal(t, BucketInProgress, StatusInTransit.Bucket())
	assert.Equal(t, BucketInProgress, StatusRefundInitiated.Bucket())
	assert.Equal(t, BucketCompleted, StatusRefundCompleted.Bucket())
	assert.Equal(t, BucketCompleted, StatusCompleted.Bucket())
	assert.Equal(t, BucketClosedWithoutRefund, StatusRejected.Bucket())
	assert.Equal(t, BucketClosedWithoutRefund, StatusInspectionFailed.Bucket())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("in_transit")
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, s)

	_, err = ParseStatus("lost")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestStatusBucket_Statuses(t *testing.T) {
	assert.ElementsMatch(t, []ReturnStatus{StatusRequested, StatusPendingApproval}, BucketAwaitingApproval.Statuses())
	assert.ElementsMatch(t, []ReturnStatus{StatusRejected, StatusInspectionFailed}, BucketClosedWithoutRefund.Statuses())
	assert.Len(t, BucketInProgress.Statuses(), 9)
	assert.True(t, BucketCompleted.IsValid())
	assert.False(t, StatusBucket("archived").IsValid())
}

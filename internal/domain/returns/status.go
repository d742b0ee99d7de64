package returns

import (
	"fmt"

	"github.com/marketplace/returns/internal/domain/shared"
)

// ReturnStatus is the lifecycle state of a return order
type ReturnStatus string

const (
	StatusRequested        ReturnStatus = "requested"
	StatusPendingApproval  ReturnStatus = "pending_approval"
	StatusApproved         ReturnStatus = "approved"
	StatusRejected         ReturnStatus = "rejected"
	StatusPickupScheduled  ReturnStatus = "pickup_scheduled"
	StatusOutForPickup     ReturnStatus = "out_for_pickup"
	StatusPickedUp         ReturnStatus = "picked_up"
	StatusInTransit        ReturnStatus = "in_transit"
	StatusReceived         ReturnStatus = "received"
	StatusInspecting       ReturnStatus = "inspecting"
	StatusInspectionPassed ReturnStatus = "inspection_passed"
	StatusInspectionFailed ReturnStatus = "inspection_failed"
	StatusRefundInitiated  ReturnStatus = "refund_initiated"
	StatusRefundCompleted  ReturnStatus = "refund_completed"
	StatusCompleted        ReturnStatus = "completed"
)

// allowedTransitions is the complete edge list of the lifecycle
var allowedTransitions = map[ReturnStatus][]ReturnStatus{
	StatusRequested:        {StatusPendingApproval},
	StatusPendingApproval:  {StatusApproved, StatusRejected},
	StatusApproved:         {StatusPickupScheduled},
	StatusPickupScheduled:  {StatusOutForPickup, StatusPickedUp, StatusInTransit},
	StatusOutForPickup:     {StatusPickedUp, StatusInTransit},
	StatusPickedUp:         {StatusInTransit, StatusReceived},
	StatusInTransit:        {StatusReceived},
	StatusReceived:         {StatusInspecting, StatusInspectionPassed, StatusInspectionFailed},
	StatusInspecting:       {StatusInspectionPassed, StatusInspectionFailed},
	StatusInspectionPassed: {StatusRefundInitiated},
	StatusRefundInitiated:  {StatusRefundCompleted, StatusCompleted},
}

// AllStatuses lists every status in lifecycle order
func AllStatuses() []ReturnStatus {
	return []ReturnStatus{
		StatusRequested,
		StatusPendingApproval,
		StatusApproved,
		StatusRejected,
		StatusPickupScheduled,
		StatusOutForPickup,
		StatusPickedUp,
		StatusInTransit,
		StatusReceived,
		StatusInspecting,
		StatusInspectionPassed,
		StatusInspectionFailed,
		StatusRefundInitiated,
		StatusRefundCompleted,
		StatusCompleted,
	}
}

// ParseStatus converts user input into a ReturnStatus
func ParseStatus(s string) (ReturnStatus, error) {
	status := ReturnStatus(s)
	if !status.IsValid() {
		return "", shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("Unknown return status: %q", s))
	}
	return status, nil
}

// IsValid reports whether the status is part of the lifecycle
func (s ReturnStatus) IsValid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s ReturnStatus) IsTerminal() bool {
	return s.IsValid() && len(allowedTransitions[s]) == 0
}

// CanTransitionTo checks the lifecycle edge list
func (s ReturnStatus) CanTransitionTo(target ReturnStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsPickupProgress reports whether the status is a courier leg between scheduling and receipt
func (s ReturnStatus) IsPickupProgress() bool {
	return s == StatusOutForPickup || s == StatusPickedUp || s == StatusInTransit
}

func (s ReturnStatus) String() string {
	return string(s)
}

// StatusBucket groups statuses for dashboards
type StatusBucket string

const (
	BucketAwaitingApproval    StatusBucket = "awaiting_approval"
	BucketInProgress          StatusBucket = "in_progress"
	BucketCompleted           StatusBucket = "completed"
	BucketClosedWithoutRefund StatusBucket = "closed_without_refund"
)

// Bucket returns the dashboard bucket of a status
func (s ReturnStatus) Bucket() StatusBucket {
	switch s {
	case StatusRequested, StatusPendingApproval:
		return BucketAwaitingApproval
	case StatusRefundCompleted, StatusCompleted:
		return BucketCompleted
	case StatusRejected, StatusInspectionFailed:
		return BucketClosedWithoutRefund
	default:
		return BucketInProgress
	}
}

// IsValid reports whether the bucket is known
func (b StatusBucket) IsValid() bool {
	switch b {
	case BucketAwaitingApproval, BucketInProgress, BucketCompleted, BucketClosedWithoutRefund:
		return true
	}
	return false
}

// Statuses lists the statuses grouped under the bucket
func (b StatusBucket) Statuses() []ReturnStatus {
	var out []ReturnStatus
	for _, s := range AllStatuses() {
		if s.Bucket() == b {
			out = append(out, s)
		}
	}
	return out
}

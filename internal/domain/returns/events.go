package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/returns/internal/domain/shared"
)

// AggregateTypeReturnOrder is the aggregate type recorded on outbox entries
const AggregateTypeReturnOrder = "ReturnOrder"

// Event types raised by ReturnOrder
const (
	EventTypeReturnCreated     = "ReturnOrderCreated"
	EventTypeReturnSubmitted   = "ReturnOrderSubmitted"
	EventTypeReturnApproved    = "ReturnOrderApproved"
	EventTypeReturnRejected    = "ReturnOrderRejected"
	EventTypePickupScheduled   = "ReturnPickupScheduled"
	EventTypePickupProgressed  = "ReturnPickupProgressed"
	EventTypePackageReceived   = "ReturnPackageReceived"
	EventTypeInspectionStarted = "ReturnInspectionStarted"
	EventTypeInspectionPassed  = "ReturnInspectionPassed"
	EventTypeInspectionFailed  = "ReturnInspectionFailed"
	EventTypeRefundInitiated   = "ReturnRefundInitiated"
	EventTypeRefundCompleted   = "ReturnRefundCompleted"
	EventTypeReturnClosed      = "ReturnOrderClosed"
)

// AllEventTypes lists every event type a ReturnOrder can raise
func AllEventTypes() []string {
	return []string{
		EventTypeReturnCreated,
		EventTypeReturnSubmitted,
		EventTypeReturnApproved,
		EventTypeReturnRejected,
		EventTypePickupScheduled,
		EventTypePickupProgressed,
		EventTypePackageReceived,
		EventTypeInspectionStarted,
		EventTypeInspectionPassed,
		EventTypeInspectionFailed,
		EventTypeRefundInitiated,
		EventTypeRefundCompleted,
		EventTypeReturnClosed,
	}
}

// ReturnLifecycleEvent is the payload of every ReturnOrder event. It carries a
// snapshot of the fields downstream consumers (notifications, payments) need,
// so they do not depend on re-reading a row that may have moved on.
type ReturnLifecycleEvent struct {
	shared.BaseDomainEvent
	ReturnNumber    string          `json:"return_number"`
	OrderID         uuid.UUID       `json:"order_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	FromStatus      ReturnStatus    `json:"from_status,omitempty"`
	ToStatus        ReturnStatus    `json:"to_status"`
	RefundAmount    decimal.Decimal `json:"refund_amount"`
	RefundMethod    RefundMethod    `json:"refund_method,omitempty"`
	PickupDate      *time.Time      `json:"pickup_date,omitempty"`
	AwbNumber       string          `json:"awb_number,omitempty"`
	InspectionNotes string          `json:"inspection_notes,omitempty"`
	ActorType       string          `json:"actor_type"`
	ActorID         string          `json:"actor_id"`
}

func newLifecycleEvent(eventType string, r *ReturnOrder, from ReturnStatus, actorType, actorID string, at time.Time) *ReturnLifecycleEvent {
	return &ReturnLifecycleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeReturnOrder, r.ID, r.VendorID, at),
		ReturnNumber:    r.ReturnNumber,
		OrderID:         r.OrderID,
		CustomerID:      r.CustomerID,
		FromStatus:      from,
		ToStatus:        r.Status,
		RefundAmount:    r.RefundAmount,
		RefundMethod:    r.RefundMethod,
		PickupDate:      r.PickupDate,
		AwbNumber:       r.PickupAwbNumber,
		InspectionNotes: r.InspectionNotes,
		ActorType:       actorType,
		ActorID:         actorID,
	}
}

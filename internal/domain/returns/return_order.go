package returns

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
)

const (
	maxReasonDescriptionLength = 1000
	maxRejectionReasonLength   = 500
	maxInspectionNotesLength   = 2000
)

// Field names a ReturnOrder column a transition is allowed to write.
// The repository writes status, updated_at and exactly these columns.
type Field string

const (
	FieldApprovedAt          Field = "approved_at"
	FieldRejectedAt          Field = "rejected_at"
	FieldRejectionReason     Field = "rejection_reason"
	FieldPickupDate          Field = "pickup_date"
	FieldPickupScheduledAt   Field = "pickup_scheduled_at"
	FieldPickupAwbNumber     Field = "pickup_awb_number"
	FieldCourierPartner      Field = "courier_partner"
	FieldCourierResponse     Field = "courier_response"
	FieldReceivedAt          Field = "received_at"
	FieldInspectedAt         Field = "inspected_at"
	FieldInspectionNotes     Field = "inspection_notes"
	FieldInspectionPassed    Field = "inspection_passed"
	FieldRefundInitiatedAt   Field = "refund_initiated_at"
	FieldRefundMethod        Field = "refund_method"
	FieldRefundCompletedAt   Field = "refund_completed_at"
	FieldRefundTransactionID Field = "refund_transaction_id"
	FieldCompletedAt         Field = "completed_at"
)

// ReturnOrder is one customer return of one order item
type ReturnOrder struct {
	shared.VendorAggregateRoot
	ReturnNumber      string
	OrderID           uuid.UUID
	OrderItemID       uuid.UUID
	CustomerID        uuid.UUID
	ProductID         uuid.UUID
	ReturnType        ReturnType
	Reason            ReturnReason
	ReasonDescription string
	Quantity          int
	UnitPrice         decimal.Decimal
	ShippingDeduction decimal.Decimal
	RefundAmount      decimal.Decimal
	ReturnShippingFee decimal.Decimal
	Status            ReturnStatus

	ApprovedAt          *time.Time
	RejectedAt          *time.Time
	RejectionReason     string
	PickupDate          *time.Time
	PickupScheduledAt   *time.Time
	PickupAwbNumber     string
	CourierPartner      string
	CourierResponse     json.RawMessage
	ReceivedAt          *time.Time
	InspectedAt         *time.Time
	InspectionNotes     string
	InspectionPassed    *bool
	RefundInitiatedAt   *time.Time
	RefundMethod        RefundMethod
	RefundCompletedAt   *time.Time
	RefundTransactionID string
	CompletedAt         *time.Time
}

// Transition describes one guarded status change. The repository applies it as
// a single conditional update (id, vendor and status in From) plus the tracking
// entry and the aggregate's pending events, all in one transaction.
type Transition struct {
	Order  *ReturnOrder
	From   []ReturnStatus
	To     ReturnStatus
	Fields []Field
	Entry  *tracking.Entry
}

// FromStrings returns the guard statuses as plain strings for query binding
func (t *Transition) FromStrings() []string {
	out := make([]string, len(t.From))
	for i, s := range t.From {
		out[i] = string(s)
	}
	return out
}

// NewReturnOrderParams carries everything needed to open a return
type NewReturnOrderParams struct {
	ReturnNumber      string
	VendorID          uuid.UUID
	OrderID           uuid.UUID
	OrderItemID       uuid.UUID
	CustomerID        uuid.UUID
	ProductID         uuid.UUID
	ReturnType        ReturnType
	Reason            ReturnReason
	ReasonDescription string
	Quantity          int
	// ReturnableQuantity is the ordered quantity minus quantity already under open returns
	ReturnableQuantity int
	UnitPrice          decimal.Decimal
	ReturnShippingFee  decimal.Decimal
	// Draft opens the return in requested instead of pending_approval
	Draft bool
}

// NewReturnOrder opens a return, takes the refund snapshot and returns the
// creation tracking entry that must be stored with it
func NewReturnOrder(p NewReturnOrderParams, policy RefundPolicy, actor tracking.Actor, now time.Time) (*ReturnOrder, *tracking.Entry, error) {
	if strings.TrimSpace(p.ReturnNumber) == "" {
		return nil, nil, shared.NewValidationError("INVALID_RETURN_NUMBER", "Return number is required")
	}
	for name, id := range map[string]uuid.UUID{
		"vendor": p.VendorID, "order": p.OrderID, "order item": p.OrderItemID,
		"customer": p.CustomerID, "product": p.ProductID,
	} {
		if id == uuid.Nil {
			return nil, nil, shared.NewValidationError("INVALID_REFERENCE", fmt.Sprintf("%s id is required", name))
		}
	}
	if !p.ReturnType.IsValid() {
		return nil, nil, shared.NewValidationError("INVALID_RETURN_TYPE", fmt.Sprintf("Unknown return type: %q", p.ReturnType))
	}
	if !p.Reason.IsValid() {
		return nil, nil, shared.NewValidationError("INVALID_REASON", fmt.Sprintf("Unknown return reason: %q", p.Reason))
	}
	if p.Reason == ReasonOther && strings.TrimSpace(p.ReasonDescription) == "" {
		return nil, nil, shared.NewValidationError("INVALID_REASON", "A description is required when the reason is other")
	}
	if len(p.ReasonDescription) > maxReasonDescriptionLength {
		return nil, nil, shared.NewValidationError("INVALID_REASON", "Reason description is too long")
	}
	if p.Quantity <= 0 {
		return nil, nil, shared.NewValidationError("INVALID_QUANTITY", "Return quantity must be positive")
	}
	if p.Quantity > p.ReturnableQuantity {
		return nil, nil, shared.NewValidationError("INVALID_QUANTITY",
			fmt.Sprintf("Return quantity %d exceeds returnable quantity %d", p.Quantity, p.ReturnableQuantity))
	}
	if err := actor.Validate(); err != nil {
		return nil, nil, err
	}

	snapshot, err := policy.Compute(p.UnitPrice, p.Quantity, p.Reason, p.ReturnShippingFee)
	if err != nil {
		return nil, nil, err
	}

	status := StatusPendingApproval
	description := "Return requested"
	if p.Draft {
		status = StatusRequested
		description = "Return drafted"
	}

	r := &ReturnOrder{
		VendorAggregateRoot: shared.NewVendorAggregateRoot(p.VendorID, now),
		ReturnNumber:        p.ReturnNumber,
		OrderID:             p.OrderID,
		OrderItemID:         p.OrderItemID,
		CustomerID:          p.CustomerID,
		ProductID:           p.ProductID,
		ReturnType:          p.ReturnType,
		Reason:              p.Reason,
		ReasonDescription:   strings.TrimSpace(p.ReasonDescription),
		Quantity:            p.Quantity,
		UnitPrice:           snapshot.UnitPrice,
		ShippingDeduction:   snapshot.ShippingDeduction,
		RefundAmount:        snapshot.Amount,
		ReturnShippingFee:   p.ReturnShippingFee,
		Status:              status,
	}

	entry, err := tracking.NewEntry(tracking.SubjectReturnOrder, r.ID, string(status), description, "", actor, now)
	if err != nil {
		return nil, nil, err
	}
	r.AddDomainEvent(newLifecycleEvent(EventTypeReturnCreated, r, "", string(actor.Type), actor.ID, now))
	return r, entry, nil
}

// transition checks the guard in memory, moves the aggregate and builds the
// tracking entry and event. The database guard in the repository is authoritative.
func (r *ReturnOrder) transition(op string, from []ReturnStatus, to ReturnStatus, actor tracking.Actor,
	description, location, eventType string, now time.Time, fields ...Field) (*Transition, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !containsStatus(from, r.Status) || !r.Status.CanTransitionTo(to) {
		return nil, shared.NewInvalidTransitionError(
			fmt.Sprintf("Cannot %s return %s in %s status", op, r.ReturnNumber, r.Status))
	}

	entry, err := tracking.NewEntry(tracking.SubjectReturnOrder, r.ID, string(to), description, location, actor, now)
	if err != nil {
		return nil, err
	}

	prev := r.Status
	r.Status = to
	r.Touch(now)
	if eventType != "" {
		r.AddDomainEvent(newLifecycleEvent(eventType, r, prev, string(actor.Type), actor.ID, now))
	}

	return &Transition{Order: r, From: from, To: to, Fields: fields, Entry: entry}, nil
}

// Submit moves a drafted return into the vendor's approval queue
func (r *ReturnOrder) Submit(actor tracking.Actor, now time.Time) (*Transition, error) {
	return r.transition("submit", []ReturnStatus{StatusRequested}, StatusPendingApproval, actor,
		"Return submitted for vendor approval", "", EventTypeReturnSubmitted, now)
}

// Approve accepts the return request
func (r *ReturnOrder) Approve(actor tracking.Actor, now time.Time) (*Transition, error) {
	if !r.canLeave(StatusPendingApproval, StatusApproved) {
		return nil, r.invalid("approve")
	}
	t, err := r.transition("approve", []ReturnStatus{StatusPendingApproval}, StatusApproved, actor,
		"Return approved by vendor", "", "", now, FieldApprovedAt)
	if err != nil {
		return nil, err
	}
	r.ApprovedAt = &now
	r.AddDomainEvent(newLifecycleEvent(EventTypeReturnApproved, r, StatusPendingApproval, string(actor.Type), actor.ID, now))
	return t, nil
}

// Reject declines the return request. Rejection is terminal.
func (r *ReturnOrder) Reject(actor tracking.Actor, reason string, now time.Time) (*Transition, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewValidationError("INVALID_REJECTION_REASON", "Rejection reason is required")
	}
	if len(reason) > maxRejectionReasonLength {
		return nil, shared.NewValidationError("INVALID_REJECTION_REASON", "Rejection reason is too long")
	}
	if !r.canLeave(StatusPendingApproval, StatusRejected) {
		return nil, r.invalid("reject")
	}
	t, err := r.transition("reject", []ReturnStatus{StatusPendingApproval}, StatusRejected, actor,
		"Return rejected: "+reason, "", "", now, FieldRejectedAt, FieldRejectionReason)
	if err != nil {
		return nil, err
	}
	r.RejectedAt = &now
	r.RejectionReason = reason
	r.AddDomainEvent(newLifecycleEvent(EventTypeReturnRejected, r, StatusPendingApproval, string(actor.Type), actor.ID, now))
	return t, nil
}

// PickupBooking is the outcome of arranging a reverse pickup
type PickupBooking struct {
	Date            time.Time
	AwbNumber       string
	CourierPartner  string
	CourierResponse json.RawMessage
}

// IsManual reports whether the pickup was not booked with an integrated courier
func (b PickupBooking) IsManual() bool {
	return b.AwbNumber == ""
}

// ValidatePickupDate requires a calendar date strictly after today. Dates are
// compared as calendar days, so the zone date was parsed in does not matter.
func ValidatePickupDate(date, now time.Time) error {
	if date.IsZero() {
		return shared.NewValidationError("INVALID_PICKUP_DATE", "Pickup date is required")
	}
	if !calendarDay(date).After(calendarDay(now)) {
		return shared.NewValidationError("INVALID_PICKUP_DATE", "Pickup date must be in the future")
	}
	return nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CanSchedulePickup is the in-memory guard used before any courier call is made
func (r *ReturnOrder) CanSchedulePickup() error {
	if r.Status != StatusApproved {
		return r.invalid("schedule pickup for")
	}
	return nil
}

// SchedulePickup records the reverse pickup. A booking without an awb is a
// manual pickup; the transition happens either way.
func (r *ReturnOrder) SchedulePickup(actor tracking.Actor, booking PickupBooking, now time.Time) (*Transition, error) {
	if err := ValidatePickupDate(booking.Date, now); err != nil {
		return nil, err
	}
	if err := r.CanSchedulePickup(); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Pickup scheduled for %s", booking.Date.Format("2006-01-02"))
	if booking.IsManual() {
		description += " (manual)"
	} else {
		description += fmt.Sprintf(" with %s, AWB %s", booking.CourierPartner, booking.AwbNumber)
	}

	t, err := r.transition("schedule pickup for", []ReturnStatus{StatusApproved}, StatusPickupScheduled, actor,
		description, "", "", now,
		FieldPickupDate, FieldPickupScheduledAt, FieldPickupAwbNumber, FieldCourierPartner, FieldCourierResponse)
	if err != nil {
		return nil, err
	}
	date := booking.Date
	r.PickupDate = &date
	r.PickupScheduledAt = &now
	r.PickupAwbNumber = booking.AwbNumber
	r.CourierPartner = booking.CourierPartner
	r.CourierResponse = booking.CourierResponse
	r.AddDomainEvent(newLifecycleEvent(EventTypePickupScheduled, r, StatusApproved, string(actor.Type), actor.ID, now))
	return t, nil
}

// UpdatePickupProgress advances the courier leg (out for pickup, picked up, in transit)
func (r *ReturnOrder) UpdatePickupProgress(actor tracking.Actor, to ReturnStatus, description, location string, now time.Time) (*Transition, error) {
	if !to.IsPickupProgress() {
		return nil, shared.NewValidationError("INVALID_PICKUP_STATUS",
			fmt.Sprintf("Pickup progress must be out_for_pickup, picked_up or in_transit; got %q", to))
	}
	if strings.TrimSpace(description) == "" {
		description = "Pickup status: " + strings.ReplaceAll(string(to), "_", " ")
	}
	from := make([]ReturnStatus, 0, 3)
	for _, s := range []ReturnStatus{StatusPickupScheduled, StatusOutForPickup, StatusPickedUp} {
		if s.CanTransitionTo(to) {
			from = append(from, s)
		}
	}
	return r.transition("update pickup progress of", from, to, actor, description, location, EventTypePickupProgressed, now)
}

// MarkReceived records that the vendor has the goods back
func (r *ReturnOrder) MarkReceived(actor tracking.Actor, now time.Time) (*Transition, error) {
	from := []ReturnStatus{StatusInTransit, StatusPickedUp}
	if !containsStatus(from, r.Status) {
		return nil, r.invalid("mark received")
	}
	prev := r.Status
	t, err := r.transition("mark received", from, StatusReceived, actor,
		"Returned package received by vendor", "", "", now, FieldReceivedAt)
	if err != nil {
		return nil, err
	}
	r.ReceivedAt = &now
	r.AddDomainEvent(newLifecycleEvent(EventTypePackageReceived, r, prev, string(actor.Type), actor.ID, now))
	return t, nil
}

// StartInspection marks the goods as under inspection
func (r *ReturnOrder) StartInspection(actor tracking.Actor, now time.Time) (*Transition, error) {
	return r.transition("start inspection of", []ReturnStatus{StatusReceived}, StatusInspecting, actor,
		"Inspection started", "", EventTypeInspectionStarted, now)
}

// CompleteInspection records the inspection verdict. A passed inspection
// defaults the refund method to the original payment method.
func (r *ReturnOrder) CompleteInspection(actor tracking.Actor, passed bool, notes string, now time.Time) (*Transition, error) {
	notes = strings.TrimSpace(notes)
	if len(notes) > maxInspectionNotesLength {
		return nil, shared.NewValidationError("INVALID_INSPECTION_NOTES", "Inspection notes are too long")
	}

	from := []ReturnStatus{StatusReceived, StatusInspecting}
	if !containsStatus(from, r.Status) {
		return nil, r.invalid("complete inspection of")
	}
	prev := r.Status

	to, eventType, description := StatusInspectionFailed, EventTypeInspectionFailed, "Inspection failed"
	fields := []Field{FieldInspectedAt, FieldInspectionNotes, FieldInspectionPassed}
	if passed {
		to, eventType, description = StatusInspectionPassed, EventTypeInspectionPassed, "Inspection passed"
		fields = append(fields, FieldRefundMethod)
	}
	if notes != "" {
		description += ": " + notes
	}

	t, err := r.transition("complete inspection of", from, to, actor, description, "", "", now, fields...)
	if err != nil {
		return nil, err
	}
	r.InspectedAt = &now
	r.InspectionNotes = notes
	r.InspectionPassed = &passed
	if passed {
		r.RefundMethod = RefundMethodOriginalPayment
	}
	r.AddDomainEvent(newLifecycleEvent(eventType, r, prev, string(actor.Type), actor.ID, now))
	return t, nil
}

// InitiateRefund starts the money movement. Only reachable after a passed inspection.
func (r *ReturnOrder) InitiateRefund(actor tracking.Actor, method RefundMethod, now time.Time) (*Transition, error) {
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_REFUND_METHOD",
			fmt.Sprintf("Refund method must be one of original_payment, wallet, bank_transfer; got %q", method))
	}
	if r.Status != StatusInspectionPassed {
		return nil, r.invalid("initiate refund for")
	}
	t, err := r.transition("initiate refund for", []ReturnStatus{StatusInspectionPassed}, StatusRefundInitiated, actor,
		fmt.Sprintf("Refund of %s initiated via %s", r.RefundAmount.StringFixed(2), method), "", "", now,
		FieldRefundInitiatedAt, FieldRefundMethod)
	if err != nil {
		return nil, err
	}
	r.RefundInitiatedAt = &now
	r.RefundMethod = method
	r.AddDomainEvent(newLifecycleEvent(EventTypeRefundInitiated, r, StatusInspectionPassed, string(actor.Type), actor.ID, now))
	return t, nil
}

// CompleteRefund records the payment provider's confirmation
func (r *ReturnOrder) CompleteRefund(actor tracking.Actor, transactionID string, now time.Time) (*Transition, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_ID", "Refund transaction id is required")
	}
	if r.Status != StatusRefundInitiated {
		return nil, r.invalid("complete refund for")
	}
	t, err := r.transition("complete refund for", []ReturnStatus{StatusRefundInitiated}, StatusRefundCompleted, actor,
		"Refund completed, transaction "+transactionID, "", "", now,
		FieldRefundCompletedAt, FieldRefundTransactionID)
	if err != nil {
		return nil, err
	}
	r.RefundCompletedAt = &now
	r.RefundTransactionID = transactionID
	r.AddDomainEvent(newLifecycleEvent(EventTypeRefundCompleted, r, StatusRefundInitiated, string(actor.Type), actor.ID, now))
	return t, nil
}

// Close settles a return without a refund confirmation, e.g. a replacement that has shipped
func (r *ReturnOrder) Close(actor tracking.Actor, note string, now time.Time) (*Transition, error) {
	description := "Return completed"
	if note = strings.TrimSpace(note); note != "" {
		description += ": " + note
	}
	if r.Status != StatusRefundInitiated {
		return nil, r.invalid("close")
	}
	t, err := r.transition("close", []ReturnStatus{StatusRefundInitiated}, StatusCompleted, actor,
		description, "", "", now, FieldCompletedAt)
	if err != nil {
		return nil, err
	}
	r.CompletedAt = &now
	r.AddDomainEvent(newLifecycleEvent(EventTypeReturnClosed, r, StatusRefundInitiated, string(actor.Type), actor.ID, now))
	return t, nil
}

func (r *ReturnOrder) canLeave(from, to ReturnStatus) bool {
	return r.Status == from && from.CanTransitionTo(to)
}

func (r *ReturnOrder) invalid(op string) error {
	return shared.NewInvalidTransitionError(fmt.Sprintf("Cannot %s return %s in %s status", op, r.ReturnNumber, r.Status))
}

func containsStatus(list []ReturnStatus, s ReturnStatus) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

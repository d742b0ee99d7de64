package returns

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
)

// pickupDateLayout is the calendar date format accepted for pickups
const pickupDateLayout = "2006-01-02"

// ========== Requests ==========

// CreateReturnRequest opens a return for one delivered order item
type CreateReturnRequest struct {
	OrderItemID       uuid.UUID  `json:"order_item_id" binding:"required"`
	CustomerID        *uuid.UUID `json:"customer_id"`
	ReturnType        string     `json:"return_type" binding:"required,oneof=refund replacement exchange"`
	Reason            string     `json:"reason" binding:"required"`
	ReasonDescription string     `json:"reason_description" binding:"max=2000"`
	Quantity          int        `json:"quantity" binding:"required,min=1"`
	Draft             bool       `json:"draft"`
}

// RejectReturnRequest carries the vendor's reason for rejecting
type RejectReturnRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// SchedulePickupRequest asks for a reverse pickup on a calendar date
type SchedulePickupRequest struct {
	PickupDate string `json:"pickup_date" binding:"required"`
}

// PickupProgressRequest records courier progress reported by the vendor
type PickupProgressRequest struct {
	Status      string `json:"status" binding:"required,oneof=out_for_pickup picked_up in_transit"`
	Description string `json:"description" binding:"max=500"`
	Location    string `json:"location" binding:"max=200"`
}

// CompleteInspectionRequest is the inspection verdict. Passed is a pointer so
// that an absent value is rejected instead of read as false.
type CompleteInspectionRequest struct {
	Passed *bool  `json:"passed" binding:"required"`
	Notes  string `json:"notes"`
}

// InitiateRefundRequest chooses where the refund goes
type InitiateRefundRequest struct {
	RefundMethod string `json:"refund_method" binding:"required"`
}

// CompleteRefundRequest confirms the money movement
type CompleteRefundRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,max=128"`
}

// CloseReturnRequest settles a return without a refund confirmation
type CloseReturnRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// CourierScanRequest is one scan pushed by the courier partner
type CourierScanRequest struct {
	AwbNumber   string     `json:"awb_number" binding:"required"`
	ScanCode    string     `json:"scan_code" binding:"required"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	ScannedAt   *time.Time `json:"scanned_at"`
}

// ReturnListFilter represents filter options for the return list
type ReturnListFilter struct {
	Search     string     `form:"search"`
	Status     string     `form:"status"`
	Statuses   []string   `form:"statuses"`
	Bucket     string     `form:"bucket" binding:"omitempty,oneof=awaiting_approval in_progress completed closed_without_refund"`
	ReturnType string     `form:"return_type" binding:"omitempty,oneof=refund replacement exchange"`
	Reason     string     `form:"reason"`
	OrderID    string     `form:"order_id" binding:"omitempty,uuid"`
	CustomerID string     `form:"customer_id" binding:"omitempty,uuid"`
	StartDate  *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate    *time.Time `form:"end_date" time_format:"2006-01-02"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// Paging returns the effective page and page size (defaults 1 and 20, size capped at 100)
func (f ReturnListFilter) Paging() (page, pageSize int) {
	page, pageSize = f.Page, f.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// toDomain validates the filter and converts it to the repository filter
func (f ReturnListFilter) toDomain() (returns.ListFilter, error) {
	page, pageSize := f.Paging()
	out := returns.ListFilter{
		Filter: shared.Filter{
			Page:     page,
			PageSize: pageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
			Search:   strings.TrimSpace(f.Search),
		},
		From: f.StartDate,
	}
	if f.OrderID != "" {
		id, err := uuid.Parse(f.OrderID)
		if err != nil {
			return returns.ListFilter{}, shared.NewValidationError("INVALID_ORDER_ID", "Invalid order_id format")
		}
		out.OrderID = &id
	}
	if f.CustomerID != "" {
		id, err := uuid.Parse(f.CustomerID)
		if err != nil {
			return returns.ListFilter{}, shared.NewValidationError("INVALID_CUSTOMER_ID", "Invalid customer_id format")
		}
		out.CustomerID = &id
	}
	if out.OrderDir == "" {
		out.OrderDir = "desc"
	}

	statuses := f.Statuses
	if f.Status != "" {
		statuses = append(statuses, f.Status)
	}
	for _, raw := range statuses {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, err := returns.ParseStatus(part)
			if err != nil {
				return returns.ListFilter{}, err
			}
			out.Statuses = append(out.Statuses, status)
		}
	}

	if f.Bucket != "" {
		bucket := returns.StatusBucket(f.Bucket)
		if !bucket.IsValid() {
			return returns.ListFilter{}, shared.NewValidationError("INVALID_BUCKET", "Unknown status bucket: "+f.Bucket)
		}
		out.Bucket = bucket
	}
	if f.ReturnType != "" {
		rt := returns.ReturnType(f.ReturnType)
		if !rt.IsValid() {
			return returns.ListFilter{}, shared.NewValidationError("INVALID_RETURN_TYPE", "Unknown return type: "+f.ReturnType)
		}
		out.ReturnType = rt
	}
	if f.Reason != "" {
		reason := returns.ReturnReason(f.Reason)
		if !reason.IsValid() {
			return returns.ListFilter{}, shared.NewValidationError("INVALID_REASON", "Unknown return reason: "+f.Reason)
		}
		out.Reason = reason
	}

	// end_date is inclusive of the whole day
	if f.EndDate != nil {
		end := f.EndDate.AddDate(0, 0, 1)
		out.To = &end
	}
	if out.From != nil && out.To != nil && !out.From.Before(*out.To) {
		return returns.ListFilter{}, shared.NewValidationError("INVALID_DATE_RANGE", "start_date must not be after end_date")
	}
	return out, nil
}

// ========== Responses ==========

// ReturnOrderResponse represents a return order in API responses
type ReturnOrderResponse struct {
	ID                  uuid.UUID       `json:"id"`
	VendorID            uuid.UUID       `json:"vendor_id"`
	ReturnNumber        string          `json:"return_number"`
	OrderID             uuid.UUID       `json:"order_id"`
	OrderItemID         uuid.UUID       `json:"order_item_id"`
	CustomerID          uuid.UUID       `json:"customer_id"`
	ProductID           uuid.UUID       `json:"product_id"`
	ReturnType          string          `json:"return_type"`
	Reason              string          `json:"reason"`
	ReasonDescription   string          `json:"reason_description,omitempty"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	ShippingDeduction   decimal.Decimal `json:"shipping_deduction"`
	RefundAmount        decimal.Decimal `json:"refund_amount"`
	ReturnShippingFee   decimal.Decimal `json:"return_shipping_fee"`
	Status              string          `json:"status"`
	ApprovedAt          *time.Time      `json:"approved_at,omitempty"`
	RejectedAt          *time.Time      `json:"rejected_at,omitempty"`
	RejectionReason     string          `json:"rejection_reason,omitempty"`
	PickupDate          *time.Time      `json:"pickup_date,omitempty"`
	PickupScheduledAt   *time.Time      `json:"pickup_scheduled_at,omitempty"`
	PickupAwbNumber     string          `json:"pickup_awb_number,omitempty"`
	CourierPartner      string          `json:"courier_partner,omitempty"`
	CourierResponse     json.RawMessage `json:"courier_response,omitempty"`
	ReceivedAt          *time.Time      `json:"received_at,omitempty"`
	InspectedAt         *time.Time      `json:"inspected_at,omitempty"`
	InspectionNotes     string          `json:"inspection_notes,omitempty"`
	InspectionPassed    *bool           `json:"inspection_passed,omitempty"`
	RefundInitiatedAt   *time.Time      `json:"refund_initiated_at,omitempty"`
	RefundMethod        string          `json:"refund_method,omitempty"`
	RefundCompletedAt   *time.Time      `json:"refund_completed_at,omitempty"`
	RefundTransactionID string          `json:"refund_transaction_id,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ToReturnOrderResponse converts a domain ReturnOrder to a response DTO
func ToReturnOrderResponse(r *returns.ReturnOrder) ReturnOrderResponse {
	return ReturnOrderResponse{
		ID:                  r.ID,
		VendorID:            r.VendorID,
		ReturnNumber:        r.ReturnNumber,
		OrderID:             r.OrderID,
		OrderItemID:         r.OrderItemID,
		CustomerID:          r.CustomerID,
		ProductID:           r.ProductID,
		ReturnType:          string(r.ReturnType),
		Reason:              string(r.Reason),
		ReasonDescription:   r.ReasonDescription,
		Quantity:            r.Quantity,
		UnitPrice:           r.UnitPrice,
		ShippingDeduction:   r.ShippingDeduction,
		RefundAmount:        r.RefundAmount,
		ReturnShippingFee:   r.ReturnShippingFee,
		Status:              string(r.Status),
		ApprovedAt:          r.ApprovedAt,
		RejectedAt:          r.RejectedAt,
		RejectionReason:     r.RejectionReason,
		PickupDate:          r.PickupDate,
		PickupScheduledAt:   r.PickupScheduledAt,
		PickupAwbNumber:     r.PickupAwbNumber,
		CourierPartner:      r.CourierPartner,
		CourierResponse:     r.CourierResponse,
		ReceivedAt:          r.ReceivedAt,
		InspectedAt:         r.InspectedAt,
		InspectionNotes:     r.InspectionNotes,
		InspectionPassed:    r.InspectionPassed,
		RefundInitiatedAt:   r.RefundInitiatedAt,
		RefundMethod:        string(r.RefundMethod),
		RefundCompletedAt:   r.RefundCompletedAt,
		RefundTransactionID: r.RefundTransactionID,
		CompletedAt:         r.CompletedAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// ReturnListItemResponse represents a return order in list responses
type ReturnListItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	ReturnNumber    string          `json:"return_number"`
	OrderID         uuid.UUID       `json:"order_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	ReturnType      string          `json:"return_type"`
	Reason          string          `json:"reason"`
	Quantity        int             `json:"quantity"`
	RefundAmount    decimal.Decimal `json:"refund_amount"`
	Status          string          `json:"status"`
	Bucket          string          `json:"bucket"`
	PickupAwbNumber string          `json:"pickup_awb_number,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ToReturnListItemResponse converts a domain ReturnOrder to a list item
func ToReturnListItemResponse(r *returns.ReturnOrder) ReturnListItemResponse {
	return ReturnListItemResponse{
		ID:              r.ID,
		ReturnNumber:    r.ReturnNumber,
		OrderID:         r.OrderID,
		CustomerID:      r.CustomerID,
		ReturnType:      string(r.ReturnType),
		Reason:          string(r.Reason),
		Quantity:        r.Quantity,
		RefundAmount:    r.RefundAmount,
		Status:          string(r.Status),
		Bucket:          string(r.Status.Bucket()),
		PickupAwbNumber: r.PickupAwbNumber,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ToReturnListItemResponses converts a slice of return orders
func ToReturnListItemResponses(orders []returns.ReturnOrder) []ReturnListItemResponse {
	out := make([]ReturnListItemResponse, len(orders))
	for i := range orders {
		out[i] = ToReturnListItemResponse(&orders[i])
	}
	return out
}

// TrackingEntryResponse is one line of the timeline
type TrackingEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	Location      string    `json:"location,omitempty"`
	UpdatedByType string    `json:"updated_by_type"`
	UpdatedByID   string    `json:"updated_by_id"`
	ScannedAt     time.Time `json:"scanned_at"`
}

// TimelineResponse is the chronological history of a return
type TimelineResponse struct {
	ReturnID           uuid.UUID               `json:"return_id"`
	ReturnNumber       string                  `json:"return_number"`
	Status             string                  `json:"status"`
	CurrentDescription string                  `json:"current_description"`
	Entries            []TrackingEntryResponse `json:"entries"`
}

func toTimelineResponse(r *returns.ReturnOrder, entries []tracking.Entry) *TimelineResponse {
	resp := &TimelineResponse{
		ReturnID:     r.ID,
		ReturnNumber: r.ReturnNumber,
		Status:       string(r.Status),
		Entries:      make([]TrackingEntryResponse, len(entries)),
	}
	for i, e := range entries {
		resp.Entries[i] = TrackingEntryResponse{
			ID:            e.ID,
			Status:        e.Status,
			Description:   e.Description,
			Location:      e.Location,
			UpdatedByType: string(e.UpdatedByType),
			UpdatedByID:   e.UpdatedByID,
			ScannedAt:     e.ScannedAt,
		}
	}
	if len(entries) > 0 {
		resp.CurrentDescription = entries[len(entries)-1].Description
	}
	return resp
}

// StatisticsResponse is the vendor's return dashboard
type StatisticsResponse struct {
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	AwaitingApproval  int64            `json:"awaiting_approval"`
	InProgress        int64            `json:"in_progress"`
	Completed         int64            `json:"completed"`
	ClosedNoRefund    int64            `json:"closed_without_refund"`
	TotalRefundAmount decimal.Decimal  `json:"total_refund_amount"`
	RefundedAmount    decimal.Decimal  `json:"refunded_amount"`
}

func toStatisticsResponse(s *returns.Statistics) *StatisticsResponse {
	resp := &StatisticsResponse{
		Total:             s.Total,
		ByStatus:          make(map[string]int64, len(s.ByStatus)),
		AwaitingApproval:  s.ByBucket[returns.BucketAwaitingApproval],
		InProgress:        s.ByBucket[returns.BucketInProgress],
		Completed:         s.ByBucket[returns.BucketCompleted],
		ClosedNoRefund:    s.ByBucket[returns.BucketClosedWithoutRefund],
		TotalRefundAmount: s.TotalRefundAmount,
		RefundedAmount:    s.RefundedAmount,
	}
	for status, n := range s.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	return resp
}

// ScanResult tells the courier what happened to its scan
type ScanResult struct {
	ReturnID     uuid.UUID `json:"return_id"`
	ReturnNumber string    `json:"return_number"`
	Outcome      string    `json:"outcome"`
	Status       string    `json:"status"`
}

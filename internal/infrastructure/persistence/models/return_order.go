package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/marketplace/returns/internal/domain/returns"
)

// ReturnOrderModel is the persistence model for the ReturnOrder aggregate
type ReturnOrderModel struct {
	VendorModel
	ReturnNumber      string               `gorm:"type:varchar(32);not null;uniqueIndex"`
	OrderID           uuid.UUID            `gorm:"type:uuid;not null;index"`
	OrderItemID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	CustomerID        uuid.UUID            `gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID            `gorm:"type:uuid;not null"`
	ReturnType        returns.ReturnType   `gorm:"type:varchar(20);not null"`
	Reason            returns.ReturnReason `gorm:"type:varchar(40);not null"`
	ReasonDescription string               `gorm:"type:text"`
	Quantity          int                  `gorm:"not null"`
	UnitPrice         decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	ShippingDeduction decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	RefundAmount      decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	ReturnShippingFee decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Status            returns.ReturnStatus `gorm:"type:varchar(30);not null;index"`

	ApprovedAt          *time.Time
	RejectedAt          *time.Time
	RejectionReason     string `gorm:"type:varchar(500)"`
	PickupDate          *time.Time
	PickupScheduledAt   *time.Time
	PickupAwbNumber     string         `gorm:"type:varchar(64);index"`
	CourierPartner      string         `gorm:"type:varchar(64)"`
	CourierResponse     datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt          *time.Time
	InspectedAt         *time.Time
	InspectionNotes     string `gorm:"type:text"`
	InspectionPassed    *bool
	RefundInitiatedAt   *time.Time
	RefundMethod        returns.RefundMethod `gorm:"type:varchar(30)"`
	RefundCompletedAt   *time.Time
	RefundTransactionID string `gorm:"type:varchar(128)"`
	CompletedAt         *time.Time
}

// TableName returns the table name for GORM
func (ReturnOrderModel) TableName() string {
	return "return_orders"
}

// ToDomain converts the persistence model to a domain ReturnOrder
func (m *ReturnOrderModel) ToDomain() *returns.ReturnOrder {
	var courierResponse json.RawMessage
	if len(m.CourierResponse) > 0 {
		courierResponse = json.RawMessage(m.CourierResponse)
	}
	return &returns.ReturnOrder{
		VendorAggregateRoot: m.ToDomainVendorAggregateRoot(),
		ReturnNumber:        m.ReturnNumber,
		OrderID:             m.OrderID,
		OrderItemID:         m.OrderItemID,
		CustomerID:          m.CustomerID,
		ProductID:           m.ProductID,
		ReturnType:          m.ReturnType,
		Reason:              m.Reason,
		ReasonDescription:   m.ReasonDescription,
		Quantity:            m.Quantity,
		UnitPrice:           m.UnitPrice,
		ShippingDeduction:   m.ShippingDeduction,
		RefundAmount:        m.RefundAmount,
		ReturnShippingFee:   m.ReturnShippingFee,
		Status:              m.Status,
		ApprovedAt:          m.ApprovedAt,
		RejectedAt:          m.RejectedAt,
		RejectionReason:     m.RejectionReason,
		PickupDate:          m.PickupDate,
		PickupScheduledAt:   m.PickupScheduledAt,
		PickupAwbNumber:     m.PickupAwbNumber,
		CourierPartner:      m.CourierPartner,
		CourierResponse:     courierResponse,
		ReceivedAt:          m.ReceivedAt,
		InspectedAt:         m.InspectedAt,
		InspectionNotes:     m.InspectionNotes,
		InspectionPassed:    m.InspectionPassed,
		RefundInitiatedAt:   m.RefundInitiatedAt,
		RefundMethod:        m.RefundMethod,
		RefundCompletedAt:   m.RefundCompletedAt,
		RefundTransactionID: m.RefundTransactionID,
		CompletedAt:         m.CompletedAt,
	}
}

// ReturnOrderModelFromDomain creates a persistence model from a domain ReturnOrder
func ReturnOrderModelFromDomain(r *returns.ReturnOrder) *ReturnOrderModel {
	m := &ReturnOrderModel{
		ReturnNumber:        r.ReturnNumber,
		OrderID:             r.OrderID,
		OrderItemID:         r.OrderItemID,
		CustomerID:          r.CustomerID,
		ProductID:           r.ProductID,
		ReturnType:          r.ReturnType,
		Reason:              r.Reason,
		ReasonDescription:   r.ReasonDescription,
		Quantity:            r.Quantity,
		UnitPrice:           r.UnitPrice,
		ShippingDeduction:   r.ShippingDeduction,
		RefundAmount:        r.RefundAmount,
		ReturnShippingFee:   r.ReturnShippingFee,
		Status:              r.Status,
		ApprovedAt:          r.ApprovedAt,
		RejectedAt:          r.RejectedAt,
		RejectionReason:     r.RejectionReason,
		PickupDate:          r.PickupDate,
		PickupScheduledAt:   r.PickupScheduledAt,
		PickupAwbNumber:     r.PickupAwbNumber,
		CourierPartner:      r.CourierPartner,
		CourierResponse:     datatypes.JSON(r.CourierResponse),
		ReceivedAt:          r.ReceivedAt,
		InspectedAt:         r.InspectedAt,
		InspectionNotes:     r.InspectionNotes,
		InspectionPassed:    r.InspectionPassed,
		RefundInitiatedAt:   r.RefundInitiatedAt,
		RefundMethod:        r.RefundMethod,
		RefundCompletedAt:   r.RefundCompletedAt,
		RefundTransactionID: r.RefundTransactionID,
		CompletedAt:         r.CompletedAt,
	}
	m.FromDomainVendorAggregateRoot(r.VendorAggregateRoot)
	return m
}

// TransitionUpdates builds the column map written by a guarded transition:
// status, updated_at and exactly the transition's designated fields
func TransitionUpdates(t *returns.Transition) (map[string]any, error) {
	r := t.Order
	updates := map[string]any{
		"status":     t.To,
		"updated_at": r.UpdatedAt,
	}
	for _, f := range t.Fields {
		v, err := fieldValue(r, f)
		if err != nil {
			return nil, err
		}
		updates[string(f)] = v
	}
	return updates, nil
}

func fieldValue(r *returns.ReturnOrder, f returns.Field) (any, error) {
	switch f {
	case returns.FieldApprovedAt:
		return r.ApprovedAt, nil
	case returns.FieldRejectedAt:
		return r.RejectedAt, nil
	case returns.FieldRejectionReason:
		return r.RejectionReason, nil
	case returns.FieldPickupDate:
		return r.PickupDate, nil
	case returns.FieldPickupScheduledAt:
		return r.PickupScheduledAt, nil
	case returns.FieldPickupAwbNumber:
		return r.PickupAwbNumber, nil
	case returns.FieldCourierPartner:
		return r.CourierPartner, nil
	case returns.FieldCourierResponse:
		return datatypes.JSON(r.CourierResponse), nil
	case returns.FieldReceivedAt:
		return r.ReceivedAt, nil
	case returns.FieldInspectedAt:
		return r.InspectedAt, nil
	case returns.FieldInspectionNotes:
		return r.InspectionNotes, nil
	case returns.FieldInspectionPassed:
		return r.InspectionPassed, nil
	case returns.FieldRefundInitiatedAt:
		return r.RefundInitiatedAt, nil
	case returns.FieldRefundMethod:
		return r.RefundMethod, nil
	case returns.FieldRefundCompletedAt:
		return r.RefundCompletedAt, nil
	case returns.FieldRefundTransactionID:
		return r.RefundTransactionID, nil
	case returns.FieldCompletedAt:
		return r.CompletedAt, nil
	}
	return nil, fmt.Errorf("unknown return order field %q", f)
}

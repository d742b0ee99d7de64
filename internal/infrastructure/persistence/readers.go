package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/infrastructure/persistence/models"
)

const orderItemStatusDelivered = "delivered"

// GormOrderItemReader reads order lines from the order subsystem's tables
type GormOrderItemReader struct {
	db *gorm.DB
}

// NewGormOrderItemReader creates a new order item reader
func NewGormOrderItemReader(db *gorm.DB) *GormOrderItemReader {
	return &GormOrderItemReader{db: db}
}

// GetOrderItem loads an order line sold by the vendor
func (r *GormOrderItemReader) GetOrderItem(ctx context.Context, vendorID, orderItemID uuid.UUID) (*returns.OrderItemSnapshot, error) {
	var rows []models.OrderItemModel
	if err := r.db.WithContext(ctx).
		Scopes(VendorScope(vendorID)).
		Where("id = ?", orderItemID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, shared.NewPersistenceError("load order item", err)
	}
	if len(rows) == 0 {
		return nil, shared.NewNotFoundError("Order item")
	}

	m := rows[0]
	return &returns.OrderItemSnapshot{
		ID:          m.ID,
		OrderID:     m.OrderID,
		VendorID:    m.VendorID,
		CustomerID:  m.CustomerID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		ShippingFee: m.ShippingFee,
		WeightGrams: m.WeightGrams,
		Delivered:   m.Status == orderItemStatusDelivered || m.DeliveredAt != nil,
	}, nil
}

// GormCustomerReader reads customer contact data
type GormCustomerReader struct {
	db *gorm.DB
}

// NewGormCustomerReader creates a new customer reader
func NewGormCustomerReader(db *gorm.DB) *GormCustomerReader {
	return &GormCustomerReader{db: db}
}

// GetCustomer loads a customer's contact details
func (r *GormCustomerReader) GetCustomer(ctx context.Context, customerID uuid.UUID) (*returns.CustomerContact, error) {
	var rows []models.CustomerModel
	if err := r.db.WithContext(ctx).Where("id = ?", customerID).Limit(1).Find(&rows).Error; err != nil {
		return nil, shared.NewPersistenceError("load customer", err)
	}
	if len(rows) == 0 {
		return nil, shared.NewNotFoundError("Customer")
	}

	m := rows[0]
	return &returns.CustomerContact{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		Phone:       m.Phone,
		AddressLine: m.AddressLine,
		City:        m.City,
		State:       m.State,
		Pincode:     m.Pincode,
	}, nil
}

var (
	_ returns.OrderItemReader = (*GormOrderItemReader)(nil)
	_ returns.CustomerReader  = (*GormCustomerReader)(nil)
)

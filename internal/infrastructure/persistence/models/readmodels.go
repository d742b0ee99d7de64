package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemModel maps the order subsystem's order_items table. Read only.
type OrderItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	VendorID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	CustomerID  uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName string          `gorm:"type:varchar(255);not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ShippingFee decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	WeightGrams int
	Status      string     `gorm:"type:varchar(30);not null"`
	DeliveredAt *time.Time
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// CustomerModel maps the customer subsystem's customers table. Read only.
type CustomerModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Email       string    `gorm:"type:varchar(255)"`
	Phone       string    `gorm:"type:varchar(32)"`
	AddressLine string    `gorm:"type:text"`
	City        string    `gorm:"type:varchar(100)"`
	State       string    `gorm:"type:varchar(100)"`
	Pincode     string    `gorm:"type:varchar(16)"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

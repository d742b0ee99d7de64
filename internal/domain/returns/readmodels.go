package returns

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemSnapshot is the part of a sold order line a return needs
type OrderItemSnapshot struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	VendorID    uuid.UUID
	CustomerID  uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	ShippingFee decimal.Decimal
	WeightGrams int
	Delivered   bool
}

// OrderItemReader reads order lines owned by the order subsystem
type OrderItemReader interface {
	GetOrderItem(ctx context.Context, vendorID, orderItemID uuid.UUID) (*OrderItemSnapshot, error)
}

// CustomerContact is the address book entry used for pickups and notifications
type CustomerContact struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Phone       string
	AddressLine string
	City        string
	State       string
	Pincode     string
}

// CustomerReader reads customer contact data owned by the customer subsystem
type CustomerReader interface {
	GetCustomer(ctx context.Context, customerID uuid.UUID) (*CustomerContact, error)
}

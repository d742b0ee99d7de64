package returns

import (
	"github.com/shopspring/decimal"

	"github.com/marketplace/returns/internal/domain/shared"
)

// RefundPolicy decides deductions applied when the refund snapshot is taken
type RefundPolicy struct {
	// DeductShippingForCustomerReasons charges the return shipping fee against
	// the refund when the return is not the seller's fault
	DeductShippingForCustomerReasons bool
}

// DefaultRefundPolicy deducts return shipping for customer-initiated reasons
func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{DeductShippingForCustomerReasons: true}
}

// RefundSnapshot is the refund owed for a return, computed once when the return
// is requested. It is stored on the return order and never recomputed.
type RefundSnapshot struct {
	UnitPrice         decimal.Decimal
	Quantity          int
	Gross             decimal.Decimal
	ShippingDeduction decimal.Decimal
	Amount            decimal.Decimal
}

// Compute takes the refund snapshot for a return line
func (p RefundPolicy) Compute(unitPrice decimal.Decimal, quantity int, reason ReturnReason, shippingFee decimal.Decimal) (RefundSnapshot, error) {
	if quantity <= 0 {
		return RefundSnapshot{}, shared.NewValidationError("INVALID_QUANTITY", "Return quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return RefundSnapshot{}, shared.NewValidationError("INVALID_UNIT_PRICE", "Unit price cannot be negative")
	}
	if shippingFee.IsNegative() {
		return RefundSnapshot{}, shared.NewValidationError("INVALID_SHIPPING_FEE", "Return shipping fee cannot be negative")
	}

	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	deduction := decimal.Zero
	if p.DeductShippingForCustomerReasons && reason.IsCustomerInitiated() {
		deduction = decimal.Min(shippingFee, gross).Round(2)
	}

	return RefundSnapshot{
		UnitPrice:         unitPrice,
		Quantity:          quantity,
		Gross:             gross,
		ShippingDeduction: deduction,
		Amount:            gross.Sub(deduction),
	}, nil
}

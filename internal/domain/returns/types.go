package returns

import (
	"fmt"

	"github.com/marketplace/returns/internal/domain/shared"
)

// ReturnType is what the customer expects in exchange for the goods
type ReturnType string

const (
	ReturnTypeRefund      ReturnType = "refund"
	ReturnTypeReplacement ReturnType = "replacement"
	ReturnTypeExchange    ReturnType = "exchange"
)

// IsValid reports whether the return type is known
func (t ReturnType) IsValid() bool {
	switch t {
	case ReturnTypeRefund, ReturnTypeReplacement, ReturnTypeExchange:
		return true
	}
	return false
}

// ReturnReason is the customer's stated cause for the return
type ReturnReason string

const (
	ReasonDefective        ReturnReason = "defective"
	ReasonDamaged          ReturnReason = "damaged"
	ReasonWrongItem        ReturnReason = "wrong_item"
	ReasonNotAsDescribed   ReturnReason = "not_as_described"
	ReasonMissingParts     ReturnReason = "missing_parts"
	ReasonChangedMind      ReturnReason = "changed_mind"
	ReasonOrderedByMistake ReturnReason = "ordered_by_mistake"
	ReasonBetterPrice      ReturnReason = "better_price"
	ReasonNoLongerNeeded   ReturnReason = "no_longer_needed"
	ReasonOther            ReturnReason = "other"
)

// IsValid reports whether the reason is known
func (r ReturnReason) IsValid() bool {
	switch r {
	case ReasonDefective, ReasonDamaged, ReasonWrongItem, ReasonNotAsDescribed, ReasonMissingParts,
		ReasonChangedMind, ReasonOrderedByMistake, ReasonBetterPrice, ReasonNoLongerNeeded, ReasonOther:
		return true
	}
	return false
}

// IsCustomerInitiated reports whether the return is not the seller's fault.
// Customer-initiated returns may carry a return shipping deduction.
func (r ReturnReason) IsCustomerInitiated() bool {
	switch r {
	case ReasonChangedMind, ReasonOrderedByMistake, ReasonBetterPrice, ReasonNoLongerNeeded:
		return true
	}
	return false
}

// RefundMethod is where refunded money is sent
type RefundMethod string

const (
	RefundMethodOriginalPayment RefundMethod = "original_payment"
	RefundMethodWallet          RefundMethod = "wallet"
	RefundMethodBankTransfer    RefundMethod = "bank_transfer"
)

// IsValid reports whether the refund method is supported
func (m RefundMethod) IsValid() bool {
	switch m {
	case RefundMethodOriginalPayment, RefundMethodWallet, RefundMethodBankTransfer:
		return true
	}
	return false
}

// ParseRefundMethod validates a refund method supplied by a caller
func ParseRefundMethod(s string) (RefundMethod, error) {
	m := RefundMethod(s)
	if !m.IsValid() {
		return "", shared.NewValidationError("INVALID_REFUND_METHOD",
			fmt.Sprintf("Refund method must be one of original_payment, wallet, bank_transfer; got %q", s))
	}
	return m, nil
}

package returns

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
)

// ErrDuplicateReturnNumber is returned by Create when another return took the
// same number first. Callers allocate a new number and retry.
var ErrDuplicateReturnNumber = errors.New("return number already taken")

// ListFilter narrows a vendor's return listing
type ListFilter struct {
	shared.Filter
	Statuses   []ReturnStatus
	Bucket     StatusBucket
	ReturnType ReturnType
	Reason     ReturnReason
	OrderID    *uuid.UUID
	CustomerID *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// Statistics is the per-vendor return dashboard
type Statistics struct {
	VendorID          uuid.UUID              `json:"vendor_id"`
	Total             int64                  `json:"total"`
	ByStatus          map[ReturnStatus]int64 `json:"by_status"`
	ByBucket          map[StatusBucket]int64 `json:"by_bucket"`
	TotalRefundAmount decimal.Decimal        `json:"total_refund_amount"`
	RefundedAmount    decimal.Decimal        `json:"refunded_amount"`
}

// NewStatistics builds the dashboard from per-status counts and amounts
func NewStatistics(vendorID uuid.UUID, counts map[ReturnStatus]int64, amounts map[ReturnStatus]decimal.Decimal) *Statistics {
	s := &Statistics{
		VendorID:          vendorID,
		ByStatus:          make(map[ReturnStatus]int64),
		ByBucket:          make(map[StatusBucket]int64),
		TotalRefundAmount: decimal.Zero,
		RefundedAmount:    decimal.Zero,
	}
	for _, b := range []StatusBucket{BucketAwaitingApproval, BucketInProgress, BucketCompleted, BucketClosedWithoutRefund} {
		s.ByBucket[b] = 0
	}
	for status, n := range counts {
		s.ByStatus[status] = n
		s.ByBucket[status.Bucket()] += n
		s.Total += n
	}
	for status, amount := range amounts {
		if status.Bucket() == BucketClosedWithoutRefund {
			continue
		}
		s.TotalRefundAmount = s.TotalRefundAmount.Add(amount)
		if status.Bucket() == BucketCompleted {
			s.RefundedAmount = s.RefundedAmount.Add(amount)
		}
	}
	return s
}

// ReturnOrderRepository persists return orders. Every status change goes
// through ApplyTransition; there is no unconditional update.
type ReturnOrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ReturnOrder, error)
	FindByIDForVendor(ctx context.Context, vendorID, id uuid.UUID) (*ReturnOrder, error)
	FindByAwbNumber(ctx context.Context, awb string) (*ReturnOrder, error)
	FindAllForVendor(ctx context.Context, vendorID uuid.UUID, filter ListFilter) ([]ReturnOrder, error)
	CountForVendor(ctx context.Context, vendorID uuid.UUID, filter ListFilter) (int64, error)

	// Create inserts a new return with its creation tracking entry and events
	Create(ctx context.Context, order *ReturnOrder, entry *tracking.Entry) error

	// ApplyTransition performs the guarded update. It returns a NotFound error
	// when the order does not exist for the vendor, and an InvalidTransition
	// error when the stored status is no longer in t.From.
	ApplyTransition(ctx context.Context, t *Transition) error

	// SumOpenQuantity totals the quantity of an order item under returns that
	// have not been rejected or failed inspection
	SumOpenQuantity(ctx context.Context, orderItemID uuid.UUID) (int, error)

	Statistics(ctx context.Context, vendorID uuid.UUID) (*Statistics, error)

	// NextReturnNumber allocates a RET-YYYYMMDD-NNNNNN number
	NextReturnNumber(ctx context.Context, now time.Time) (string, error)
}

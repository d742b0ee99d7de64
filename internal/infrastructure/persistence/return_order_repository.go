package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/persistence/models"
)

const returnNumberPrefix = "RET-"

// GormReturnOrderRepository implements returns.ReturnOrderRepository using GORM
type GormReturnOrderRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewGormReturnOrderRepository creates a new GORM-based return order repository
func NewGormReturnOrderRepository(db *gorm.DB) *GormReturnOrderRepository {
	return &GormReturnOrderRepository{db: db}
}

// SetOutboxEventSaver wires the outbox. Without it, domain events are dropped.
func (r *GormReturnOrderRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID finds a return order regardless of vendor
func (r *GormReturnOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*returns.ReturnOrder, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForVendor finds a return order owned by the vendor
func (r *GormReturnOrderRepository) FindByIDForVendor(ctx context.Context, vendorID, id uuid.UUID) (*returns.ReturnOrder, error) {
	return r.first(r.db.WithContext(ctx).Scopes(VendorScope(vendorID)).Where("id = ?", id))
}

// FindByAwbNumber finds the return whose reverse pickup carries the waybill
func (r *GormReturnOrderRepository) FindByAwbNumber(ctx context.Context, awb string) (*returns.ReturnOrder, error) {
	awb = strings.TrimSpace(awb)
	if awb == "" {
		return nil, shared.NewNotFoundError("Return order")
	}
	return r.first(r.db.WithContext(ctx).Where("pickup_awb_number = ?", awb).Order("created_at DESC"))
}

func (r *GormReturnOrderRepository) first(query *gorm.DB) (*returns.ReturnOrder, error) {
	var rows []models.ReturnOrderModel
	if err := query.Limit(1).Find(&rows).Error; err != nil {
		return nil, shared.NewPersistenceError("load return order", err)
	}
	if len(rows) == 0 {
		return nil, shared.NewNotFoundError("Return order")
	}
	return rows[0].ToDomain(), nil
}

// FindAllForVendor lists a vendor's returns matching the filter
func (r *GormReturnOrderRepository) FindAllForVendor(ctx context.Context, vendorID uuid.UUID, filter returns.ListFilter) ([]returns.ReturnOrder, error) {
	sortField := ValidateSortField(filter.OrderBy, ReturnOrderSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var rows []models.ReturnOrderModel
	if err := r.listQuery(ctx, vendorID, filter).
		Order(fmt.Sprintf("%s %s", sortField, sortOrder)).
		Order("id ASC").
		Scopes(Paginate(filter.Page, filter.PageSize)).
		Find(&rows).Error; err != nil {
		return nil, shared.NewPersistenceError("list return orders", err)
	}

	out := make([]returns.ReturnOrder, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// CountForVendor counts a vendor's returns matching the filter
func (r *GormReturnOrderRepository) CountForVendor(ctx context.Context, vendorID uuid.UUID, filter returns.ListFilter) (int64, error) {
	var n int64
	if err := r.listQuery(ctx, vendorID, filter).Count(&n).Error; err != nil {
		return 0, shared.NewPersistenceError("count return orders", err)
	}
	return n, nil
}

func (r *GormReturnOrderRepository) listQuery(ctx context.Context, vendorID uuid.UUID, filter returns.ListFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.ReturnOrderModel{}).Scopes(VendorScope(vendorID))

	if statuses, restricted := statusCondition(filter); restricted {
		query = query.Where("status IN ?", statuses)
	}
	if filter.ReturnType != "" {
		query = query.Where("return_type = ?", string(filter.ReturnType))
	}
	if filter.Reason != "" {
		query = query.Where("reason = ?", string(filter.Reason))
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("(LOWER(return_number) LIKE ? OR LOWER(pickup_awb_number) LIKE ?)", pattern, pattern)
	}
	return query
}

// statusCondition combines explicit statuses with a bucket. When both are
// given only statuses inside the bucket remain, which may leave none.
func statusCondition(filter returns.ListFilter) ([]string, bool) {
	selected := filter.Statuses
	if filter.Bucket != "" {
		inBucket := filter.Bucket.Statuses()
		if len(selected) == 0 {
			selected = inBucket
		} else {
			kept := make([]returns.ReturnStatus, 0, len(selected))
			for _, s := range selected {
				if s.Bucket() == filter.Bucket {
					kept = append(kept, s)
				}
			}
			selected = kept
		}
	}
	if len(selected) == 0 && filter.Bucket == "" {
		return nil, false
	}

	values := make([]string, 0, len(selected))
	for _, s := range selected {
		values = append(values, string(s))
	}
	if len(values) == 0 {
		// status is never empty, so this matches no row
		values = append(values, "")
	}
	return values, true
}

// Create inserts the return, its creation tracking entry and its events in one transaction
func (r *GormReturnOrderRepository) Create(ctx context.Context, order *returns.ReturnOrder, entry *tracking.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.ReturnOrderModelFromDomain(order)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return returns.ErrDuplicateReturnNumber
			}
			return shared.NewPersistenceError("create return order", err)
		}
		if entry != nil {
			if err := appendTrackingEntry(tx, entry); err != nil {
				return err
			}
		}
		return r.saveEvents(ctx, tx, order)
	})
	if err != nil {
		return err
	}
	order.ClearDomainEvents()
	return nil
}

// ApplyTransition performs the guarded status change. The UPDATE only matches
// while the stored status is still one of t.From, so of two concurrent callers
// exactly one wins; the loser gets an InvalidTransition error and writes nothing.
func (r *GormReturnOrderRepository) ApplyTransition(ctx context.Context, t *returns.Transition) error {
	updates, err := models.TransitionUpdates(t)
	if err != nil {
		return err
	}
	order := t.Order

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ReturnOrderModel{}).
			Where("id = ? AND vendor_id = ? AND status IN ?", order.ID, order.VendorID, t.FromStrings()).
			Updates(updates)
		if result.Error != nil {
			return shared.NewPersistenceError("update return order status", result.Error)
		}
		if result.RowsAffected == 0 {
			return r.guardFailure(tx, t)
		}

		if t.Entry != nil {
			if err := appendTrackingEntry(tx, t.Entry); err != nil {
				return err
			}
		}
		return r.saveEvents(ctx, tx, order)
	})
	if err != nil {
		return err
	}
	order.ClearDomainEvents()
	return nil
}

// guardFailure explains why the conditional update matched no row
func (r *GormReturnOrderRepository) guardFailure(tx *gorm.DB, t *returns.Transition) error {
	var current []models.ReturnOrderModel
	if err := tx.Select("id", "status").
		Where("id = ? AND vendor_id = ?", t.Order.ID, t.Order.VendorID).
		Limit(1).
		Find(&current).Error; err != nil {
		return shared.NewPersistenceError("load return order", err)
	}
	if len(current) == 0 {
		return shared.NewNotFoundError("Return order")
	}
	return shared.NewInvalidTransitionError(fmt.Sprintf(
		"Return %s is %s, cannot move to %s", t.Order.ReturnNumber, current[0].Status, t.To))
}

func (r *GormReturnOrderRepository) saveEvents(ctx context.Context, tx *gorm.DB, order *returns.ReturnOrder) error {
	events := order.GetDomainEvents()
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return shared.NewPersistenceError("save domain events", err)
	}
	return nil
}

// SumOpenQuantity totals the quantity of an order item under returns that
// still count against the returnable quantity
func (r *GormReturnOrderRepository) SumOpenQuantity(ctx context.Context, orderItemID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ReturnOrderModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("order_item_id = ? AND status NOT IN ?", orderItemID,
			[]string{string(returns.StatusRejected), string(returns.StatusInspectionFailed)}).
		Row().
		Scan(&total)
	if err != nil {
		return 0, shared.NewPersistenceError("sum returned quantity", err)
	}
	return int(total), nil
}

// Statistics aggregates a vendor's returns per status
func (r *GormReturnOrderRepository) Statistics(ctx context.Context, vendorID uuid.UUID) (*returns.Statistics, error) {
	type statusRow struct {
		Status returns.ReturnStatus
		Count  int64
		Amount decimal.Decimal
	}

	var rows []statusRow
	if err := r.db.WithContext(ctx).
		Model(&models.ReturnOrderModel{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(refund_amount), 0) AS amount").
		Scopes(VendorScope(vendorID)).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, shared.NewPersistenceError("aggregate return statistics", err)
	}

	counts := make(map[returns.ReturnStatus]int64, len(rows))
	amounts := make(map[returns.ReturnStatus]decimal.Decimal, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
		amounts[row.Status] = row.Amount
	}
	return returns.NewStatistics(vendorID, counts, amounts), nil
}

// NextReturnNumber allocates the next RET-YYYYMMDD-NNNNNN number for the day.
// Two concurrent callers can get the same number; the unique index rejects the
// second insert and the caller retries with a fresh number.
func (r *GormReturnOrderRepository) NextReturnNumber(ctx context.Context, now time.Time) (string, error) {
	prefix := returnNumberPrefix + now.UTC().Format("20060102") + "-"

	var latest []string
	if err := r.db.WithContext(ctx).
		Model(&models.ReturnOrderModel{}).
		Where("return_number LIKE ?", prefix+"%").
		Order("return_number DESC").
		Limit(1).
		Pluck("return_number", &latest).Error; err != nil {
		return "", shared.NewPersistenceError("allocate return number", err)
	}

	next := 1
	if len(latest) > 0 {
		seq, err := strconv.Atoi(strings.TrimPrefix(latest[0], prefix))
		if err != nil {
			return "", shared.NewPersistenceError("allocate return number",
				fmt.Errorf("malformed return number %q: %w", latest[0], err))
		}
		next = seq + 1
	}
	return fmt.Sprintf("%s%06d", prefix, next), nil
}

var _ returns.ReturnOrderRepository = (*GormReturnOrderRepository)(nil)

package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/logger"
	"github.com/marketplace/returns/internal/infrastructure/telemetry"
)

const (
	spanService = "return_state_machine"

	// maxNumberAttempts bounds retries when two creates race for one return number
	maxNumberAttempts = 3

	defaultCourierTimeout = 10 * time.Second
)

// StatisticsCache holds per-vendor dashboards between transitions
type StatisticsCache interface {
	Get(vendorID uuid.UUID) (*returns.Statistics, bool)
	Generation(vendorID uuid.UUID) uint64
	Set(vendorID uuid.UUID, generation uint64, stats *returns.Statistics) bool
	Invalidate(vendorID uuid.UUID)
}

// PickupDefaults fill the courier booking when the order item does not say
type PickupDefaults struct {
	WeightGrams    int
	Dimensions     returns.Dimensions
	CourierTimeout time.Duration
}

// DefaultPickupDefaults returns a half kilo parcel of 20x15x10 cm
func DefaultPickupDefaults() PickupDefaults {
	return PickupDefaults{
		WeightGrams:    500,
		Dimensions:     returns.Dimensions{LengthCm: 20, WidthCm: 15, HeightCm: 10},
		CourierTimeout: defaultCourierTimeout,
	}
}

// ReturnStateMachine runs every lifecycle operation of a return order.
// Each operation loads the order, applies the domain transition in memory and
// hands it to the repository, whose conditional update is the real guard.
type ReturnStateMachine struct {
	repo       returns.ReturnOrderRepository
	orderItems returns.OrderItemReader
	customers  returns.CustomerReader
	courier    returns.CourierAdapter
	policy     returns.RefundPolicy
	pickup     PickupDefaults
	statsCache StatisticsCache
	metrics    *telemetry.ReturnMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewReturnStateMachine creates a new ReturnStateMachine
func NewReturnStateMachine(
	repo returns.ReturnOrderRepository,
	orderItems returns.OrderItemReader,
	customers returns.CustomerReader,
	courier returns.CourierAdapter,
	logger *zap.Logger,
) *ReturnStateMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnStateMachine{
		repo:       repo,
		orderItems: orderItems,
		customers:  customers,
		courier:    courier,
		policy:     returns.DefaultRefundPolicy(),
		pickup:     DefaultPickupDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// SetRefundPolicy sets the deduction policy applied when returns are created
func (s *ReturnStateMachine) SetRefundPolicy(policy returns.RefundPolicy) {
	s.policy = policy
}

// SetPickupDefaults sets the parcel defaults used for courier bookings
func (s *ReturnStateMachine) SetPickupDefaults(defaults PickupDefaults) {
	if defaults.CourierTimeout <= 0 {
		defaults.CourierTimeout = defaultCourierTimeout
	}
	s.pickup = defaults
}

// SetStatisticsCache sets the cache invalidated after every transition
func (s *ReturnStateMachine) SetStatisticsCache(c StatisticsCache) {
	s.statsCache = c
}

// SetMetrics sets the lifecycle metrics recorder
func (s *ReturnStateMachine) SetMetrics(m *telemetry.ReturnMetrics) {
	s.metrics = m
}

// SetClock overrides the time source
func (s *ReturnStateMachine) SetClock(now func() time.Time) {
	s.now = now
}

// Create opens a return for a delivered order item of the vendor
func (s *ReturnStateMachine) Create(ctx context.Context, vendorID uuid.UUID, actor tracking.Actor, req CreateReturnRequest) (*ReturnOrderResponse, error) {
	const op = "create"
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, op,
		telemetry.WithAttribute("vendor.id", vendorID.String()),
		telemetry.WithAttribute("order_item.id", req.OrderItemID.String()),
	)
	defer span.End()

	item, err := s.orderItems.GetOrderItem(ctx, vendorID, req.OrderItemID)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}
	if !item.Delivered {
		return nil, s.fail(ctx, span, op, shared.NewValidationError("ORDER_ITEM_NOT_DELIVERED",
			"Only delivered items can be returned"))
	}
	if req.CustomerID != nil && *req.CustomerID != item.CustomerID {
		return nil, s.fail(ctx, span, op, shared.NewValidationError("CUSTOMER_MISMATCH",
			"Order item does not belong to this customer"))
	}

	open, err := s.repo.SumOpenQuantity(ctx, item.ID)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	var order *returns.ReturnOrder
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		now := s.now()
		number, err := s.repo.NextReturnNumber(ctx, now)
		if err != nil {
			return nil, s.fail(ctx, span, op, err)
		}

		var entry *tracking.Entry
		order, entry, err = returns.NewReturnOrder(returns.NewReturnOrderParams{
			ReturnNumber:       number,
			VendorID:           vendorID,
			OrderID:            item.OrderID,
			OrderItemID:        item.ID,
			CustomerID:         item.CustomerID,
			ProductID:          item.ProductID,
			ReturnType:         returns.ReturnType(req.ReturnType),
			Reason:             returns.ReturnReason(req.Reason),
			ReasonDescription:  req.ReasonDescription,
			Quantity:           req.Quantity,
			ReturnableQuantity: item.Quantity - open,
			UnitPrice:          item.UnitPrice,
			ReturnShippingFee:  item.ShippingFee,
			Draft:              req.Draft,
		}, s.policy, actor, now)
		if err != nil {
			return nil, s.fail(ctx, span, op, err)
		}

		err = s.repo.Create(ctx, order, entry)
		if err == nil {
			break
		}
		if !errors.Is(err, returns.ErrDuplicateReturnNumber) || attempt == maxNumberAttempts {
			if errors.Is(err, returns.ErrDuplicateReturnNumber) {
				err = shared.NewPersistenceError("allocate return number", err)
			}
			return nil, s.fail(ctx, span, op, err)
		}
		s.log(ctx).Warn("return number taken, retrying",
			zap.String("return_number", number),
			zap.Int("attempt", attempt),
		)
	}

	s.metrics.RecordTransition(ctx, op, "", string(order.Status))
	s.invalidate(order.VendorID)
	s.log(ctx).Info("return order created",
		zap.String("return_id", order.ID.String()),
		zap.String("return_number", order.ReturnNumber),
		zap.String("status", string(order.Status)),
		zap.String("refund_amount", order.RefundAmount.StringFixed(2)),
	)
	telemetry.SetOK(span)

	resp := ToReturnOrderResponse(order)
	return &resp, nil
}

// Submit moves a drafted return into the approval queue
func (s *ReturnStateMachine) Submit(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor) (*ReturnOrderResponse, error) {
	return s.apply(ctx, "submit", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.Submit(actor, now)
	})
}

// Approve accepts a pending return
func (s *ReturnStateMachine) Approve(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor) (*ReturnOrderResponse, error) {
	return s.apply(ctx, "approve", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.Approve(actor, now)
	})
}

// Reject refuses a pending return with a reason
func (s *ReturnStateMachine) Reject(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor, req RejectReturnRequest) (*ReturnOrderResponse, error) {
	return s.apply(ctx, "reject", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.Reject(actor, req.Reason, now)
	})
}

// SchedulePickup books the reverse pickup. A disabled, failing or refusing
// courier leaves the pickup manual; the transition happens either way.
func (s *ReturnStateMachine) SchedulePickup(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor, req SchedulePickupRequest) (*ReturnOrderResponse, error) {
	const op = "schedule_pickup"
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, op,
		telemetry.WithAttribute("vendor.id", vendorID.String()),
		telemetry.WithAttribute("return.id", returnID.String()),
	)
	defer span.End()

	// a calendar day, kept as UTC midnight so the stored date never shifts
	date, err := time.Parse(pickupDateLayout, strings.TrimSpace(req.PickupDate))
	if err != nil {
		return nil, s.fail(ctx, span, op, shared.NewValidationError("INVALID_PICKUP_DATE",
			"Pickup date must be formatted as YYYY-MM-DD"))
	}

	order, err := s.repo.FindByIDForVendor(ctx, vendorID, returnID)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}
	if err := order.CanSchedulePickup(); err != nil {
		return nil, s.fail(ctx, span, op, err)
	}
	now := s.now()
	if err := returns.ValidatePickupDate(date, now); err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	booking := s.bookPickup(ctx, order, date)

	from := order.Status
	t, err := order.SchedulePickup(actor, booking, s.now())
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}
	if err := s.repo.ApplyTransition(ctx, t); err != nil {
		if booking.AwbNumber != "" {
			// the courier booking is now orphaned and must be cancelled with the partner
			s.log(ctx).Error("pickup booked but transition failed",
				zap.String("return_id", order.ID.String()),
				zap.String("awb_number", booking.AwbNumber),
				zap.String("courier", booking.CourierPartner),
				zap.Error(err),
			)
		}
		return nil, s.fail(ctx, span, op, err)
	}

	s.succeed(ctx, span, op, order, from)
	resp := ToReturnOrderResponse(order)
	return &resp, nil
}

// bookPickup calls the courier and turns any failure into a manual booking
func (s *ReturnStateMachine) bookPickup(ctx context.Context, order *returns.ReturnOrder, date time.Time) returns.PickupBooking {
	booking := returns.PickupBooking{Date: date}
	if s.courier == nil || !s.courier.IsEnabled() {
		s.metrics.RecordCourierCall(ctx, s.courierName(), telemetry.CourierOutcomeDisabled, 0)
		return booking
	}

	req, err := s.pickupRequest(ctx, order, date)
	if err != nil {
		s.log(ctx).Warn("cannot build pickup request, falling back to manual pickup",
			zap.String("return_id", order.ID.String()),
			zap.Error(err),
		)
		s.metrics.RecordCourierCall(ctx, s.courier.Name(), telemetry.CourierOutcomeFailed, 0)
		return booking
	}

	callCtx, cancel := context.WithTimeout(ctx, s.pickup.CourierTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.courier.CreatePickup(callCtx, *req)
	elapsed := time.Since(start)

	if result != nil {
		booking.CourierResponse = result.Raw
	}
	switch {
	case err != nil:
		outcome := telemetry.CourierOutcomeFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = telemetry.CourierOutcomeTimeout
		}
		s.metrics.RecordCourierCall(ctx, s.courier.Name(), outcome, elapsed)
		s.log(ctx).Warn("courier pickup failed, falling back to manual pickup",
			zap.String("return_id", order.ID.String()),
			zap.String("courier", s.courier.Name()),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	case result == nil || !result.Success || result.Waybill == "":
		s.metrics.RecordCourierCall(ctx, s.courier.Name(), telemetry.CourierOutcomeRejected, elapsed)
		s.log(ctx).Warn("courier refused pickup, falling back to manual pickup",
			zap.String("return_id", order.ID.String()),
			zap.String("courier", s.courier.Name()),
		)
	default:
		s.metrics.RecordCourierCall(ctx, s.courier.Name(), telemetry.CourierOutcomeBooked, elapsed)
		booking.AwbNumber = result.Waybill
		booking.CourierPartner = s.courier.Name()
	}
	return booking
}

func (s *ReturnStateMachine) pickupRequest(ctx context.Context, order *returns.ReturnOrder, date time.Time) (*returns.PickupRequest, error) {
	customer, err := s.customers.GetCustomer(ctx, order.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	item, err := s.orderItems.GetOrderItem(ctx, order.VendorID, order.OrderItemID)
	if err != nil {
		return nil, fmt.Errorf("load order item: %w", err)
	}

	weight := s.pickup.WeightGrams
	if item.WeightGrams > 0 {
		weight = item.WeightGrams
	}
	description := item.ProductName
	if description == "" {
		description = "Return " + order.ReturnNumber
	}

	return &returns.PickupRequest{
		ReferenceNumber:    order.ReturnNumber,
		CustomerName:       customer.Name,
		Phone:              customer.Phone,
		Address:            customer.AddressLine,
		City:               customer.City,
		State:              customer.State,
		Pincode:            customer.Pincode,
		ProductDescription: description,
		Quantity:           order.Quantity,
		WeightGrams:        weight * order.Quantity,
		Dimensions:         s.pickup.Dimensions,
		PickupDate:         date.Format(pickupDateLayout),
	}, nil
}

func (s *ReturnStateMachine) courierName() string {
	if s.courier == nil {
		return "none"
	}
	return s.courier.Name()
}

// UpdatePickupProgress records courier progress reported by the vendor
func (s *ReturnStateMachine) UpdatePickupProgress(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor, req PickupProgressRequest) (*ReturnOrderResponse, error) {
	to, err := returns.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "update_pickup_progress", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.UpdatePickupProgress(actor, to, req.Description, req.Location, now)
	})
}

// MarkReceived confirms the goods arrived back at the vendor
func (s *ReturnStateMachine) MarkReceived(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor) (*ReturnOrderResponse, error) {
	return s.apply(ctx, "mark_received", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.MarkReceived(actor, now)
	})
}

// StartInspection marks the goods as under inspection
func (s *ReturnStateMachine) StartInspection(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor) (*ReturnOrderResponse, error) {
	return s.apply(ctx, "start_inspection", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.StartInspection(actor, now)
	})
}

// CompleteInspection records the inspection verdict
func (s *ReturnStateMachine) CompleteInspection(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor, req CompleteInspectionRequest) (*ReturnOrderResponse, error) {
	if req.Passed == nil {
		return nil, shared.NewValidationError("INVALID_INSPECTION_RESULT", "Inspection result (passed) is required")
	}
	passed := *req.Passed
	return s.apply(ctx, "complete_inspection", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.CompleteInspection(actor, passed, req.Notes, now)
	})
}

// InitiateRefund starts the refund of the snapshot amount
func (s *ReturnStateMachine) InitiateRefund(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor, req InitiateRefundRequest) (*ReturnOrderResponse, error) {
	method, err := returns.ParseRefundMethod(strings.TrimSpace(req.RefundMethod))
	if err != nil {
		return nil, err
	}
	resp, err := s.apply(ctx, "initiate_refund", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.InitiateRefund(actor, method, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRefundInitiated(ctx, string(method), resp.RefundAmount)
	return resp, nil
}

// CompleteRefund records the payment provider's confirmation
func (s *ReturnStateMachine) CompleteRefund(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor, req CompleteRefundRequest) (*ReturnOrderResponse, error) {
	return s.apply(ctx, "complete_refund", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.CompleteRefund(actor, req.TransactionID, now)
	})
}

// Close settles a return without a refund confirmation
func (s *ReturnStateMachine) Close(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor, req CloseReturnRequest) (*ReturnOrderResponse, error) {
	return s.apply(ctx, "close", vendorID, returnID, func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error) {
		return r.Close(actor, req.Note, now)
	})
}

// ApplyCourierScan applies a scan pushed by the courier. Duplicate, out of
// order and unmapped scans are acknowledged without touching the order.
func (s *ReturnStateMachine) ApplyCourierScan(ctx context.Context, partner string, req CourierScanRequest) (*ScanResult, error) {
	const op = "courier_scan"
	code := returns.ScanCode(strings.ToUpper(strings.TrimSpace(req.ScanCode)))
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, op,
		telemetry.WithAttribute("courier.awb", req.AwbNumber),
		telemetry.WithAttribute("courier.scan_code", string(code)),
	)
	defer span.End()

	order, err := s.repo.FindByAwbNumber(ctx, strings.TrimSpace(req.AwbNumber))
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	from := order.Status
	outcome := returns.ClassifyScan(from, code)
	if outcome == returns.ScanApplied {
		target, _ := code.TargetStatus()
		actor := tracking.Actor{Type: tracking.ActorCourierWebhook, ID: partner}
		if actor.ID == "" {
			actor.ID = s.courierName()
		}
		description := strings.TrimSpace(req.Description)
		if description == "" {
			description = "Courier scan " + string(code)
		}

		t, err := order.UpdatePickupProgress(actor, target, description, req.Location, s.now())
		if err == nil {
			err = s.repo.ApplyTransition(ctx, t)
		}
		switch {
		case err == nil:
			s.succeed(ctx, span, op, order, from)
		case errors.Is(err, shared.ErrInvalidTransition):
			// another writer moved the order first
			outcome = returns.ScanOutOfOrder
			if current, ferr := s.repo.FindByID(ctx, order.ID); ferr == nil {
				order = current
			}
		default:
			return nil, s.fail(ctx, span, op, err)
		}
	}

	s.metrics.RecordScan(ctx, string(code), string(outcome))
	if outcome != returns.ScanApplied {
		s.log(ctx).Info("courier scan acknowledged without transition",
			zap.String("return_id", order.ID.String()),
			zap.String("awb_number", req.AwbNumber),
			zap.String("scan_code", string(code)),
			zap.String("status", string(order.Status)),
			zap.String("outcome", string(outcome)),
		)
		telemetry.SetOK(span)
	}

	return &ScanResult{
		ReturnID:     order.ID,
		ReturnNumber: order.ReturnNumber,
		Outcome:      string(outcome),
		Status:       string(order.Status),
	}, nil
}

// apply runs one guarded transition on a vendor's return
func (s *ReturnStateMachine) apply(
	ctx context.Context,
	op string,
	vendorID, returnID uuid.UUID,
	act func(r *returns.ReturnOrder, now time.Time) (*returns.Transition, error),
) (*ReturnOrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, op,
		telemetry.WithAttribute("vendor.id", vendorID.String()),
		telemetry.WithAttribute("return.id", returnID.String()),
	)
	defer span.End()

	order, err := s.repo.FindByIDForVendor(ctx, vendorID, returnID)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	from := order.Status
	t, err := act(order, s.now())
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}
	if err := s.repo.ApplyTransition(ctx, t); err != nil {
		return nil, s.fail(ctx, span, op, err)
	}

	s.succeed(ctx, span, op, order, from)
	resp := ToReturnOrderResponse(order)
	return &resp, nil
}

func (s *ReturnStateMachine) succeed(ctx context.Context, span trace.Span, op string, order *returns.ReturnOrder, from returns.ReturnStatus) {
	s.metrics.RecordTransition(ctx, op, string(from), string(order.Status))
	s.invalidate(order.VendorID)
	s.log(ctx).Info("return order transitioned",
		zap.String("operation", op),
		zap.String("return_id", order.ID.String()),
		zap.String("return_number", order.ReturnNumber),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
	)
	telemetry.SetOK(span)
}

func (s *ReturnStateMachine) fail(ctx context.Context, span trace.Span, op string, err error) error {
	kind := shared.KindOf(err)
	telemetry.RecordError(span, err)
	s.metrics.RecordRejected(ctx, op, string(kind))

	fields := []zap.Field{zap.String("operation", op), zap.Error(err)}
	switch kind {
	case shared.KindValidation, shared.KindInvalidTransition, shared.KindNotFound:
		s.log(ctx).Warn("return operation rejected", fields...)
	default:
		s.log(ctx).Error("return operation failed", fields...)
	}
	return err
}

func (s *ReturnStateMachine) invalidate(vendorID uuid.UUID) {
	if s.statsCache != nil {
		s.statsCache.Invalidate(vendorID)
	}
}

func (s *ReturnStateMachine) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

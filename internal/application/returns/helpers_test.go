package returns

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/cache"
	"github.com/marketplace/returns/internal/infrastructure/event"
	"github.com/marketplace/returns/internal/infrastructure/persistence"
	"github.com/marketplace/returns/internal/infrastructure/persistence/models"
)

var (
	testNow     = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	tomorrow    = testNow.AddDate(0, 0, 1).Format("2006-01-02")
	vendorActor = tracking.Actor{Type: tracking.ActorVendor, ID: "vendor-user-1"}
)

// fakeCourier is a scriptable CourierAdapter
type fakeCourier struct {
	mu       sync.Mutex
	enabled  bool
	result   *returns.PickupResult
	err      error
	delay    time.Duration
	requests []returns.PickupRequest
}

func (c *fakeCourier) Name() string    { return "testcourier" }
func (c *fakeCourier) IsEnabled() bool { return c.enabled }

func (c *fakeCourier) CreatePickup(ctx context.Context, req returns.PickupRequest) (*returns.PickupResult, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.result, c.err
}

func (c *fakeCourier) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// fixture wires the state machine to sqlite-backed repositories
type fixture struct {
	db        *gorm.DB
	repo      *persistence.GormReturnOrderRepository
	trackings *persistence.GormTrackingRepository
	courier   *fakeCourier
	stats     *cache.StatisticsCache
	sm        *ReturnStateMachine
	qs        *ReturnQueryService
	vendorID  uuid.UUID
	customer  models.CustomerModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), persistence.GormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.ReturnOrderModel{},
		&models.TrackingHistoryModel{},
		&models.OutboxEntryModel{},
		&models.OrderItemModel{},
		&models.CustomerModel{},
	))

	serializer := event.NewEventSerializer()
	event.RegisterReturnEvents(serializer)

	repo := persistence.NewGormReturnOrderRepository(db)
	repo.SetOutboxEventSaver(event.NewOutboxPublisher(serializer, 3))
	trackings := persistence.NewGormTrackingRepository(db)
	items := persistence.NewGormOrderItemReader(db)
	customers := persistence.NewGormCustomerReader(db)
	courier := &fakeCourier{}
	stats := cache.NewStatisticsCache(time.Minute)

	sm := NewReturnStateMachine(repo, items, customers, courier, zap.NewNop())
	sm.SetClock(func() time.Time { return testNow })
	sm.SetStatisticsCache(stats)

	qs := NewReturnQueryService(repo, trackings, zap.NewNop())
	qs.SetStatisticsCache(stats)

	f := &fixture{
		db:        db,
		repo:      repo,
		trackings: trackings,
		courier:   courier,
		stats:     stats,
		sm:        sm,
		qs:        qs,
		vendorID:  uuid.New(),
		customer: models.CustomerModel{
			ID:          uuid.New(),
			Name:        "Asha Rao",
			Email:       "asha@example.com",
			Phone:       "9800000001",
			AddressLine: "12 Lake Road",
			City:        "Pune",
			State:       "MH",
			Pincode:     "411001",
		},
	}
	require.NoError(t, db.Create(&f.customer).Error)
	return f
}

// seedItem inserts a delivered order line of the fixture's vendor
func (f *fixture) seedItem(t *testing.T, quantity int, unitPrice, shippingFee string) models.OrderItemModel {
	t.Helper()
	delivered := testNow.AddDate(0, 0, -3)
	item := models.OrderItemModel{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		VendorID:    f.vendorID,
		CustomerID:  f.customer.ID,
		ProductID:   uuid.New(),
		ProductName: "Steel water bottle",
		Quantity:    quantity,
		UnitPrice:   decimal.RequireFromString(unitPrice),
		ShippingFee: decimal.RequireFromString(shippingFee),
		WeightGrams: 400,
		Status:      "delivered",
		DeliveredAt: &delivered,
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item
}

// createReturn opens a pending return for a fresh item
func (f *fixture) createReturn(t *testing.T, reason returns.ReturnReason) *ReturnOrderResponse {
	t.Helper()
	item := f.seedItem(t, 1, "500.00", "40.00")
	resp, err := f.sm.Create(context.Background(), f.vendorID, vendorActor, CreateReturnRequest{
		OrderItemID: item.ID,
		ReturnType:  string(returns.ReturnTypeRefund),
		Reason:      string(reason),
		Quantity:    1,
	})
	require.NoError(t, err)
	return resp
}

// advanceTo drives a fresh return through the lifecycle up to status
func (f *fixture) advanceTo(t *testing.T, status returns.ReturnStatus) *ReturnOrderResponse {
	t.Helper()
	ctx := context.Background()
	resp := f.createReturn(t, returns.ReasonDefective)
	id := resp.ID

	steps := []struct {
		status returns.ReturnStatus
		run    func() (*ReturnOrderResponse, error)
	}{
		{returns.StatusApproved, func() (*ReturnOrderResponse, error) {
			return f.sm.Approve(ctx, f.vendorID, id, vendorActor)
		}},
		{returns.StatusPickupScheduled, func() (*ReturnOrderResponse, error) {
			return f.sm.SchedulePickup(ctx, f.vendorID, id, vendorActor, SchedulePickupRequest{PickupDate: tomorrow})
		}},
		{returns.StatusInTransit, func() (*ReturnOrderResponse, error) {
			return f.sm.UpdatePickupProgress(ctx, f.vendorID, id, vendorActor, PickupProgressRequest{Status: "in_transit"})
		}},
		{returns.StatusReceived, func() (*ReturnOrderResponse, error) {
			return f.sm.MarkReceived(ctx, f.vendorID, id, vendorActor)
		}},
		{returns.StatusInspectionPassed, func() (*ReturnOrderResponse, error) {
			passed := true
			return f.sm.CompleteInspection(ctx, f.vendorID, id, vendorActor, CompleteInspectionRequest{Passed: &passed})
		}},
		{returns.StatusRefundInitiated, func() (*ReturnOrderResponse, error) {
			return f.sm.InitiateRefund(ctx, f.vendorID, id, vendorActor, InitiateRefundRequest{RefundMethod: "wallet"})
		}},
	}

	for _, step := range steps {
		if resp.Status == string(status) {
			return resp
		}
		var err error
		resp, err = step.run()
		require.NoError(t, err, "advancing to %s", step.status)
		require.Equal(t, string(step.status), resp.Status)
	}
	require.Equal(t, string(status), resp.Status)
	return resp
}

func (f *fixture) outboxTypes(t *testing.T, returnID uuid.UUID) []string {
	t.Helper()
	var types []string
	require.NoError(t, f.db.Model(&models.OutboxEntryModel{}).
		Where("aggregate_id = ?", returnID).
		Order("created_at ASC").
		Pluck("event_type", &types).Error)
	return types
}

func rawJSON(s string) json.RawMessage {
	return json.RawMessage(s)
}

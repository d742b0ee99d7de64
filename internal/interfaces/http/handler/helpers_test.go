package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	returnsapp "github.com/marketplace/returns/internal/application/returns"
	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/cache"
	"github.com/marketplace/returns/internal/infrastructure/event"
	"github.com/marketplace/returns/internal/infrastructure/persistence"
	"github.com/marketplace/returns/internal/infrastructure/persistence/models"
	"github.com/marketplace/returns/internal/interfaces/http/dto"
	"github.com/marketplace/returns/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const webhookSecret = "courier-webhook-secret"

var (
	testNow  = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	tomorrow = testNow.AddDate(0, 0, 1).Format("2006-01-02")
)

// envelope decodes the response wrapper with a typed payload
type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

// stubCourier books every pickup with a fresh waybill
type stubCourier struct {
	next int
}

func (c *stubCourier) Name() string    { return "testcourier" }
func (c *stubCourier) IsEnabled() bool { return true }

func (c *stubCourier) CreatePickup(_ context.Context, _ returns.PickupRequest) (*returns.PickupResult, error) {
	c.next++
	return &returns.PickupResult{
		Success: true,
		Waybill: fmt.Sprintf("AWB%06d", c.next),
		Raw:     json.RawMessage(`{"status":"booked"}`),
	}, nil
}

// testServer wires the handlers to sqlite-backed services behind the
// header identity middleware
type testServer struct {
	db       *gorm.DB
	engine   *gin.Engine
	vendorID uuid.UUID
	customer models.CustomerModel
}

func newTestServer(t *testing.T) *testServer {
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
	stats := cache.NewStatisticsCache(time.Minute)

	machine := returnsapp.NewReturnStateMachine(
		repo,
		persistence.NewGormOrderItemReader(db),
		persistence.NewGormCustomerReader(db),
		&stubCourier{},
		zap.NewNop(),
	)
	machine.SetClock(func() time.Time { return testNow })
	machine.SetStatisticsCache(stats)
	queries := returnsapp.NewReturnQueryService(repo, trackings, zap.NewNop())
	queries.SetStatisticsCache(stats)

	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/health", NewHealthHandler("returns", "test", &persistence.Database{DB: db}).Health)

	webhook := NewCourierWebhookHandler(machine, "testcourier", webhookSecret)
	engine.POST("/webhooks/courier", webhook.HandleScan)

	h := NewReturnHandler(machine, queries)
	api := engine.Group("/returns", middleware.ActorAuth(middleware.ActorAuthConfig{AllowHeader: true}))
	api.POST("", h.Create)
	api.GET("", h.List)
	api.GET("/statistics", h.Statistics)
	api.GET("/:id", h.GetByID)
	api.GET("/:id/timeline", h.Timeline)
	api.POST("/:id/submit", h.Submit)
	api.POST("/:id/approve", h.Approve)
	api.POST("/:id/reject", h.Reject)
	api.POST("/:id/schedule-pickup", h.SchedulePickup)
	api.POST("/:id/pickup-status", h.UpdatePickupProgress)
	api.POST("/:id/mark-received", h.MarkReceived)
	api.POST("/:id/start-inspection", h.StartInspection)
	api.POST("/:id/complete-inspection", h.CompleteInspection)
	api.POST("/:id/initiate-refund", h.InitiateRefund)
	api.POST("/:id/complete-refund",
		middleware.RequireActorTypes(tracking.ActorAdmin, tracking.ActorSystem), h.CompleteRefund)
	api.POST("/:id/close", h.Close)

	s := &testServer{
		db:       db,
		engine:   engine,
		vendorID: uuid.New(),
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
	require.NoError(t, db.Create(&s.customer).Error)
	return s
}

// seedItem inserts a delivered order line of the server's vendor
func (s *testServer) seedItem(t *testing.T) models.OrderItemModel {
	t.Helper()
	delivered := testNow.AddDate(0, 0, -3)
	item := models.OrderItemModel{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		VendorID:    s.vendorID,
		CustomerID:  s.customer.ID,
		ProductID:   uuid.New(),
		ProductName: "Steel water bottle",
		Quantity:    2,
		UnitPrice:   decimal.RequireFromString("500.00"),
		ShippingFee: decimal.RequireFromString("40.00"),
		WeightGrams: 400,
		Status:      "delivered",
		DeliveredAt: &delivered,
	}
	require.NoError(t, s.db.Create(&item).Error)
	return item
}

// request is one call against the test server
type request struct {
	method    string
	path      string
	body      any
	vendorID  uuid.UUID
	actorType string
	headers   map[string]string
}

func (s *testServer) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	switch b := r.body.(type) {
	case nil:
	case string:
		body = []byte(b)
	case []byte:
		body = b
	default:
		var err error
		body, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(r.method, r.path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if r.vendorID != uuid.Nil {
		req.Header.Set(middleware.VendorIDHeader, r.vendorID.String())
		req.Header.Set(middleware.ActorIDHeader, "user-1")
		if r.actorType != "" {
			req.Header.Set(middleware.ActorTypeHeader, r.actorType)
		}
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// post sends a vendor-authenticated POST
func (s *testServer) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, request{method: http.MethodPost, path: path, body: body, vendorID: s.vendorID})
}

// get sends a vendor-authenticated GET
func (s *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, request{method: http.MethodGet, path: path, vendorID: s.vendorID})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// createReturn opens a pending-approval return through the API
func (s *testServer) createReturn(t *testing.T) returnsapp.ReturnOrderResponse {
	t.Helper()
	item := s.seedItem(t)
	w := s.post(t, "/returns", map[string]any{
		"order_item_id": item.ID,
		"return_type":   "refund",
		"reason":        "defective",
		"quantity":      1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[returnsapp.ReturnOrderResponse](t, w).Data
}

// step posts a transition and asserts the resulting status
func (s *testServer) step(t *testing.T, id uuid.UUID, op string, body any, want returns.ReturnStatus) returnsapp.ReturnOrderResponse {
	t.Helper()
	w := s.post(t, "/returns/"+id.String()+"/"+op, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[returnsapp.ReturnOrderResponse](t, w).Data
	require.Equal(t, string(want), resp.Status)
	return resp
}

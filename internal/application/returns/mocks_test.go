package returns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/tracking"
)

// MockReturnOrderRepository is a mock implementation of ReturnOrderRepository
type MockReturnOrderRepository struct {
	mock.Mock
}

func (m *MockReturnOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*returns.ReturnOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.ReturnOrder), args.Error(1)
}

func (m *MockReturnOrderRepository) FindByIDForVendor(ctx context.Context, vendorID, id uuid.UUID) (*returns.ReturnOrder, error) {
	args := m.Called(ctx, vendorID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.ReturnOrder), args.Error(1)
}

func (m *MockReturnOrderRepository) FindByAwbNumber(ctx context.Context, awb string) (*returns.ReturnOrder, error) {
	args := m.Called(ctx, awb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.ReturnOrder), args.Error(1)
}

func (m *MockReturnOrderRepository) FindAllForVendor(ctx context.Context, vendorID uuid.UUID, filter returns.ListFilter) ([]returns.ReturnOrder, error) {
	args := m.Called(ctx, vendorID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]returns.ReturnOrder), args.Error(1)
}

func (m *MockReturnOrderRepository) CountForVendor(ctx context.Context, vendorID uuid.UUID, filter returns.ListFilter) (int64, error) {
	args := m.Called(ctx, vendorID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReturnOrderRepository) Create(ctx context.Context, order *returns.ReturnOrder, entry *tracking.Entry) error {
	args := m.Called(ctx, order, entry)
	return args.Error(0)
}

func (m *MockReturnOrderRepository) ApplyTransition(ctx context.Context, t *returns.Transition) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockReturnOrderRepository) SumOpenQuantity(ctx context.Context, orderItemID uuid.UUID) (int, error) {
	args := m.Called(ctx, orderItemID)
	return args.Int(0), args.Error(1)
}

func (m *MockReturnOrderRepository) Statistics(ctx context.Context, vendorID uuid.UUID) (*returns.Statistics, error) {
	args := m.Called(ctx, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.Statistics), args.Error(1)
}

func (m *MockReturnOrderRepository) NextReturnNumber(ctx context.Context, now time.Time) (string, error) {
	args := m.Called(ctx, now)
	return args.String(0), args.Error(1)
}

// MockOrderItemReader is a mock implementation of OrderItemReader
type MockOrderItemReader struct {
	mock.Mock
}

func (m *MockOrderItemReader) GetOrderItem(ctx context.Context, vendorID, orderItemID uuid.UUID) (*returns.OrderItemSnapshot, error) {
	args := m.Called(ctx, vendorID, orderItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.OrderItemSnapshot), args.Error(1)
}

// MockCustomerReader is a mock implementation of CustomerReader
type MockCustomerReader struct {
	mock.Mock
}

func (m *MockCustomerReader) GetCustomer(ctx context.Context, customerID uuid.UUID) (*returns.CustomerContact, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*returns.CustomerContact), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event returns.NotificationEvent, payload *returns.ReturnLifecycleEvent, customer *returns.CustomerContact) error {
	args := m.Called(ctx, event, payload, customer)
	return args.Error(0)
}

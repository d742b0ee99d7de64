package persistence

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/persistence/models"
)

var returnSeq atomic.Int64

var vendorActor = tracking.Actor{Type: tracking.ActorVendor, ID: "vendor-user-1"}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig(logger.Default.LogMode(logger.Silent)))
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
	return db
}

func newTestReturn(t *testing.T, vendorID uuid.UUID, now time.Time) (*returns.ReturnOrder, *tracking.Entry) {
	t.Helper()
	order, entry, err := returns.NewReturnOrder(returns.NewReturnOrderParams{
		ReturnNumber:       fmt.Sprintf("RET-%s-%06d", now.Format("20060102"), returnSeq.Add(1)),
		VendorID:           vendorID,
		OrderID:            uuid.New(),
		OrderItemID:        uuid.New(),
		CustomerID:         uuid.New(),
		ProductID:          uuid.New(),
		ReturnType:         returns.ReturnTypeRefund,
		Reason:             returns.ReasonDefective,
		Quantity:           2,
		ReturnableQuantity: 3,
		UnitPrice:          decimal.RequireFromString("250.00"),
		ReturnShippingFee:  decimal.RequireFromString("40.00"),
	}, returns.DefaultRefundPolicy(), vendorActor, now)
	require.NoError(t, err)
	return order, entry
}

func createTestReturn(t *testing.T, repo *GormReturnOrderRepository, vendorID uuid.UUID, now time.Time) *returns.ReturnOrder {
	t.Helper()
	order, entry := newTestReturn(t, vendorID, now)
	require.NoError(t, repo.Create(context.Background(), order, entry))
	return order
}

package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"auctionhouse/internal/apperr"
	"auctionhouse/internal/models"
	"auctionhouse/internal/order/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	tables := []interface{}{
		(*models.User)(nil), (*models.Product)(nil),
		(*models.Order)(nil), (*models.OrderItem)(nil),
	}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func insertProduct(t *testing.T, bunDB *bun.DB, price float64, stock int) string {
	product := models.Product{
		ID:            uuid.New().String(),
		Name:          "Mechanical Keyboard",
		Type:          models.TypeFixedPrice,
		Status:        models.ProductActive,
		Price:         price,
		StockQuantity: stock,
		CreatedAt:     time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&product).Exec(context.Background())
	assert.NoError(t, err)
	return product.ID
}

func TestCreateOrderWithItemsDecrementsStock(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	productID := insertProduct(t, bunDB, 100, 10)

	order := &models.Order{
		ID:          uuid.New().String(),
		UserID:      "user1",
		TotalAmount: 300,
		Status:      models.OrderPendingPayment,
		CreatedAt:   time.Now(),
	}
	items := []models.OrderItem{{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		ProductID:  productID,
		Quantity:   3,
		UnitPrice:  100,
		TotalPrice: 300,
	}}

	err := orderDB.CreateOrderWithItems(context.Background(), order, items)
	assert.NoError(t, err)

	var product models.Product
	err = bunDB.NewSelect().Model(&product).Where("id = ?", productID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, product.StockQuantity)

	loaded, err := orderDB.GetOrderByID(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Equal(t, 1, len(loaded.Items))
	assert.Equal(t, 3, loaded.Items[0].Quantity)
}

func TestCreateOrderWithItemsRollsBackOnShortStock(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	fullStock := insertProduct(t, bunDB, 100, 10)
	lowStock := insertProduct(t, bunDB, 50, 1)

	order := &models.Order{
		ID:          uuid.New().String(),
		UserID:      "user1",
		TotalAmount: 300,
		Status:      models.OrderPendingPayment,
		CreatedAt:   time.Now(),
	}
	items := []models.OrderItem{
		{ID: uuid.New().String(), OrderID: order.ID, ProductID: fullStock, Quantity: 2, UnitPrice: 100, TotalPrice: 200},
		{ID: uuid.New().String(), OrderID: order.ID, ProductID: lowStock, Quantity: 5, UnitPrice: 50, TotalPrice: 250},
	}

	err := orderDB.CreateOrderWithItems(context.Background(), order, items)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The whole transaction rolled back: no order, no decrement anywhere.
	count, err := bunDB.NewSelect().Model((*models.Order)(nil)).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	var product models.Product
	err = bunDB.NewSelect().Model(&product).Where("id = ?", fullStock).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 10, product.StockQuantity)
}

func TestCreateOrderWithItemsRejectsInactiveProduct(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	product := models.Product{
		ID:            uuid.New().String(),
		Name:          "Discontinued Gadget",
		Type:          models.TypeFixedPrice,
		Status:        models.ProductInactive,
		Price:         100,
		StockQuantity: 10,
		CreatedAt:     time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&product).Exec(context.Background())
	assert.NoError(t, err)

	order := &models.Order{
		ID:          uuid.New().String(),
		UserID:      "user1",
		TotalAmount: 100,
		Status:      models.OrderPendingPayment,
		CreatedAt:   time.Now(),
	}
	items := []models.OrderItem{{
		ID: uuid.New().String(), OrderID: order.ID, ProductID: product.ID,
		Quantity: 1, UnitPrice: 100, TotalPrice: 100,
	}}

	err = orderDB.CreateOrderWithItems(context.Background(), order, items)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestGetOrderByIDMissing(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order, err := orderDB.GetOrderByID(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, order)
}

func TestGetOrdersByUserID(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	orders := []models.Order{
		{ID: uuid.New().String(), UserID: "user1", TotalAmount: 100, Status: models.OrderPaid, CreatedAt: time.Now().Add(-time.Hour)},
		{ID: uuid.New().String(), UserID: "user1", TotalAmount: 200, Status: models.OrderPendingPayment, CreatedAt: time.Now()},
		{ID: uuid.New().String(), UserID: "user2", TotalAmount: 300, Status: models.OrderPaid, CreatedAt: time.Now()},
	}
	_, err := bunDB.NewInsert().Model(&orders).Exec(context.Background())
	assert.NoError(t, err)

	found, err := orderDB.GetOrdersByUserID(context.Background(), "user1")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(found))
	// Newest first.
	assert.Equal(t, 200.0, found[0].TotalAmount)
}

func TestUpdateOrderStatus(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := models.Order{
		ID:          uuid.New().String(),
		UserID:      "user1",
		TotalAmount: 100,
		Status:      models.OrderPendingPayment,
		CreatedAt:   time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&order).Exec(context.Background())
	assert.NoError(t, err)

	err = orderDB.UpdateOrderStatus(context.Background(), order.ID, models.OrderPaid)
	assert.NoError(t, err)

	var updated models.Order
	err = bunDB.NewSelect().Model(&updated).Where("id = ?", order.ID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, models.OrderPaid, updated.Status)
}

func TestSetOrderPayment(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	order := models.Order{
		ID:          uuid.New().String(),
		UserID:      "user1",
		TotalAmount: 100,
		Status:      models.OrderPendingPayment,
		CreatedAt:   time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&order).Exec(context.Background())
	assert.NoError(t, err)

	err = orderDB.SetOrderPayment(context.Background(), order.ID, "4242", "https://pay.example/inv")
	assert.NoError(t, err)

	var updated models.Order
	err = bunDB.NewSelect().Model(&updated).Where("id = ?", order.ID).Scan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "4242", updated.PaymentID)
	assert.Equal(t, "https://pay.example/inv", updated.PaymentURL)
}

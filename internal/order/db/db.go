package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"auctionhouse/internal/apperr"
	"auctionhouse/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetOrderByID loads an order with its items. Returns nil without error when
// the order does not exist.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Items").
		Where("\"order\".id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Relation("Items").
		Where("\"order\".user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := d.Bun.NewSelect().
		Model(&product).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateOrderWithItems inserts the order and its items and decrements stock
// for every line, all in one transaction. The decrement only matches rows
// that still hold enough stock, so a concurrent checkout racing for the last
// units rolls the whole order back with a Conflict instead of overselling.
func (d *DB) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}

		for i := range items {
			item := &items[i]

			res, err := tx.NewUpdate().
				Model((*models.Product)(nil)).
				Set("stock_quantity = stock_quantity - ?", item.Quantity).
				Set("updated_at = ?", time.Now()).
				Where("id = ?", item.ProductID).
				Where("status = ?", models.ProductActive).
				Where("stock_quantity >= ?", item.Quantity).
				Exec(ctx)
			if err != nil {
				return err
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if rows == 0 {
				return apperr.Conflict("insufficient stock for product %s", item.ProductID)
			}

			if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}

func (d *DB) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) SetOrderPayment(ctx context.Context, orderID, paymentID, paymentURL string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_id = ?", paymentID).
		Set("payment_url = ?", paymentURL).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderFailed         OrderStatus = "failed"
	OrderCancelled      OrderStatus = "cancelled"
	OrderShipped        OrderStatus = "shipped"
	OrderDelivered      OrderStatus = "delivered"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string      `bun:"id,pk" json:"id"`
	UserID          string      `bun:"user_id,notnull" json:"user_id"`
	TotalAmount     float64     `bun:"total_amount,notnull" json:"total_amount"`
	Status          OrderStatus `bun:"status,notnull" json:"status"`
	PaymentID       string      `bun:"payment_id,nullzero" json:"payment_id,omitempty"`
	PaymentURL      string      `bun:"payment_url,nullzero" json:"payment_url,omitempty"`
	ShippingAddress string      `bun:"shipping_address,nullzero" json:"shipping_address,omitempty"`
	Notes           string      `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt       time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time   `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Items []OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// OrderItem snapshots price and quantity at order-creation time so order
// history survives later catalog price changes.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID         string  `bun:"id,pk" json:"id"`
	OrderID    string  `bun:"order_id,notnull" json:"order_id"`
	ProductID  string  `bun:"product_id,notnull" json:"product_id"`
	Quantity   int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice  float64 `bun:"unit_price,notnull" json:"unit_price"`
	TotalPrice float64 `bun:"total_price,notnull" json:"total_price"`
}

package models

import "time"

// Payment is an audit record of a gateway payment session tied to an order.
type Payment struct {
	PaymentID   string      `json:"payment_id"`
	OrderID     string      `json:"order_id"`
	InvoiceID   int64       `json:"invoice_id"`
	Status      OrderStatus `json:"status"`
	Amount      float64     `json:"amount"`
	URL         string      `json:"url"`
	CreatedDate time.Time   `json:"created_date"`
	UpdatedDate time.Time   `json:"updated_date,omitempty"`
}

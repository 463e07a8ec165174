package storage

import "auctionhouse/internal/models"

// Store keeps an audit trail of gateway payment sessions. Order state is the
// source of truth for payment status; these rows exist for reconciliation
// and support lookups.
type Store interface {
	SavePayment(payment *models.Payment) error
	GetPaymentByOrderID(orderID string) (*models.Payment, error)
	UpdatePaymentStatus(orderID string, status models.OrderStatus) error
}

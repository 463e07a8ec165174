package payment

import (
	"auctionhouse/internal/apperr"
	"auctionhouse/internal/models"
)

// CallbackPayload is the gateway's webhook body. The order reference arrives
// in CustomerReference or, for older integrations, UserDefinedField.
type CallbackPayload struct {
	InvoiceID         int64  `json:"InvoiceId"`
	CustomerReference string `json:"CustomerReference"`
	UserDefinedField  string `json:"UserDefinedField"`
	InvoiceStatus     string `json:"InvoiceStatus"`
}

type CallbackResult struct {
	OrderID string
	Status  models.OrderStatus
}

// MapCallback translates a gateway callback into an order status change.
// Pure function, no I/O.
func MapCallback(payload CallbackPayload) (CallbackResult, error) {
	orderID := payload.CustomerReference
	if orderID == "" {
		orderID = payload.UserDefinedField
	}
	if orderID == "" {
		return CallbackResult{}, apperr.BadInput("order reference not found in callback data")
	}

	return CallbackResult{
		OrderID: orderID,
		Status:  MapGatewayStatus(payload.InvoiceStatus),
	}, nil
}

// MapGatewayStatus maps the gateway's status vocabulary onto ours. Anything
// unrecognized counts as a failure so an order never gets stuck looking paid.
func MapGatewayStatus(invoiceStatus string) models.OrderStatus {
	switch invoiceStatus {
	case "Paid":
		return models.OrderPaid
	case "Failed":
		return models.OrderFailed
	case "Pending":
		return models.OrderPendingPayment
	default:
		return models.OrderFailed
	}
}

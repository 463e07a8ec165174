package order

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"auctionhouse/internal/apperr"
	"auctionhouse/internal/logger"
	"auctionhouse/internal/models"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/payment"
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error
	SetOrderPayment(ctx context.Context, orderID, paymentID, paymentURL string) error
}

type PaymentGateway interface {
	IsConfigured() bool
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.SessionResponse, error)
	GetStatus(ctx context.Context, invoiceID int64) (string, error)
}

type PaymentLog interface {
	SavePayment(payment *models.Payment) error
	GetPaymentByOrderID(orderID string) (*models.Payment, error)
	UpdatePaymentStatus(orderID string, status models.OrderStatus) error
}

type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	Items           []ItemRequest `json:"items"`
	ShippingAddress string        `json:"shipping_address,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}

// OrderService handles fixed-price checkout and payment reconciliation on
// existing orders.
type OrderService struct {
	DB       DBLayer
	Gateway  PaymentGateway
	Payments PaymentLog
	Notifier notify.Notifier
	logger   *logger.Logger
}

func NewOrderService(db DBLayer, gateway PaymentGateway, payments PaymentLog, notifier notify.Notifier, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:       db,
		Gateway:  gateway,
		Payments: payments,
		Notifier: notifier,
		logger:   log,
	}
}

// CreateOrder checks out a cart of fixed-price products. Stock is validated
// up front for friendly errors and enforced again by the transactional
// decrement; any shortfall rejects the whole order.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.BadInput("order items are required")
	}

	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %s not found", userID)
	}

	var totalAmount float64
	items := make([]models.OrderItem, 0, len(req.Items))
	orderID := uuid.NewString()

	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, apperr.BadInput("invalid item data")
		}

		product, err := s.DB.GetProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, apperr.Internal("failed to load product", err)
		}
		if product == nil || product.Type != models.TypeFixedPrice {
			return nil, apperr.NotFound("product %s not found", item.ProductID)
		}
		if product.Status != models.ProductActive {
			return nil, apperr.Conflict("product %s is not available", product.Name)
		}
		if product.StockQuantity < item.Quantity {
			return nil, apperr.Conflict("insufficient stock for %s", product.Name)
		}

		lineTotal := product.Price * float64(item.Quantity)
		totalAmount += lineTotal

		items = append(items, models.OrderItem{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: lineTotal,
		})
	}

	order := &models.Order{
		ID:              orderID,
		UserID:          userID,
		TotalAmount:     totalAmount,
		Status:          models.OrderPendingPayment,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		CreatedAt:       time.Now(),
	}

	if err := s.DB.CreateOrderWithItems(ctx, order, items); err != nil {
		return nil, err
	}
	order.Items = items

	s.logger.LogOrder("CREATE", order.ID, fmt.Sprintf("User %s, total %.2f", userID, totalAmount))

	// Committed. The payment session is a best-effort follow-up: if it
	// fails, the order stands and the customer pays through a retried
	// session later.
	s.createPaymentSession(ctx, order, user)

	return order, nil
}

func (s *OrderService) createPaymentSession(ctx context.Context, order *models.Order, user *models.User) {
	if !s.Gateway.IsConfigured() {
		s.logger.Info("PAYMENT", "Gateway not configured, skipping payment session")
		return
	}

	session, err := s.Gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:         order.ID,
		Amount:          order.TotalAmount,
		CustomerName:    user.FullName(),
		CustomerEmail:   user.Email,
		CustomerAddress: order.ShippingAddress,
	})
	if err != nil {
		s.logger.Warn("PAYMENT", fmt.Sprintf("Payment session for order %s failed: %v", order.ID, err))
		return
	}

	paymentID := strconv.FormatInt(session.PaymentID, 10)
	if err := s.DB.SetOrderPayment(ctx, order.ID, paymentID, session.PaymentURL); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to attach payment info to order %s: %v", order.ID, err))
		return
	}
	order.PaymentID = paymentID
	order.PaymentURL = session.PaymentURL

	if err := s.Payments.SavePayment(&models.Payment{
		PaymentID:   paymentID,
		OrderID:     order.ID,
		InvoiceID:   session.InvoiceID,
		Status:      models.OrderPendingPayment,
		Amount:      order.TotalAmount,
		URL:         session.PaymentURL,
		CreatedDate: time.Now(),
	}); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to record payment session for order %s: %v", order.ID, err))
	}
}

// GetOrder returns an order to its owner.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	if order == nil {
		return nil, apperr.NotFound("order %s not found", orderID)
	}
	if order.UserID != userID {
		return nil, apperr.Forbidden("order belongs to another user")
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.DB.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}
	return orders, nil
}

// ApplyPaymentStatus moves an order to the status reported by the gateway.
// Re-applying the same final status is harmless; the write is idempotent in
// effect. Called by the webhook handler and the manual refresh path.
func (s *OrderService) ApplyPaymentStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	if order == nil {
		return nil, apperr.NotFound("order %s not found", orderID)
	}

	s.logger.LogOrder("STATUS", orderID, fmt.Sprintf("%s -> %s", order.Status, status))

	if err := s.DB.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return nil, apperr.Internal("failed to update order status", err)
	}
	order.Status = status

	if err := s.Payments.UpdatePaymentStatus(orderID, status); err != nil {
		// Audit row only; the order already moved.
		s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to update payment record for order %s: %v", orderID, err))
	}

	if !s.Notifier.Notify(ctx, order.UserID, notify.PaymentStatus(orderID, string(status), order.TotalAmount)) {
		s.logger.Warn("NOTIFY", fmt.Sprintf("Payment status notification for user %s was not delivered", order.UserID))
	}

	return order, nil
}

// RefreshPayment pulls the gateway's current status for the order's invoice.
// Covers the case where a webhook never arrived.
func (s *OrderService) RefreshPayment(ctx context.Context, orderID, userID string) (*models.Order, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	record, err := s.Payments.GetPaymentByOrderID(orderID)
	if err != nil {
		return nil, apperr.NotFound("no payment session for order %s", orderID)
	}

	invoiceStatus, err := s.Gateway.GetStatus(ctx, record.InvoiceID)
	if err != nil {
		return nil, err
	}

	return s.ApplyPaymentStatus(ctx, orderID, payment.MapGatewayStatus(invoiceStatus))
}

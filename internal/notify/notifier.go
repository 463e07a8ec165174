package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Notification is the payload handed to the delivery layer. Data keys are
// flat strings so any push transport can carry them unchanged.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier delivers a notification to one user. Delivery is best-effort:
// implementations report success as a bool and never return an error, so
// callers cannot accidentally fail business operations on a missed push.
type Notifier interface {
	Notify(ctx context.Context, userID string, n Notification) bool
}

// Discard drops every notification. Used when the broker is disabled.
type Discard struct{}

func (Discard) Notify(ctx context.Context, userID string, n Notification) bool {
	return true
}

// Outbid tells the displaced leader someone bid higher.
func Outbid(productID, productName string, newAmount float64) Notification {
	return Notification{
		Title: "You've been outbid!",
		Body: fmt.Sprintf("Someone placed a higher bid of $%.2f on %q. Place a new bid to stay in the auction!",
			newAmount, productName),
		Data: map[string]string{
			"type":      "outbid",
			"productId": productID,
			"amount":    strconv.FormatFloat(newAmount, 'f', 2, 64),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// AuctionWon tells the winner to complete payment.
func AuctionWon(productID, productName, orderID string, winningAmount float64) Notification {
	return Notification{
		Title: "Congratulations! You won the auction!",
		Body: fmt.Sprintf("You won %q with a bid of $%.2f. Please complete your payment.",
			productName, winningAmount),
		Data: map[string]string{
			"type":      "auction_won",
			"productId": productID,
			"orderId":   orderID,
			"amount":    strconv.FormatFloat(winningAmount, 'f', 2, 64),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// PaymentStatus tells the order owner about a reconciled payment state.
func PaymentStatus(orderID, status string, amount float64) Notification {
	var title, body string
	switch status {
	case "paid":
		title = "Payment successful!"
		body = fmt.Sprintf("Your payment for order %s has been confirmed. Your order is being processed.", orderID)
	case "failed":
		title = "Payment failed"
		body = fmt.Sprintf("Your payment for order %s failed. Please try again or contact support.", orderID)
	case "pending_payment":
		title = "Payment pending"
		body = fmt.Sprintf("Your payment for order %s is being processed. We'll notify you once it's confirmed.", orderID)
	default:
		title = "Payment update"
		body = fmt.Sprintf("Your payment status for order %s is now: %s", orderID, status)
	}

	return Notification{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":      "payment_status_update",
			"orderId":   orderID,
			"status":    status,
			"amount":    strconv.FormatFloat(amount, 'f', 2, 64),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

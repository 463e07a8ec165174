package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"auctionhouse/internal/apperr"
	"auctionhouse/internal/config"
	"auctionhouse/internal/logger"
)

// Client speaks the gateway's invoice API. Calls are bounded by the
// configured timeout and never retried; callers decide whether a failure is
// fatal to their operation.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

type SessionRequest struct {
	OrderID         string
	Amount          float64
	Currency        string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
}

type SessionResponse struct {
	InvoiceID       int64  `json:"invoice_id"`
	PaymentID       int64  `json:"payment_id"`
	PaymentURL      string `json:"payment_url"`
	PaymentMethod   string `json:"payment_method"`
	IsDirectPayment bool   `json:"is_direct_payment"`
}

// Wire types for the gateway protocol. Field names are the gateway's, not
// ours.
type initiatePaymentRequest struct {
	InvoiceAmount     float64         `json:"InvoiceAmount"`
	CurrencyIso       string          `json:"CurrencyIso"`
	CustomerName      string          `json:"CustomerName"`
	CustomerEmail     string          `json:"CustomerEmail"`
	Language          string          `json:"Language"`
	CustomerReference string          `json:"CustomerReference"`
	UserDefinedField  string          `json:"UserDefinedField"`
	CustomerAddress   customerAddress `json:"CustomerAddress"`
	InvoiceItems      []invoiceItem   `json:"InvoiceItems"`
}

type customerAddress struct {
	Address string `json:"Address"`
}

type invoiceItem struct {
	ItemName  string  `json:"ItemName"`
	Quantity  int     `json:"Quantity"`
	UnitPrice float64 `json:"UnitPrice"`
}

type gatewayResponse struct {
	IsSuccess bool   `json:"IsSuccess"`
	Message   string `json:"Message"`
	Data      struct {
		InvoiceID       int64  `json:"InvoiceId"`
		InvoiceStatus   string `json:"InvoiceStatus"`
		IsDirectPayment bool   `json:"IsDirectPayment"`
		PaymentURL      string `json:"PaymentURL"`
		PaymentID       int64  `json:"PaymentId"`
		PaymentMethod   string `json:"PaymentMethod"`
	} `json:"Data"`
}

func NewClient(cfg config.PaymentConfig, log *logger.Logger) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.APIKey == "" {
		log.Warn("PAYMENT", "Gateway API key is not configured. Payments will not work.")
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// CreateSession asks the gateway for a hosted payment page for the order.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	if !c.IsConfigured() {
		return nil, apperr.InvalidOperation("payment gateway is not configured - PAYMENT_API_KEY is missing")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	payload := initiatePaymentRequest{
		InvoiceAmount:     req.Amount,
		CurrencyIso:       currency,
		CustomerName:      req.CustomerName,
		CustomerEmail:     req.CustomerEmail,
		Language:          "EN",
		CustomerReference: req.OrderID,
		UserDefinedField:  req.OrderID,
		CustomerAddress:   customerAddress{Address: req.CustomerAddress},
		InvoiceItems: []invoiceItem{
			{ItemName: "Order " + req.OrderID, Quantity: 1, UnitPrice: req.Amount},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Internal("failed to marshal payment request", err)
	}

	url := c.baseURL + "/v2/InitiatePayment"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("failed to build payment request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Error("PAYMENT", fmt.Sprintf("Gateway request failed for order %s: %v", req.OrderID, err))
		return nil, apperr.Transient("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	var gw gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gw); err != nil {
		return nil, apperr.Wrap(apperr.KindBadInput, "invalid gateway response", err)
	}

	if resp.StatusCode != http.StatusOK || !gw.IsSuccess {
		msg := gw.Message
		if msg == "" {
			msg = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		}
		c.log.Error("PAYMENT", fmt.Sprintf("Gateway rejected session for order %s: %s", req.OrderID, msg))
		return nil, apperr.BadInput("payment session creation failed: %s", msg)
	}

	c.log.LogPayment("SESSION", req.OrderID,
		fmt.Sprintf("Created invoice %d, payment URL ready", gw.Data.InvoiceID))

	return &SessionResponse{
		InvoiceID:       gw.Data.InvoiceID,
		PaymentID:       gw.Data.PaymentID,
		PaymentURL:      gw.Data.PaymentURL,
		PaymentMethod:   gw.Data.PaymentMethod,
		IsDirectPayment: gw.Data.IsDirectPayment,
	}, nil
}

// GetStatus pulls the gateway's current status for an invoice. Used by the
// manual refresh endpoint when a webhook was missed.
func (c *Client) GetStatus(ctx context.Context, invoiceID int64) (string, error) {
	if !c.IsConfigured() {
		return "", apperr.InvalidOperation("payment gateway is not configured")
	}

	url := c.baseURL + "/v2/getPaymentStatus?Key=" + strconv.FormatInt(invoiceID, 10) + "&KeyType=InvoiceId"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperr.Internal("failed to build status request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apperr.Transient("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	var gw gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gw); err != nil {
		return "", apperr.Wrap(apperr.KindBadInput, "invalid gateway response", err)
	}

	if resp.StatusCode != http.StatusOK || !gw.IsSuccess {
		return "", apperr.BadInput("failed to get payment status: %s", gw.Message)
	}

	return gw.Data.InvoiceStatus, nil
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"pottery-booking-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CashfreeConfig holds Cashfree API credentials
type CashfreeConfig struct {
	AppID      string
	SecretKey  string
	BaseURL    string
	APIVersion string
}

// Cashfree adapter. Payment status is confirmed against the orders API
// rather than trusting the callback payload.
type Cashfree struct {
	cfg    CashfreeConfig
	client *http.Client
	logger *zap.Logger
}

// NewCashfree creates a Cashfree gateway adapter
func NewCashfree(cfg CashfreeConfig) *Cashfree {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-08-01"
	}
	return &Cashfree{
		cfg:    cfg,
		client: newHTTPClient(),
		logger: util.GetLogger(),
	}
}

func (c *Cashfree) setAuth(req *http.Request) {
	req.Header.Set("x-client-id", c.cfg.AppID)
	req.Header.Set("x-client-secret", c.cfg.SecretKey)
	req.Header.Set("x-api-version", c.cfg.APIVersion)
	req.Header.Set("Content-Type", "application/json")
}

type cashfreeOrder struct {
	CFOrderID   string `json:"cf_order_id"`
	OrderStatus string `json:"order_status"`
	PaymentLink string `json:"payment_link"`
}

// CreatePayment creates a Cashfree order and returns its hosted payment link
func (c *Cashfree) CreatePayment(ctx context.Context, amount decimal.Decimal, orderID, customerEmail, customerPhone string) (*Result, error) {
	body, err := json.Marshal(map[string]interface{}{
		"order_id":       orderID,
		"order_amount":   amount,
		"order_currency": "INR",
		"customer_details": map[string]string{
			"customer_id":    uuid.New().String(),
			"customer_email": customerEmail,
			"customer_phone": customerPhone,
		},
	})
	if err != nil {
		return nil, gatewayError("cashfree", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/pg/orders", bytes.NewReader(body))
	if err != nil {
		return nil, gatewayError("cashfree", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, gatewayError("cashfree", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, gatewayError("cashfree", fmt.Errorf("create order returned %d: %s", resp.StatusCode, raw))
	}

	var order cashfreeOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, gatewayError("cashfree", err)
	}

	c.logger.Info("Cashfree order created",
		zap.String("order_id", orderID),
		zap.String("transaction_id", order.CFOrderID))

	return &Result{
		TransactionID: order.CFOrderID,
		PaymentURL:    order.PaymentLink,
		RawResponse:   string(raw),
	}, nil
}

// VerifyPayment confirms the order reached PAID status with Cashfree. The
// callback signature is opaque to us here; the status lookup is the source
// of truth.
func (c *Cashfree) VerifyPayment(ctx context.Context, transactionID, signature string) (*Result, error) {
	url := fmt.Sprintf("%s/pg/orders/%s", c.cfg.BaseURL, transactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, gatewayError("cashfree", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, gatewayError("cashfree", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, gatewayError("cashfree", fmt.Errorf("order lookup returned %d: %s", resp.StatusCode, raw))
	}

	var order cashfreeOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, gatewayError("cashfree", err)
	}

	if order.OrderStatus != "PAID" {
		return nil, gatewayError("cashfree", fmt.Errorf("order %s status is %s", transactionID, order.OrderStatus))
	}

	c.logger.Info("Cashfree payment verified", zap.String("transaction_id", transactionID))

	return &Result{
		TransactionID: transactionID,
		RawResponse:   string(raw),
	}, nil
}

// RefundPayment issues a refund for a paid order
func (c *Cashfree) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (*Result, error) {
	refundID := "RF_" + uuid.New().String()
	body, err := json.Marshal(map[string]interface{}{
		"refund_amount": amount,
		"refund_id":     refundID,
	})
	if err != nil {
		return nil, gatewayError("cashfree", err)
	}

	url := fmt.Sprintf("%s/pg/orders/%s/refunds", c.cfg.BaseURL, transactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, gatewayError("cashfree", err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, gatewayError("cashfree", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, gatewayError("cashfree", fmt.Errorf("refund returned %d: %s", resp.StatusCode, raw))
	}

	c.logger.Info("Cashfree refund processed",
		zap.String("transaction_id", transactionID),
		zap.String("refund_id", refundID))

	return &Result{
		TransactionID: refundID,
		RawResponse:   string(raw),
	}, nil
}

package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"pottery-booking-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RazorpayConfig holds Razorpay API credentials
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
}

// Razorpay adapter. Orders are created server-side; callback authenticity is
// checked locally with the HMAC signature Razorpay sends alongside the
// transaction id.
type Razorpay struct {
	cfg    RazorpayConfig
	client *http.Client
	logger *zap.Logger
}

// NewRazorpay creates a Razorpay gateway adapter
func NewRazorpay(cfg RazorpayConfig) *Razorpay {
	return &Razorpay{
		cfg:    cfg,
		client: newHTTPClient(),
		logger: util.GetLogger(),
	}
}

type razorpayOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreatePayment creates a Razorpay order for the given booking number
func (r *Razorpay) CreatePayment(ctx context.Context, amount decimal.Decimal, orderID, customerEmail, customerPhone string) (*Result, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   amount.Mul(decimal.NewFromInt(100)).IntPart(), // paise
		"currency": "INR",
		"receipt":  orderID,
		"notes": map[string]string{
			"email": customerEmail,
			"phone": customerPhone,
		},
	})
	if err != nil {
		return nil, gatewayError("razorpay", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, gatewayError("razorpay", err)
	}
	req.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, gatewayError("razorpay", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, gatewayError("razorpay", fmt.Errorf("create order returned %d: %s", resp.StatusCode, raw))
	}

	var order razorpayOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, gatewayError("razorpay", err)
	}

	r.logger.Info("Razorpay order created",
		zap.String("order_id", orderID),
		zap.String("transaction_id", order.ID))

	return &Result{
		TransactionID: order.ID,
		RawResponse:   string(raw),
	}, nil
}

// VerifyPayment checks the callback signature: HMAC-SHA256 of the transaction
// id keyed with the API secret, hex encoded.
func (r *Razorpay) VerifyPayment(ctx context.Context, transactionID, signature string) (*Result, error) {
	mac := hmac.New(sha256.New, []byte(r.cfg.KeySecret))
	mac.Write([]byte(transactionID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, gatewayError("razorpay", fmt.Errorf("signature mismatch for transaction %s", transactionID))
	}

	r.logger.Info("Razorpay payment verified", zap.String("transaction_id", transactionID))

	return &Result{
		TransactionID: transactionID,
		RawResponse:   `{"status":"captured"}`,
	}, nil
}

// RefundPayment issues a refund against a captured payment
func (r *Razorpay) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (*Result, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount": amount.Mul(decimal.NewFromInt(100)).IntPart(),
	})
	if err != nil {
		return nil, gatewayError("razorpay", err)
	}

	url := fmt.Sprintf("%s/v1/payments/%s/refund", r.cfg.BaseURL, transactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, gatewayError("razorpay", err)
	}
	req.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, gatewayError("razorpay", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, gatewayError("razorpay", fmt.Errorf("refund returned %d: %s", resp.StatusCode, raw))
	}

	var refund razorpayOrder
	if err := json.Unmarshal(raw, &refund); err != nil {
		return nil, gatewayError("razorpay", err)
	}

	r.logger.Info("Razorpay refund processed",
		zap.String("transaction_id", transactionID),
		zap.String("refund_id", refund.ID))

	return &Result{
		TransactionID: refund.ID,
		RawResponse:   string(raw),
	}, nil
}

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pottery-booking-service/internal/models"

	"github.com/shopspring/decimal"
)

// Result is the uniform outcome of any gateway operation, regardless of
// provider.
type Result struct {
	TransactionID string
	PaymentURL    string
	RawResponse   string
}

// Gateway is the capability interface implemented by one adapter per
// provider. Adapters encapsulate provider request/response formats and
// authentication; the orchestrator never sees any of it.
type Gateway interface {
	CreatePayment(ctx context.Context, amount decimal.Decimal, orderID, customerEmail, customerPhone string) (*Result, error)
	VerifyPayment(ctx context.Context, transactionID, signature string) (*Result, error)
	RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (*Result, error)
}

// Factory resolves adapters from the gateway selector. Adding a provider
// means registering a new adapter, never branching in the orchestrator.
type Factory struct {
	gateways map[string]Gateway
}

// NewFactory creates an empty gateway registry
func NewFactory() *Factory {
	return &Factory{gateways: make(map[string]Gateway)}
}

// Register adds an adapter under a gateway selector
func (f *Factory) Register(name string, gw Gateway) {
	f.gateways[name] = gw
}

// Resolve returns the adapter for a selector. An unsupported selector is a
// configuration error, not a runtime-recoverable one.
func (f *Factory) Resolve(name string) (Gateway, error) {
	gw, ok := f.gateways[name]
	if !ok {
		return nil, fmt.Errorf("payment gateway %s is not supported", name)
	}
	return gw, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func gatewayError(provider string, err error) error {
	return fmt.Errorf("%s: %v: %w", provider, err, models.ErrGatewayFailure)
}

package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/smallbiznis/fieldops/internal/config"
)

type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// GatewayOrder is the provider side order a customer pays against.
type GatewayOrder struct {
	ID           string
	Amount       int64
	Currency     string
	Status       string
	ClientSecret string
	PublicKey    string
}

type GatewayPayment struct {
	ID        string
	OrderRef  string
	State     GatewayState
	Method    string
	Amount    int64
	Currency  string
	CreatedAt time.Time
	Raw       map[string]any
}

// Provider talks to one payment gateway. Every response is untrusted and is
// re-checked by the caller against the stored payment.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (GatewayOrder, error)
	VerifySignature(orderRef, paymentID, signature string) bool
	FetchPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
	// ParseWebhook verifies the delivery signature and returns the event.
	// Events the settlement flow does not care about return ErrEventIgnored.
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*PaymentEvent, error)
}

// ProviderFactory builds a provider from configuration. It returns
// ErrProviderNotConfigured when the credentials are absent.
type ProviderFactory interface {
	Provider() string
	New(cfg config.PaymentConfig) (Provider, error)
}

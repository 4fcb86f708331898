package stripe

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/fieldops/internal/config"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const providerName = "stripe"

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) New(cfg config.PaymentConfig) (paymentdomain.Provider, error) {
	key := strings.TrimSpace(cfg.StripeSecretKey)
	if key == "" {
		return nil, paymentdomain.ErrProviderNotConfigured
	}
	sc := client.New(key, nil)
	return newAdapter(sc.PaymentIntents, cfg.StripeWebhookSecret), nil
}

// Adapter settles online payments through PaymentIntents. The intent id is
// both the gateway order reference and the payment id.
type Adapter struct {
	intents       intentAPI
	webhookSecret string
}

func newAdapter(intents intentAPI, webhookSecret string) *Adapter {
	return &Adapter{intents: intents, webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Name() string { return providerName }

func (a *Adapter) CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (paymentdomain.GatewayOrder, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Receipt),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}
	if key := req.Notes["payment_id"]; key != "" {
		params.SetIdempotencyKey("payment-" + key)
	}

	intent, err := a.intents.New(params)
	if err != nil {
		return paymentdomain.GatewayOrder{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return paymentdomain.GatewayOrder{
		ID:           intent.ID,
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Status:       string(intent.Status),
		ClientSecret: intent.ClientSecret,
	}, nil
}

// VerifySignature has no client signature to check for Stripe; the client
// echoes the intent id and FetchPayment supplies the authoritative state.
func (a *Adapter) VerifySignature(orderRef, paymentID, _ string) bool {
	if orderRef == "" || paymentID == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(orderRef), []byte(paymentID)) == 1
}

func (a *Adapter) FetchPayment(ctx context.Context, paymentID string) (paymentdomain.GatewayPayment, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := a.intents.Get(paymentID, params)
	if err != nil {
		return paymentdomain.GatewayPayment{}, fmt.Errorf("stripe: get payment intent: %w", err)
	}
	return toGatewayPayment(intent), nil
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.PaymentEvent, error) {
	if a.webhookSecret == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get("Stripe-Signature"), a.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, paymentdomain.ErrInvalidSignature
	}

	var state paymentdomain.GatewayState
	eventType := paymentdomain.EventTypePaymentSucceeded
	switch string(event.Type) {
	case "payment_intent.succeeded":
		state = paymentdomain.GatewayCaptured
	case "payment_intent.amount_capturable_updated":
		state = paymentdomain.GatewayAuthorized
	case "payment_intent.payment_failed", "payment_intent.canceled":
		state, eventType = paymentdomain.GatewayFailed, paymentdomain.EventTypePaymentFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
	if event.Data == nil {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	gp := toGatewayPayment(&intent)
	return &paymentdomain.PaymentEvent{
		Provider:          providerName,
		ProviderEventID:   event.ID,
		Type:              eventType,
		OrderRef:          intent.ID,
		ProviderPaymentID: intent.ID,
		State:             state,
		Amount:            gp.Amount,
		Currency:          gp.Currency,
		OccurredAt:        timestamp(event.Created),
		RawPayload:        payload,
	}, nil
}

func toGatewayPayment(intent *stripe.PaymentIntent) paymentdomain.GatewayPayment {
	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}
	method := "card"
	if len(intent.PaymentMethodTypes) > 0 {
		method = intent.PaymentMethodTypes[0]
	}
	return paymentdomain.GatewayPayment{
		ID:        intent.ID,
		OrderRef:  intent.ID,
		State:     state(intent.Status),
		Method:    method,
		Amount:    amount,
		Currency:  strings.ToUpper(string(intent.Currency)),
		CreatedAt: timestamp(intent.Created),
		Raw: map[string]any{
			"status":   string(intent.Status),
			"livemode": intent.Livemode,
		},
	}
}

func state(s stripe.PaymentIntentStatus) paymentdomain.GatewayState {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return paymentdomain.GatewayCaptured
	case stripe.PaymentIntentStatusRequiresCapture:
		return paymentdomain.GatewayAuthorized
	case stripe.PaymentIntentStatusCanceled:
		return paymentdomain.GatewayFailed
	}
	return paymentdomain.GatewayPending
}

func timestamp(unix int64) time.Time {
	if unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

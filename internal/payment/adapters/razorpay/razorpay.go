package razorpay

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
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/fieldops/internal/config"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
)

const (
	providerName    = "razorpay"
	defaultBaseURL  = "https://api.razorpay.com/v1"
	maxReceiptChars = 40
)

type Factory struct {
	client *http.Client
}

func NewFactory() *Factory {
	return &Factory{client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) New(cfg config.PaymentConfig) (paymentdomain.Provider, error) {
	keyID := strings.TrimSpace(cfg.RazorpayKeyID)
	secret := strings.TrimSpace(cfg.RazorpayKeySecret)
	if keyID == "" || secret == "" {
		return nil, paymentdomain.ErrProviderNotConfigured
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.RazorpayBaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		client:        f.client,
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     secret,
		webhookSecret: strings.TrimSpace(cfg.RazorpayWebhookSecret),
	}, nil
}

type Adapter struct {
	client        *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
}

func (a *Adapter) Name() string { return providerName }

type orderEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
}

type paymentEntity struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	Status    string         `json:"status"`
	Method    string         `json:"method"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Captured  bool           `json:"captured"`
	CreatedAt int64          `json:"created_at"`
	Notes     map[string]any `json:"notes"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (a *Adapter) CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (paymentdomain.GatewayOrder, error) {
	receipt := req.Receipt
	if len(receipt) > maxReceiptChars {
		receipt = receipt[:maxReceiptChars]
	}
	body := map[string]any{
		"amount":   req.Amount,
		"currency": strings.ToUpper(req.Currency),
		"receipt":  receipt,
	}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}

	var order orderEntity
	if err := a.do(ctx, http.MethodPost, "/orders", body, &order); err != nil {
		return paymentdomain.GatewayOrder{}, err
	}
	if strings.TrimSpace(order.ID) == "" {
		return paymentdomain.GatewayOrder{}, fmt.Errorf("razorpay: create order: empty order id")
	}
	return paymentdomain.GatewayOrder{
		ID:        order.ID,
		Amount:    order.Amount,
		Currency:  strings.ToUpper(order.Currency),
		Status:    order.Status,
		PublicKey: a.keyID,
	}, nil
}

// VerifySignature checks the checkout signature: HMAC-SHA256 of
// "<order_id>|<payment_id>" keyed with the API secret.
func (a *Adapter) VerifySignature(orderRef, paymentID, signature string) bool {
	if orderRef == "" || paymentID == "" || signature == "" {
		return false
	}
	return validHMAC(a.keySecret, []byte(orderRef+"|"+paymentID), signature)
}

func (a *Adapter) FetchPayment(ctx context.Context, paymentID string) (paymentdomain.GatewayPayment, error) {
	var p paymentEntity
	if err := a.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &p); err != nil {
		return paymentdomain.GatewayPayment{}, err
	}
	return toGatewayPayment(p), nil
}

type webhookBody struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity orderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.PaymentEvent, error) {
	if a.webhookSecret == "" || !validHMAC(a.webhookSecret, payload, headers.Get("X-Razorpay-Signature")) {
		return nil, paymentdomain.ErrInvalidSignature
	}

	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var state paymentdomain.GatewayState
	eventType := paymentdomain.EventTypePaymentSucceeded
	switch body.Event {
	case "payment.captured", "order.paid":
		state = paymentdomain.GatewayCaptured
	case "payment.authorized":
		state = paymentdomain.GatewayAuthorized
	case "payment.failed":
		state, eventType = paymentdomain.GatewayFailed, paymentdomain.EventTypePaymentFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	entity := body.Payload.Payment.Entity
	orderRef := firstNonEmpty(entity.OrderID, body.Payload.Order.Entity.ID)
	if entity.ID == "" || orderRef == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	eventID := strings.TrimSpace(headers.Get("X-Razorpay-Event-Id"))
	if eventID == "" {
		eventID = body.Event + ":" + entity.ID
	}

	return &paymentdomain.PaymentEvent{
		Provider:          providerName,
		ProviderEventID:   eventID,
		Type:              eventType,
		OrderRef:          orderRef,
		ProviderPaymentID: entity.ID,
		State:             state,
		Amount:            entity.Amount,
		Currency:          strings.ToUpper(entity.Currency),
		OccurredAt:        timestamp(body.CreatedAt),
		RawPayload:        payload,
	}, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(a.keyID, a.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		return fmt.Errorf("razorpay: %s %s: status %d %s: %w", method, path, resp.StatusCode, apiErr.Error.Description, paymentdomain.ErrGateway)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("razorpay: decode response: %w", err)
	}
	return nil
}

func toGatewayPayment(p paymentEntity) paymentdomain.GatewayPayment {
	raw := map[string]any{"status": p.Status, "method": p.Method}
	if len(p.Notes) > 0 {
		raw["notes"] = p.Notes
	}
	return paymentdomain.GatewayPayment{
		ID:        p.ID,
		OrderRef:  p.OrderID,
		State:     state(p.Status, p.Captured),
		Method:    p.Method,
		Amount:    p.Amount,
		Currency:  strings.ToUpper(p.Currency),
		CreatedAt: timestamp(p.CreatedAt),
		Raw:       raw,
	}
}

func state(status string, captured bool) paymentdomain.GatewayState {
	switch status {
	case "captured":
		return paymentdomain.GatewayCaptured
	case "authorized":
		if captured {
			return paymentdomain.GatewayCaptured
		}
		return paymentdomain.GatewayAuthorized
	case "failed", "refunded":
		return paymentdomain.GatewayFailed
	}
	return paymentdomain.GatewayPending
}

func validHMAC(secret string, message []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func timestamp(unix int64) time.Time {
	if unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

package webhook

import (
	"context"
	"net/http"
	"testing"

	"github.com/smallbiznis/fieldops/internal/payment/adapters"
	"github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	domain.Provider
	event *domain.PaymentEvent
	err   error
}

func (p *stubProvider) Name() string { return "razorpay" }

func (p *stubProvider) ParseWebhook(context.Context, []byte, http.Header) (*domain.PaymentEvent, error) {
	return p.event, p.err
}

type recordingPayments struct {
	domain.Service
	events []*domain.PaymentEvent
}

func (r *recordingPayments) ProcessEvent(_ context.Context, event *domain.PaymentEvent) error {
	r.events = append(r.events, event)
	return nil
}

func newTestService(provider *stubProvider) (*Service, *recordingPayments) {
	payments := &recordingPayments{}
	return NewService(Params{
		Log:      zap.NewNop(),
		Payments: payments,
		Adapters: adapters.NewStaticRegistry(provider),
	}), payments
}

func TestHandleWebhookForwardsParsedEvent(t *testing.T) {
	provider := &stubProvider{event: &domain.PaymentEvent{ProviderEventID: "evt_1", OrderRef: "order_1"}}
	svc, payments := newTestService(provider)

	payload := []byte(`{"event":"payment.captured"}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), " Razorpay ", payload, http.Header{}))

	require.Len(t, payments.events, 1)
	assert.Equal(t, "razorpay", payments.events[0].Provider)
	assert.Equal(t, payload, payments.events[0].RawPayload)
}

func TestHandleWebhookRejections(t *testing.T) {
	provider := &stubProvider{}
	svc, payments := newTestService(provider)
	ctx := context.Background()

	assert.ErrorIs(t, svc.HandleWebhook(ctx, "", []byte(`{}`), nil), domain.ErrInvalidProvider)
	assert.ErrorIs(t, svc.HandleWebhook(ctx, "paypal", []byte(`{}`), nil), domain.ErrProviderNotFound)
	assert.ErrorIs(t, svc.HandleWebhook(ctx, "razorpay", []byte(`not json`), nil), domain.ErrInvalidPayload)

	provider.err = domain.ErrInvalidSignature
	assert.ErrorIs(t, svc.HandleWebhook(ctx, "razorpay", []byte(`{}`), nil), domain.ErrInvalidSignature)

	provider.err = domain.ErrEventIgnored
	assert.NoError(t, svc.HandleWebhook(ctx, "razorpay", []byte(`{}`), nil))

	assert.Empty(t, payments.events)
}

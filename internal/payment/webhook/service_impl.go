package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/smallbiznis/fieldops/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Payments paymentdomain.Service
	Adapters *adapters.Registry
}

// Service verifies provider deliveries and hands the parsed events to the
// payment service.
type Service struct {
	log      *zap.Logger
	payments paymentdomain.Service
	adapters *adapters.Registry
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("payment.webhook"),
		payments: p.Payments,
		adapters: p.Adapters,
	}
}

func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	adapter, err := s.adapters.Get(provider)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	event, err := adapter.ParseWebhook(ctx, payload, headers)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Debug("payment webhook ignored", zap.String("provider", provider))
			return nil
		}
		if errors.Is(err, paymentdomain.ErrInvalidSignature) {
			s.log.Warn("payment webhook signature rejected", zap.String("provider", provider))
		}
		return err
	}

	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}
	return s.payments.ProcessEvent(ctx, event)
}

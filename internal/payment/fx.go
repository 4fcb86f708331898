package payment

import (
	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/payment/adapters"
	"github.com/smallbiznis/fieldops/internal/payment/adapters/razorpay"
	"github.com/smallbiznis/fieldops/internal/payment/adapters/stripe"
	"github.com/smallbiznis/fieldops/internal/payment/repository"
	paymentservice "github.com/smallbiznis/fieldops/internal/payment/service"
	"github.com/smallbiznis/fieldops/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config, log *zap.Logger) (*adapters.Registry, error) {
		return adapters.NewRegistry(cfg.Payment, log,
			razorpay.NewFactory(),
			stripe.NewFactory(),
		)
	}),
	fx.Provide(paymentservice.New),
	fx.Provide(webhook.NewService),
)

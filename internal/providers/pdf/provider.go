package pdf

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Provider interface {
	Receipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

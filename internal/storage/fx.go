package storage

import (
	"context"

	"github.com/smallbiznis/fieldops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(New),
)

func New(cfg config.Config, log *zap.Logger) (Storage, error) {
	if !cfg.S3.Enabled() {
		log.Named("storage").Info("s3 bucket not configured, media uploads disabled")
		return disabled{}, nil
	}
	return NewS3(context.Background(), cfg.S3)
}

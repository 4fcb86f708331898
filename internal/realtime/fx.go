package realtime

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("realtime",
	fx.Provide(newHub),
	fx.Provide(func(h *Hub) Broadcaster { return h }),
	fx.Invoke(startRelay),
)

func newHub(m *metrics.Metrics) *Hub {
	return NewHub(WithDropRecorder(m))
}

func startRelay(lc fx.Lifecycle, cfg config.Config, client *redis.Client, hub *Hub, log *zap.Logger) {
	if client == nil || !cfg.Redis.Relay {
		return
	}
	relay := NewRedisRelay(client, hub, log)
	lc.Append(fx.Hook{
		OnStart: relay.Start,
		OnStop:  relay.Stop,
	})
}

package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayChannel = "fieldops:realtime"

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay mirrors hub events to every instance subscribed to the same
// Redis channel. Each instance skips envelopes it published itself.
type RedisRelay struct {
	client   *redis.Client
	hub      *Hub
	log      *zap.Logger
	instance string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisRelay(client *redis.Client, hub *Hub, log *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:   client,
		hub:      hub,
		log:      log.Named("realtime.relay"),
		instance: uuid.NewString(),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, event Event) {
	data, err := json.Marshal(envelope{Origin: r.instance, Event: event})
	if err != nil {
		return
	}
	if err := r.client.Publish(context.WithoutCancel(ctx), relayChannel, data).Err(); err != nil {
		r.log.Warn("publish failed", zap.String("stream", event.Stream), zap.Error(err))
	}
}

// Start subscribes to the relay channel and attaches the relay to the hub.
func (r *RedisRelay) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, relayChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.hub.SetPublisher(r)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				r.handle(runCtx, msg.Payload)
			}
		}
	}()
	return nil
}

func (r *RedisRelay) Stop(context.Context) error {
	r.hub.SetPublisher(nil)
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	return nil
}

func (r *RedisRelay) handle(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Debug("malformed relay payload", zap.Error(err))
		return
	}
	if env.Origin == r.instance {
		return
	}
	r.hub.Deliver(ctx, env.Event)
}

package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fieldops/internal/config"
)

const publicOrderKeyPrefix = "fieldops:orders:public:"

// PublicOrderLimiter throttles the unauthenticated order channel per client address.
type PublicOrderLimiter struct {
	bucket *bucket
	ops    *config.OperationsConfigHolder
}

func NewPublicOrderLimiter(client *redis.Client, ops *config.OperationsConfigHolder) *PublicOrderLimiter {
	return &PublicOrderLimiter{
		bucket: newBucket(client),
		ops:    ops,
	}
}

func (l *PublicOrderLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow reports whether clientKey may create another public order now.
// Without Redis every request is allowed.
func (l *PublicOrderLimiter) Allow(ctx context.Context, clientKey string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	rule := config.DefaultOperationsConfig().PublicOrderRate
	if l.ops != nil {
		rule = l.ops.Get().PublicOrderRate
	}
	return l.bucket.take(ctx, publicOrderKeyPrefix+strings.TrimSpace(clientKey), int(rule.Capacity), int(rule.RefillPerMin))
}

package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tokens are stored in thousandths so the script never hands floats back
// through the Redis protocol.
const bucketScript = `
local capacity = tonumber(ARGV[1]) * 1000
local refill_per_ms = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "milli", "at")
local milli = tonumber(state[1])
local at = tonumber(state[2])
if milli == nil then
  milli = capacity
else
  local elapsed = math.max(0, now - at)
  milli = math.min(capacity, milli + math.floor(elapsed * refill_per_ms))
end

local allowed = 0
local wait_ms = 0
if milli >= 1000 then
  allowed = 1
  milli = milli - 1000
elseif refill_per_ms > 0 then
  wait_ms = math.ceil((1000 - milli) / refill_per_ms)
end

redis.call("HSET", KEYS[1], "milli", milli, "at", now)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {allowed, milli, wait_ms}
`

var errBucketNotConfigured = errors.New("rate limit bucket not configured")

// Decision is the outcome of one bucket take.
type Decision struct {
	Allowed    bool
	Capacity   int
	Remaining  int
	RetryAfter time.Duration
}

// bucket is a Redis-backed token bucket shared by every API instance.
type bucket struct {
	client *redis.Client
	script *redis.Script
}

func newBucket(client *redis.Client) *bucket {
	if client == nil {
		return nil
	}
	return &bucket{client: client, script: redis.NewScript(bucketScript)}
}

// take removes one token from key. perMinute tokens flow back each minute
// up to capacity.
func (b *bucket) take(ctx context.Context, key string, capacity, perMinute int) (Decision, error) {
	if b == nil {
		return Decision{}, errBucketNotConfigured
	}
	if key == "" || capacity <= 0 || perMinute <= 0 {
		return Decision{}, errors.New("rate limit bucket needs a key and positive capacity and refill")
	}

	// milli-tokens per millisecond: perMinute*1000 / 60000
	refill := float64(perMinute) / 60
	res, err := b.script.Run(ctx, b.client, []string{key},
		capacity, refill, bucketTTL(capacity, perMinute).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 3 {
		return Decision{}, errors.New("unexpected rate limit script reply")
	}

	return Decision{
		Allowed:    res[0] == 1,
		Capacity:   capacity,
		Remaining:  int(res[1] / 1000),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket around for twice the time a full refill
// takes, never less than a second.
func bucketTTL(capacity, perMinute int) time.Duration {
	if capacity <= 0 || perMinute <= 0 {
		return time.Second
	}
	seconds := math.Ceil(float64(capacity) * 120 / float64(perMinute))
	return time.Duration(math.Max(seconds, 1)) * time.Second
}

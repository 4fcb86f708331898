package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLockerIsSafe(t *testing.T) {
	var l *Locker
	assert.Nil(t, NewLocker(nil))

	_, ok, err := l.TryLock(context.Background(), "technician:1", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, l.Release(context.Background(), "technician:1", "token"))
}

func TestPublicOrderLimiterWithoutRedisAllows(t *testing.T) {
	limiter := NewPublicOrderLimiter(nil, nil)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Minute, bucketTTL(5, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 5))
	assert.Equal(t, 2*time.Second, bucketTTL(1, 60))
	assert.Equal(t, time.Second, bucketTTL(1, 600))
}

func TestNilBucketRefuses(t *testing.T) {
	var b *bucket
	_, err := b.take(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, errBucketNotConfigured)
}

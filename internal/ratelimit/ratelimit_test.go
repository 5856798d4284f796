package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientDisablesLimiters(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewTokenBucket(nil))
	assert.Nil(t, NewLoginLimiter(nil))
}

func TestDisabledLoginLimiterAllows(t *testing.T) {
	var limiter *LoginLimiter
	assert.False(t, limiter.Enabled())

	decision, err := limiter.Allow(context.Background(), "10.0.0.1", "chris@chrisfit.id")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestNilLockerErrors(t *testing.T) {
	var locker *Locker
	_, ok, err := locker.TryLock(context.Background(), "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.False(t, ok)
	assert.NoError(t, locker.Release(context.Background(), "sweep", "token"))
}

func TestLockKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "storefront:lock:orphan_sweep", lockKey("orphan_sweep"))
}

func TestNilTokenBucketErrors(t *testing.T) {
	var bucket *TokenBucket
	res, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
	assert.False(t, res.Allowed)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
	assert.Equal(t, 40*time.Second, defaultBucketTTL(0.5, 10))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
}

func TestCastHelpers(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(2), castToInt(2.7))
	assert.Equal(t, int64(0), castToInt("x"))
	assert.Equal(t, 2.5, castToFloat("2.5"))
	assert.Equal(t, 3.0, castToFloat(int64(3)))
	assert.Equal(t, 0.0, castToFloat(nil))
}

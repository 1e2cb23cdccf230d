package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/proppass/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientDisablesEverything(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewTokenBucket(nil))

	var locker *Locker
	assert.False(t, locker.Enabled())
	_, _, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, locker.Release(context.Background(), "k", "token"))
}

func TestAcceptLimiterDisabledAllows(t *testing.T) {
	limiter := NewAcceptLimiter(config.Config{AcceptRatePerSecond: 1, AcceptBurst: 5}, nil)
	require.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 0))
}

func TestScriptValueConversion(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(7), toInt("7"))
	assert.InDelta(t, 2.5, toFloat("2.5"), 1e-9)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 1e-9)
	assert.Zero(t, toFloat(nil))
}

package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBucket(t *testing.T) (*TokenBucket, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenBucket(client, "test:"), srv
}

func TestTokenBucketExhausts(t *testing.T) {
	ctx := context.Background()
	bucket, srv := newTestBucket(t)

	for i := 0; i < 2; i++ {
		res, err := bucket.Allow(ctx, "client-a", 0.01, 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2, res.Limit)
	}

	res, err := bucket.Allow(ctx, "client-a", 0.01, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Greater(t, res.RetryAfter.Seconds(), 0.0)
	assert.True(t, srv.Exists("test:client-a"))
}

func TestTokenBucketKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	bucket, _ := newTestBucket(t)

	res, err := bucket.Allow(ctx, "client-a", 0.01, 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = bucket.Allow(ctx, "client-b", 0.01, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucketValidatesInput(t *testing.T) {
	ctx := context.Background()
	bucket, _ := newTestBucket(t)

	_, err := bucket.Allow(ctx, "", 1, 1)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = bucket.Allow(ctx, "k", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = bucket.Allow(ctx, "k", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	var nilBucket *TokenBucket
	_, err = nilBucket.Allow(ctx, "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDisabledLimiterAllows(t *testing.T) {
	var limiter *APILimiter
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

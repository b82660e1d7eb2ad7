package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, "test:"), srv
}

func TestTryLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	locker, srv := newTestLocker(t)

	token, ok, err := locker.TryLock(ctx, "payment:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.True(t, srv.Exists("test:payment:1"))

	_, ok, err = locker.TryLock(ctx, "payment:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "payment:1", token))
	_, ok, err = locker.TryLock(ctx, "payment:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	ctx := context.Background()
	locker, srv := newTestLocker(t)

	_, ok, err := locker.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "job", "someone-else"))
	assert.True(t, srv.Exists("test:job"))
}

func TestLockExpires(t *testing.T) {
	ctx := context.Background()
	locker, srv := newTestLocker(t)

	_, ok, err := locker.TryLock(ctx, "job", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "job", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryLockValidatesInput(t *testing.T) {
	locker, _ := newTestLocker(t)

	_, _, err := locker.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	var nilLocker *Locker
	_, _, err = nilLocker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, nilLocker.Release(context.Background(), "k", "t"))
}

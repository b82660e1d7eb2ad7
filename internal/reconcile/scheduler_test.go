package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/acquiring/internal/clock"
	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/smallbiznis/acquiring/internal/lock"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedulerSkipsWhenJobLockHeld(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.NewLocker(client, "t:")

	job, repo, payments := newTestJob(t, config.ReconciliationConfig{})
	seedPayment(t, repo, 1, paymentdomain.StatusRegistered)

	sched := NewScheduler(SchedulerParams{
		Cfg:    config.Config{Reconciliation: config.ReconciliationConfig{Interval: time.Minute, Timeout: time.Minute}},
		Log:    zap.NewNop(),
		Job:    job,
		Locker: locker,
		Clock:  clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})

	_, ok, err := locker.TryLock(context.Background(), jobLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Empty(t, payments.queriedIDs())

	srv.FastForward(2 * time.Minute)
	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Len(t, payments.queriedIDs(), 1)
	assert.False(t, srv.Exists("t:"+jobLockKey))
}

func TestSchedulerRunForeverStopsOnCancel(t *testing.T) {
	job, _, _ := newTestJob(t, config.ReconciliationConfig{})
	sched := NewScheduler(SchedulerParams{
		Cfg: config.Config{Reconciliation: config.ReconciliationConfig{Interval: 10 * time.Millisecond}},
		Log: zap.NewNop(),
		Job: job,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.RunForever(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunForever did not return after cancel")
	}
}

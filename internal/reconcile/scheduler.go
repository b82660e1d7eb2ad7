package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/acquiring/internal/clock"
	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/smallbiznis/acquiring/internal/lock"
	obsmetrics "github.com/smallbiznis/acquiring/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobLockKey = "reconcile:job"

type SchedulerParams struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Job     *Job
	Locker  *lock.Locker                 `optional:"true"`
	Clock   clock.Clock                  `optional:"true"`
	Metrics *obsmetrics.ReconcileMetrics `optional:"true"`
}

// Scheduler runs the job on a fixed interval. With a locker configured only
// one replica runs at a time.
type Scheduler struct {
	cfg     config.ReconciliationConfig
	log     *zap.Logger
	job     *Job
	locker  *lock.Locker
	clock   clock.Clock
	metrics *obsmetrics.ReconcileMetrics
}

func NewScheduler(p SchedulerParams) *Scheduler {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = obsmetrics.Reconcile()
	}
	cfg := p.Cfg.Reconciliation
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Scheduler{
		cfg:     cfg,
		log:     p.Log.Named("reconcile.scheduler"),
		job:     p.Job,
		locker:  p.Locker,
		clock:   clk,
		metrics: metrics,
	}
}

// RunOnce runs the job if no other replica holds the job lock. A run cut
// short by its deadline is logged, not returned.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(parent, jobLockKey, s.cfg.Timeout+time.Minute)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("reconciliation running elsewhere, skipping")
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(parent), jobLockKey, token); err != nil {
				s.log.Warn("failed to release job lock", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.Timeout)
	defer cancel()

	_, err := s.job.Run(ctx, nil)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		s.log.Warn("reconciliation run timed out",
			zap.Duration("timeout", s.cfg.Timeout),
			zap.Error(err),
		)
		return nil
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.Interval)

	for {
		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("reconciliation run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.Interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

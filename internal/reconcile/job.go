package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/acquiring/internal/clock"
	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/smallbiznis/acquiring/internal/gateway"
	"github.com/smallbiznis/acquiring/internal/lock"
	obscontext "github.com/smallbiznis/acquiring/internal/observability/context"
	obslogger "github.com/smallbiznis/acquiring/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/acquiring/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/smallbiznis/acquiring/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ItemFailure is one payment whose status could not be reconciled.
type ItemFailure struct {
	PaymentID snowflake.ID
	Status    paymentdomain.Status
	Err       error
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("payment %s (%s): %v", f.PaymentID, f.Status, f.Err)
}

func (f ItemFailure) Unwrap() error { return f.Err }

// Report summarizes one run. Deferred payments were locked by another
// worker and are left for the next run.
type Report struct {
	Processed int
	Succeeded int
	Deferred  int
	Failures  []ItemFailure
}

func (r Report) Failed() bool { return len(r.Failures) > 0 }

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Repo     paymentdomain.Repository
	Payments paymentdomain.Service
	Locker   *lock.Locker                 `optional:"true"`
	Notifier Notifier                     `optional:"true"`
	Clock    clock.Clock                  `optional:"true"`
	Metrics  *obsmetrics.ReconcileMetrics `optional:"true"`
}

// Job re-queries the bank for payments stuck in non-terminal statuses.
type Job struct {
	cfg      config.ReconciliationConfig
	log      *zap.Logger
	repo     paymentdomain.Repository
	payments paymentdomain.Service
	locker   *lock.Locker
	notifier Notifier
	clock    clock.Clock
	metrics  *obsmetrics.ReconcileMetrics
}

func NewJob(p Params) *Job {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = obsmetrics.Reconcile()
	}
	return &Job{
		cfg:      p.Cfg.Reconciliation,
		log:      p.Log.Named("reconcile.job"),
		repo:     p.Repo,
		payments: p.Payments,
		locker:   p.Locker,
		notifier: p.Notifier,
		clock:    clk,
		metrics:  metrics,
	}
}

// WithConcurrency returns a copy of the job using n workers.
func (j *Job) WithConcurrency(n int) *Job {
	clone := *j
	clone.cfg.Concurrency = n
	return &clone
}

// Run reconciles every payment in statuses, or in the default non-terminal
// set when statuses is empty. A failing payment never stops the run; all
// failures are returned together once every payment has been visited.
func (j *Job) Run(ctx context.Context, statuses []paymentdomain.Status) (Report, error) {
	if len(statuses) == 0 {
		statuses = paymentdomain.ReconcilableStatuses
	}
	for _, status := range statuses {
		if !status.Valid() {
			return Report{}, fmt.Errorf("%w: %q", paymentdomain.ErrInvalidStatus, status)
		}
	}

	// One correlation id per run ties its log lines and gateway spans together.
	ctx, _ = correlation.EnsureCorrelationID(ctx)

	start := j.clock.Now()
	j.metrics.IncRun()
	log := obslogger.WithContext(ctx, j.log)
	log.Info("reconciliation started", zap.Any("statuses", statuses), zap.Int("concurrency", j.concurrency()))

	var (
		mu      sync.Mutex
		report  Report
		scanErr error
	)
	record := func(payment *paymentdomain.Payment, outcome string, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Processed++
		switch outcome {
		case obsmetrics.ItemOutcomeSucceeded:
			report.Succeeded++
		case obsmetrics.ItemOutcomeDeferred:
			report.Deferred++
		default:
			report.Failures = append(report.Failures, ItemFailure{
				PaymentID: payment.ID,
				Status:    payment.Status,
				Err:       err,
			})
			j.metrics.IncItemError(failureReason(err))
		}
		j.metrics.IncItem(outcome)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency())

	for payment, err := range j.repo.FindByStatuses(ctx, statuses, j.cfg.BatchSize) {
		if err != nil && payment == nil {
			scanErr = err
			break
		}
		if err != nil {
			record(payment, obsmetrics.ItemOutcomeFailed, err)
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := j.reconcileOne(gctx, payment)
			record(payment, outcome, err)
			return nil
		})
	}
	_ = g.Wait()

	if scanErr == nil && ctx.Err() != nil {
		scanErr = ctx.Err()
		j.metrics.IncTimeout()
	}

	finished := j.clock.Now()
	failed := report.Failed() || scanErr != nil
	j.metrics.ObserveRun(finished.Sub(start), failed, finished)

	log.Info("reconciliation finished",
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("deferred", report.Deferred),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("elapsed", finished.Sub(start)),
	)

	if report.Failed() && j.notifier != nil {
		if err := j.notifier.NotifyFailed(ctx, report); err != nil {
			log.Warn("failed to publish reconciliation failures", zap.Error(err))
		}
	}

	errs := make([]error, 0, len(report.Failures)+1)
	if scanErr != nil {
		errs = append(errs, fmt.Errorf("scan payments: %w", scanErr))
	}
	for _, failure := range report.Failures {
		errs = append(errs, failure)
	}
	return report, errors.Join(errs...)
}

func (j *Job) reconcileOne(ctx context.Context, payment *paymentdomain.Payment) (string, error) {
	ctx = obscontext.WithPaymentID(ctx, payment.ID.String())

	// Without a bank order id there is nothing to ask the bank about; the
	// register call may still be in flight.
	if payment.BankOrderID == nil {
		obslogger.WithContext(ctx, j.log).Debug("payment has no bank order id yet, deferring")
		return obsmetrics.ItemOutcomeDeferred, nil
	}

	if j.locker != nil {
		key := "payment:" + payment.ID.String()
		token, ok, err := j.locker.TryLock(ctx, key, j.lockTTL())
		if err != nil {
			return obsmetrics.ItemOutcomeFailed, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			obslogger.WithContext(ctx, j.log).Debug("payment locked elsewhere, deferring")
			return obsmetrics.ItemOutcomeDeferred, nil
		}
		defer func() {
			if err := j.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				obslogger.WithContext(ctx, j.log).Warn("failed to release payment lock", zap.Error(err))
			}
		}()
	}

	if _, err := j.payments.QueryStatus(ctx, nil, payment.ID, nil); err != nil {
		return obsmetrics.ItemOutcomeFailed, err
	}
	return obsmetrics.ItemOutcomeSucceeded, nil
}

func (j *Job) concurrency() int {
	if j.cfg.Concurrency < 1 {
		return 1
	}
	return j.cfg.Concurrency
}

func (j *Job) lockTTL() time.Duration {
	if j.cfg.LockTTL <= 0 {
		return 2 * time.Minute
	}
	return j.cfg.LockTTL
}

func failureReason(err error) string {
	if reason := obsmetrics.ClassifyInfraError(err); reason != "" {
		return reason
	}
	switch {
	case errors.Is(err, paymentdomain.ErrReconciliation):
		return "local_write"
	case errors.Is(err, paymentdomain.ErrUnrecognizedStatus):
		return "unrecognized_status"
	case errors.Is(err, paymentdomain.ErrGatewayRejected):
		return "gateway_rejected"
	case errors.Is(err, gateway.ErrTransport):
		return "transport"
	case errors.Is(err, gateway.ErrParse):
		return "malformed_reply"
	case errors.Is(err, paymentdomain.ErrConfiguration):
		return "configuration"
	default:
		return obsmetrics.ReconcileReasonUnknown
	}
}

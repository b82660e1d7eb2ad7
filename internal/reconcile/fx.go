package reconcile

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/acquiring/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(provideNotifier),
	fx.Provide(NewJob),
	fx.Provide(NewScheduler),
)

// DaemonModule runs the scheduler for the lifetime of the application.
var DaemonModule = fx.Module("reconcile.daemon",
	fx.Invoke(StartScheduler),
)

func provideNotifier(cfg config.Config, client *redis.Client) Notifier {
	if client == nil || cfg.Reconciliation.Channel == "" {
		return nil
	}
	return NewRedisNotifier(client, cfg.Reconciliation.Channel)
}

func StartScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}

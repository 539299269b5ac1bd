package scheduler

import (
	"context"

	obsmetrics "github.com/smallbiznis/moiledger/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

func NewScheduler(lc fx.Lifecycle, cfg Config, metricsCfg obsmetrics.Config, sched *Scheduler) {
	if !cfg.Enabled {
		return
	}
	obsmetrics.SchedulerWithConfig(metricsCfg)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
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

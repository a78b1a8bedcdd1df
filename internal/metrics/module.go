package metrics

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/ghl-platform/realtime-delivery-service/config"
)

// Module provides the tracker and runs the periodic reporter.
var Module = fx.Module("metrics",
	fx.Provide(
		NewTracker,
		func(cfg *config.Config, t *Tracker, logger *slog.Logger) *Reporter {
			return NewReporter(t, cfg.Metrics.ReportInterval, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, r *Reporter) {
		runCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					r.Run(runCtx)
					close(done)
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				cancel()
				select {
				case <-done:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		})
	}),
)

package lanes

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/ghl-platform/realtime-delivery-service/config"
)

// Module provides the router and runs its drain loops for the lifetime of
// the app. The loops stop before the registry tears down so in-flight
// dispatches always see live connections.
var Module = fx.Module("lanes",
	fx.Provide(
		func(cfg *config.Config, d Dispatcher, a Aggregator, logger *slog.Logger) *Router {
			return NewRouter(d, a, cfg.Lanes.QueueCapacity, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, r *Router) {
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

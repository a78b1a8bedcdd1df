package registry

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	appconfig "github.com/ghl-platform/realtime-delivery-service/config"
)

// Module wires the registry, its health janitor and the heartbeat
// supervisor into the application lifecycle.
var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *appconfig.Config, logger *slog.Logger) *Registry {
			return NewRegistry(logger,
				WithSendBuffer(cfg.Registry.SendBuffer),
				WithHeartbeatTimeout(cfg.Registry.HeartbeatTimeout),
				WithSweepInterval(cfg.Registry.SweepInterval),
			)
		},
		NewSupervisor,
	),
	fx.Invoke(func(lc fx.Lifecycle, r *Registry, s *Supervisor) {
		runCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{}, 2)
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() { r.RunJanitor(runCtx); done <- struct{}{} }()
				go func() { s.Run(runCtx); done <- struct{}{} }()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				cancel()
				for range 2 {
					select {
					case <-done:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				r.Shutdown()
				return nil
			},
		})
	}),
)

package admin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/ghl-platform/realtime-delivery-service/config"
)

// Module serves the admin endpoints on the dedicated admin listener.
var Module = fx.Module("admin-handler",
	fx.Provide(NewHandler),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, h *Handler, logger *slog.Logger) {
		root := chi.NewRouter()
		root.Mount("/admin", h.Routes())
		srv := &http.Server{Addr: cfg.Server.AdminAddr, Handler: root}

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				ln, err := net.Listen("tcp", srv.Addr)
				if err != nil {
					return err
				}
				logger.Info("admin listener started", "addr", srv.Addr)
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("admin server stopped", "error", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)

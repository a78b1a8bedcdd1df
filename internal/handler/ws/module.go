package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"go.uber.org/fx"

	"github.com/ghl-platform/realtime-delivery-service/config"
)

// Module serves the websocket endpoint on its own listener.
var Module = fx.Module("ws-handler",
	fx.Provide(NewWSHandler),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, h *WSHandler, logger *slog.Logger) {
		mux := http.NewServeMux()
		mux.Handle("/ws", h)
		srv := &http.Server{Addr: cfg.Server.WSAddr, Handler: mux}

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				ln, err := net.Listen("tcp", srv.Addr)
				if err != nil {
					return err
				}
				logger.Info("websocket listener started", "addr", srv.Addr)
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("websocket server stopped", "error", err)
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

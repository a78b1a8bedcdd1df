package service

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/ghl-platform/realtime-delivery-service/config"
)

var Module = fx.Module("service",
	fx.Provide(
		fx.Annotate(
			NewDeliveryService,
			fx.As(new(Deliverer)),
		),
		func(cfg *config.Config) TokenVerifier {
			return NewHTTPTokenVerifier(cfg.Auth.ServiceURL, cfg.Auth.RequestTimeout)
		},
		fx.Annotate(
			func(v TokenVerifier, cfg *config.Config, logger *slog.Logger) *AuthService {
				return NewAuthService(v, cfg.Auth.CacheSize, cfg.Auth.CacheTTL, logger)
			},
			fx.As(new(Auther)),
		),
	),
)

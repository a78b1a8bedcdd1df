package cmd

import (
	"go.uber.org/fx"

	"github.com/ghl-platform/realtime-delivery-service/config"
	"github.com/ghl-platform/realtime-delivery-service/internal/dispatch"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/aggregate"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/lanes"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/registry"
	adminhandler "github.com/ghl-platform/realtime-delivery-service/internal/handler/admin"
	amqpdi "github.com/ghl-platform/realtime-delivery-service/internal/handler/amqp"
	"github.com/ghl-platform/realtime-delivery-service/internal/handler/marshaller"
	wsmarshaller "github.com/ghl-platform/realtime-delivery-service/internal/handler/marshaller/ws"
	wshandler "github.com/ghl-platform/realtime-delivery-service/internal/handler/ws"
	"github.com/ghl-platform/realtime-delivery-service/internal/metrics"
	"github.com/ghl-platform/realtime-delivery-service/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,

			fx.Annotate(
				wsmarshaller.New,
				fx.As(new(marshaller.Marshaller)),
			),
			fx.Annotate(
				aggregate.New,
				fx.As(new(lanes.Aggregator)),
			),
			fx.Annotate(
				dispatch.NewDispatcher,
				fx.As(new(lanes.Dispatcher)),
				fx.As(new(metrics.DeliverySource)),
			),

			func(t *metrics.Tracker) dispatch.Recorder { return t },
			func(r *lanes.Router) metrics.LaneSource { return r },
			func(r *registry.Registry) metrics.ConnSource { return r },
			metrics.NewCollector,
			func(c *metrics.Collector) wshandler.SnapshotSource { return c },
		),
		service.Module,
		registry.Module,
		lanes.Module,
		metrics.Module,
		wshandler.Module,
		adminhandler.Module,
		amqpdi.Module,
	)
}

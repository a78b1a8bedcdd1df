package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/ghl-platform/realtime-delivery-service/config"
	pubsubadapter "github.com/ghl-platform/realtime-delivery-service/internal/adapter/pubsub"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(

		pubsubadapter.NewPublisherProvider,
		pubsubadapter.NewSubscriberProvider,

		NewEventIngestor,
		NewWatermillRouter,
	),

	fx.Invoke(runIngestPipeline),
)

func runIngestPipeline(
	lc fx.Lifecycle,
	cfg *config.Config,
	ingestor *EventIngestor,
	router *message.Router,
	subProvider *pubsubadapter.SubscriberProvider,
	pubProvider *pubsubadapter.PublisherProvider,
	logger *slog.Logger,
) error {
	if !cfg.AMQP.Enabled {
		logger.Info("amqp ingestion disabled, events arrive via admin API only")
		return nil
	}

	if err := ingestor.RegisterHandlers(router, subProvider, pubProvider); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("amqp router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
	return nil
}

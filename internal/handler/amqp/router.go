// Package amqp consumes platform events off the message bus and feeds
// them into the priority lanes.
package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/ghl-platform/realtime-delivery-service/internal/adapter/pubsub"
	"github.com/ghl-platform/realtime-delivery-service/internal/service"
)

const (
	// ------------------- EXCHANGES (SOURCES) -------------------
	PlatformEventsExchange   = "ghl_platform.events"
	ComplianceEventsExchange = "ghl_compliance.events"

	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicLeadUpdated        = "platform.#.lead.updated.v1"
	TopicConversationUpdate = "platform.#.conversation.updated.v1"
	TopicCommissionUpdated  = "platform.#.commission.updated.v1"
	TopicInsightCreated     = "platform.#.insight.created.v1"
	TopicSystemAlert        = "platform.#.system.alert.v1"
	TopicSMSOptOut          = "compliance.#.sms.optout.v1"

	// ------------------- QUEUES (CONSUMERS) --------------------
	IngestQueue       = "realtime-delivery.ingest.v1"
	IngestPoisonTopic = "realtime-delivery.ingest.v1.poison"
)

// EventIngestor owns the listener table and the shared dependencies of
// every bound handler.
type EventIngestor struct {
	deliverer service.Deliverer
	logger    *slog.Logger
}

func NewEventIngestor(deliverer service.Deliverer, logger *slog.Logger) *EventIngestor {
	return &EventIngestor{deliverer: deliverer, logger: logger}
}

// NewWatermillRouter builds the consumer router with its middleware chain.
func NewWatermillRouter(wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, wmLogger)
}

// RegisterHandlers binds every platform topic to its ingest handler. Each
// handler gets its own queue on this node so a slow topic cannot starve
// the others.
func (h *EventIngestor) RegisterHandlers(
	router *message.Router,
	subProvider *pubsub.SubscriberProvider,
	pubProvider *pubsub.PublisherProvider,
) error {
	poisonPub, err := pubProvider.Build(PlatformEventsExchange)
	if err != nil {
		return fmt.Errorf("poison publisher: %w", err)
	}
	poison, err := middleware.PoisonQueue(poisonPub, IngestPoisonTopic)
	if err != nil {
		return fmt.Errorf("poison queue setup: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		topic    string
		handler  message.NoPublishHandlerFunc
	}{
		{"ON_LEAD_UPDATED", PlatformEventsExchange, TopicLeadUpdated, Bind(h, h.OnLeadUpdatedV1)},
		{"ON_CONVERSATION_UPDATED", PlatformEventsExchange, TopicConversationUpdate, Bind(h, h.OnConversationUpdatedV1)},
		{"ON_COMMISSION_UPDATED", PlatformEventsExchange, TopicCommissionUpdated, Bind(h, h.OnCommissionUpdatedV1)},
		{"ON_INSIGHT_CREATED", PlatformEventsExchange, TopicInsightCreated, Bind(h, h.OnInsightCreatedV1)},
		{"ON_SYSTEM_ALERT", PlatformEventsExchange, TopicSystemAlert, Bind(h, h.OnSystemAlertV1)},
		{"ON_SMS_OPT_OUT", ComplianceEventsExchange, TopicSMSOptOut, Bind(h, h.OnSMSOptOutV1)},
	}

	for _, c := range configs {
		handlerQueue := fmt.Sprintf("%s.%s", IngestQueue, c.name)
		sub, err := subProvider.Build(handlerQueue, c.exchange, c.topic)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.Timeout(30*time.Second),
		)
	}

	h.logger.Info("amqp ingest pipeline ready", "queue", IngestQueue, "handlers", len(configs))
	return nil
}

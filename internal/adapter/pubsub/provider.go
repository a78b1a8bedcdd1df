// Package pubsub builds the AMQP publishers and subscribers the ingestion
// pipeline runs on.
package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghl-platform/realtime-delivery-service/config"
)

// SubscriberProvider builds one subscriber per consumer queue, bound to a
// topic exchange with a routing-key pattern.
type SubscriberProvider struct {
	url    string
	logger watermill.LoggerAdapter
}

func NewSubscriberProvider(cfg *config.Config, logger watermill.LoggerAdapter) *SubscriberProvider {
	return &SubscriberProvider{url: cfg.AMQP.URL, logger: logger}
}

// Build creates a durable queue bound to exchange with the routing key
// pattern topic.
func (p *SubscriberProvider) Build(queue, exchange, topic string) (message.Subscriber, error) {
	cfg := amqp.NewDurablePubSubConfig(p.url, amqp.GenerateQueueNameConstant(queue))
	cfg.Exchange.GenerateName = func(string) string { return exchange }
	cfg.Exchange.Type = "topic"
	cfg.QueueBind.GenerateRoutingKey = func(string) string { return topic }

	sub, err := amqp.NewSubscriber(cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("build subscriber for %s on %s: %w", queue, exchange, err)
	}
	return sub, nil
}

// PublisherProvider builds publishers onto a topic exchange. The delivery
// runtime only publishes to its poison topic; the provider still covers
// any future outbound path.
type PublisherProvider struct {
	url    string
	logger watermill.LoggerAdapter
}

func NewPublisherProvider(cfg *config.Config, logger watermill.LoggerAdapter) *PublisherProvider {
	return &PublisherProvider{url: cfg.AMQP.URL, logger: logger}
}

func (p *PublisherProvider) Build(exchange string) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(p.url, nil)
	cfg.Exchange.GenerateName = func(string) string { return exchange }
	cfg.Exchange.Type = "topic"

	pub, err := amqp.NewPublisher(cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("build publisher for %s: %w", exchange, err)
	}
	return pub, nil
}

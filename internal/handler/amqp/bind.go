package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// IngestHandler maps one decoded platform payload to a delivery event.
// Returning a nil event acks the message without publishing anything.
type IngestHandler[T any] func(ctx context.Context, payload *T) (*model.Event, error)

// Bind adapts an IngestHandler to the watermill pipeline: panic recovery,
// JSON decoding with poison-pill protection, then fire-and-forget into the
// lanes.
func Bind[T any](h *EventIngestor, fn IngestHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic in ingest handler",
					"panic", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID,
				)
			}
		}()

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			// Ack: an undecodable message never becomes decodable.
			h.logger.Error("ingest decode failed", "msg_id", msg.UUID, "error", err)
			return nil
		}

		ev, err := fn(msg.Context(), payload)
		if err != nil {
			// Nack: the retry middleware and poison queue decide its fate.
			return err
		}
		if ev == nil {
			return nil
		}

		h.deliverer.Publish(ev)
		return nil
	}
}

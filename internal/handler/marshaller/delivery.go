// Package marshaller defines the wire-encoding contract between the
// delivery core and the client transports.
package marshaller

import "github.com/ghl-platform/realtime-delivery-service/internal/domain/model"

// Marshaller encodes outbound frames exactly once per event; the encoded
// bytes fan out to every matching connection.
type Marshaller interface {
	MarshalEvent(ev *model.Event) ([]byte, error)
	MarshalFrame(frameType string, payload any) ([]byte, error)
}

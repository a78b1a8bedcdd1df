package model

import (
	"time"

	"github.com/google/uuid"
)

// Client -> server frame types.
const (
	FrameHeartbeat   = "heartbeat"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameGetStatus   = "get_status"
)

// Server -> client frame types.
const (
	FrameConnectionEstablished = "connection_established"
	FrameRealTimeEvent         = "real_time_event"
	FrameHeartbeatAck          = "heartbeat_ack"
	FrameSubscriptionUpdated   = "subscription_updated"
	FrameStatus                = "status"
	FrameError                 = "error"
)

// ClientFrame is the single inbound message shape. Kinds is only read for
// subscribe/unsubscribe.
type ClientFrame struct {
	Type  string   `json:"type"`
	Kinds []string `json:"kinds,omitempty"`
}

// EstablishedPayload is sent once after a successful handshake.
type EstablishedPayload struct {
	ConnectionID  uuid.UUID   `json:"connection_id"`
	Role          Role        `json:"role"`
	Subscriptions []EventKind `json:"subscriptions"`
	ServerTime    time.Time   `json:"server_time"`
}

// SubscriptionUpdatedPayload reflects the effective set after a
// subscribe/unsubscribe, which may be narrower than requested.
type SubscriptionUpdatedPayload struct {
	Subscriptions []EventKind `json:"subscriptions"`
}

// StatusPayload answers a get_status frame. Uptime is reported in whole
// milliseconds.
type StatusPayload struct {
	Connection ConnectionInfo       `json:"connection"`
	Uptime     int64                `json:"uptime_ms"`
	Metrics    *PerformanceSnapshot `json:"metrics,omitempty"`
}

// ErrorPayload reports a malformed client message. The connection stays
// open.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

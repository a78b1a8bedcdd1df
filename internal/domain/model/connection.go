package model

import (
	"time"

	"github.com/google/uuid"
)

// ConnState is the lifecycle state of one client connection. A connection
// only exists after authentication succeeds, so it is born Active and ends
// Disconnected. Client close, send failure and heartbeat timeout all land
// in Disconnected through the same cleanup.
type ConnState int8

const (
	StateActive ConnState = iota + 1
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DisconnectReason distinguishes the terminal transitions for logging and
// for the health stream consumed by the registry janitor.
type DisconnectReason string

const (
	DisconnectClientClose      DisconnectReason = "client_close"
	DisconnectSendFailure      DisconnectReason = "send_failure"
	DisconnectHeartbeatTimeout DisconnectReason = "heartbeat_timeout"
	DisconnectShutdown         DisconnectReason = "shutdown"
)

// ConnectionInfo is the admin-facing view of one live connection.
type ConnectionInfo struct {
	ID            uuid.UUID   `json:"id"`
	PrincipalID   uuid.UUID   `json:"principal_id"`
	Role          Role        `json:"role"`
	ConnectedAt   time.Time   `json:"connected_at"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	Subscriptions []EventKind `json:"subscriptions"`
	State         string      `json:"state"`
}

// Principal is the identity the auth collaborator resolves from a token.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

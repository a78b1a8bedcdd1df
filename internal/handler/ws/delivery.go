// Package ws is the client-facing transport: websocket handshake, token
// authentication, and the read/write pumps for one connection.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
	"github.com/ghl-platform/realtime-delivery-service/internal/domain/registry"
	"github.com/ghl-platform/realtime-delivery-service/internal/handler/marshaller"
	"github.com/ghl-platform/realtime-delivery-service/internal/service"
)

const writeTimeout = 5 * time.Second

// SnapshotSource serves the aggregate metrics for get_status frames.
type SnapshotSource interface {
	Snapshot() model.PerformanceSnapshot
}

type WSHandler struct {
	logger     *slog.Logger
	auther     service.Auther
	deliverer  service.Deliverer
	registry   *registry.Registry
	marshaller marshaller.Marshaller
	snapshots  SnapshotSource
	upgrader   websocket.Upgrader
}

func NewWSHandler(
	logger *slog.Logger,
	auther service.Auther,
	deliverer service.Deliverer,
	reg *registry.Registry,
	m marshaller.Marshaller,
	snapshots SnapshotSource,
) *WSHandler {
	return &WSHandler{
		logger:     logger,
		auther:     auther,
		deliverer:  deliverer,
		registry:   reg,
		marshaller: m,
		snapshots:  snapshots,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer sock.Close()

	// Authenticate before any registry state exists. The token arrives
	// out-of-band as a query parameter.
	principal, err := h.auther.VerifyToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.logger.Warn("ws auth failed", "remote", r.RemoteAddr, "error", err)
		deadline := time.Now().Add(writeTimeout)
		_ = sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"), deadline)
		return
	}

	// The welcome is queued before the registry makes the connection
	// visible to dispatch, so it always precedes the first broadcast.
	welcome := func(conn *registry.Conn, defaults []model.EventKind) ([]byte, error) {
		return h.marshaller.MarshalFrame(model.FrameConnectionEstablished, model.EstablishedPayload{
			ConnectionID:  conn.ID(),
			Role:          principal.Role,
			Subscriptions: defaults,
			ServerTime:    time.Now(),
		})
	}
	conn, _, err := h.deliverer.Subscribe(r.Context(), principal, welcome)
	if err != nil {
		h.logger.Error("ws subscribe failed", "principal_id", principal.ID, "error", err)
		return
	}
	defer h.deliverer.Unsubscribe(conn.ID())

	h.logger.Info("ws opened", "conn_id", conn.ID(), "principal_id", principal.ID, "role", principal.Role)

	go h.writePump(sock, conn)
	h.readPump(sock, conn)
}

// writePump drains the connection's outbound channel onto the socket.
// A write error is a transport failure: it goes to the health stream and
// the registry disconnects the connection, never a retry.
func (h *WSHandler) writePump(sock *websocket.Conn, conn *registry.Conn) {
	for frame := range conn.Outbound() {
		_ = sock.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sock.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Warn("ws send failed", "conn_id", conn.ID(), "error", err)
			conn.ReportFailure(model.DisconnectSendFailure, err)
			return
		}
	}
	// Outbound closed: the registry unregistered us. Tell the client and
	// drop the socket.
	deadline := time.Now().Add(writeTimeout)
	_ = sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "disconnected"), deadline)
	_ = sock.Close()
}

// readPump handles inbound frames until the client goes away. Malformed
// input answers with an error frame and keeps the connection open.
func (h *WSHandler) readPump(sock *websocket.Conn, conn *registry.Conn) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws read ended", "conn_id", conn.ID(), "error", err)
			}
			return
		}

		var frame model.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(conn, "malformed_frame", "message is not valid JSON")
			continue
		}

		switch frame.Type {
		case model.FrameHeartbeat:
			h.onHeartbeat(conn)
		case model.FrameSubscribe:
			h.onSubscriptionChange(conn, frame.Kinds, nil)
		case model.FrameUnsubscribe:
			h.onSubscriptionChange(conn, nil, frame.Kinds)
		case model.FrameGetStatus:
			h.onGetStatus(conn)
		default:
			h.sendError(conn, "unknown_type", "unknown message type: "+frame.Type)
		}
	}
}

func (h *WSHandler) onHeartbeat(conn *registry.Conn) {
	if err := h.registry.UpdateHeartbeat(conn.ID()); err != nil {
		return
	}
	h.reply(conn, model.FrameHeartbeatAck, nil)
}

func (h *WSHandler) onSubscriptionChange(conn *registry.Conn, add, remove []string) {
	effective, err := h.registry.UpdateSubscriptions(conn.ID(), toKinds(add), toKinds(remove))
	if err != nil {
		return
	}
	h.reply(conn, model.FrameSubscriptionUpdated, model.SubscriptionUpdatedPayload{
		Subscriptions: effective,
	})
}

func (h *WSHandler) onGetStatus(conn *registry.Conn) {
	payload := model.StatusPayload{
		Connection: conn.Info(),
		Uptime:     time.Since(conn.ConnectedAt()).Milliseconds(),
	}
	if h.snapshots != nil {
		snap := h.snapshots.Snapshot()
		payload.Metrics = &snap
	}
	h.reply(conn, model.FrameStatus, payload)
}

func (h *WSHandler) sendError(conn *registry.Conn, code, msg string) {
	h.reply(conn, model.FrameError, model.ErrorPayload{Code: code, Message: msg})
}

func (h *WSHandler) reply(conn *registry.Conn, frameType string, payload any) {
	frame, err := h.marshaller.MarshalFrame(frameType, payload)
	if err != nil {
		h.logger.Error("frame encode failed", "type", frameType, "error", err)
		return
	}
	_ = conn.Send(frame)
}

func toKinds(names []string) []model.EventKind {
	out := make([]model.EventKind, 0, len(names))
	for _, name := range names {
		out = append(out, model.EventKind(name))
	}
	return out
}

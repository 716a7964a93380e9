package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"studysync/pkg/interfaces"
	"studysync/pkg/types"
)

const maxMessageSize = 64 * 1024

// Coordinator is the session-side lifecycle the handler drives. Implemented
// by hub.Hub.
type Coordinator interface {
	Connect(ctx context.Context, actor types.Actor, kindHint string, conn *Connection) (*types.Session, error)
	Disconnect(actorID string) error
	Dispatch(sender types.Actor, event *types.ClientEvent) error
}

// HandlerConfig tunes the transport timeouts and buffers.
type HandlerConfig struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	SendBufferSize int
}

// Handler upgrades HTTP requests to websocket connections and runs the
// per-connection read loop. Actor identity is resolved from the request
// against the user directory before the upgrade, so unknown actors are
// rejected with a plain HTTP status.
type Handler struct {
	actors      interfaces.ActorDirectory
	coordinator Coordinator
	rooms       *Rooms
	config      HandlerConfig
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewHandler creates a websocket handler.
func NewHandler(actors interfaces.ActorDirectory, coordinator Coordinator,
	rooms *Rooms, config HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 60 * time.Second
	}
	return &Handler{
		actors:      actors,
		coordinator: coordinator,
		rooms:       rooms,
		config:      config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "websocket"),
	}
}

// ServeHTTP handles GET /ws?actor_id=<id>&kind=<learning|tutoring>.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actor_id")
	kindHint := r.URL.Query().Get("kind")

	if !types.IsValidActorID(actorID) {
		http.Error(w, "invalid actor_id", http.StatusBadRequest)
		return
	}

	actor, err := h.actors.GetActor(r.Context(), actorID)
	if err != nil {
		if errors.Is(err, interfaces.ErrActorNotFound) {
			http.Error(w, "unknown actor", http.StatusForbidden)
			return
		}
		h.logger.Error("actor lookup failed", "actor_id", actorID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "actor_id", actorID, "error", err)
		return
	}

	conn := NewConnection(wsConn, h.config.SendBufferSize, h.config.PingInterval)

	session, err := h.coordinator.Connect(r.Context(), *actor, kindHint, conn)
	if err != nil {
		h.logger.Error("connect failed", "actor_id", actorID, "error", err)
		conn.Close()
		return
	}

	h.logger.Info("websocket established", "actor_id", actorID,
		"role", actor.Role, "session_id", session.ID)

	go h.readPump(conn)
}

// readPump consumes inbound frames until the connection drops, then runs
// the disconnect sequence exactly once.
func (h *Handler) readPump(conn *Connection) {
	actor := conn.Actor()

	defer func() {
		h.rooms.Unregister(conn)
		if err := h.coordinator.Disconnect(actor.ID); err != nil {
			h.logger.Warn("disconnect enqueue failed", "actor_id", actor.ID, "error", err)
		}
		conn.Close()
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	_ = conn.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "actor_id", actor.ID, "error", err)
			}
			return
		}

		var event types.ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			h.logger.Warn("discarding unparseable frame", "actor_id", actor.ID, "error", err)
			continue
		}

		if err := h.coordinator.Dispatch(actor, &event); err != nil {
			h.logger.Warn("event dispatch failed", "actor_id", actor.ID,
				"event_type", event.Type, "error", err)
		}
	}
}

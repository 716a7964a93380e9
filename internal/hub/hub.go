package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"studysync/internal/matcher"
	"studysync/internal/metrics"
	"studysync/internal/registry"
	"studysync/internal/router"
	"studysync/internal/websocket"
	"studysync/pkg/types"
)

// Hub glues the transport to the session core. Connects run synchronously
// so the caller can reject; disconnects and domain events are queued and
// processed by a single goroutine, which preserves the per-actor ordering
// the transport delivers.
type Hub struct {
	events      chan *eventContext
	disconnects chan string
	shutdown    chan struct{}

	registry *registry.Registry
	matcher  *matcher.Matcher
	router   *router.Router
	rooms    *websocket.Rooms
	metrics  *metrics.Metrics
	logger   *slog.Logger

	running bool
	mu      sync.RWMutex
}

type eventContext struct {
	sender types.Actor
	event  *types.ClientEvent
}

// New creates a hub.
func New(reg *registry.Registry, m *matcher.Matcher, r *router.Router,
	rooms *websocket.Rooms, met *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		events:      make(chan *eventContext, 1000),
		disconnects: make(chan string, 100),
		shutdown:    make(chan struct{}),
		registry:    reg,
		matcher:     m,
		router:      r,
		rooms:       rooms,
		metrics:     met,
		logger:      logger.With("component", "hub"),
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	h.logger.Info("starting hub")
	go h.run(ctx)

	return nil
}

// Stop shuts down the hub.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}

	return nil
}

// Connect places a resolved actor into a session: match, join, room
// registration, then participant-update broadcasts. Synchronous so the
// websocket handler can tear the connection down on failure.
func (h *Hub) Connect(ctx context.Context, actor types.Actor, kindHint string, conn *websocket.Connection) (*types.Session, error) {
	if !h.isRunning() {
		return nil, ErrHubNotRunning
	}

	var join *registry.JoinResult
	for attempt := 0; ; attempt++ {
		session, err := h.matcher.Match(ctx, actor, kindHint)
		if err != nil {
			return nil, err
		}
		join, err = h.registry.AddParticipant(session.ID, actor, time.Now().UTC())
		if err == nil {
			break
		}
		// A matched session can be torn down between match and join when
		// its last participant leaves. One retry creates a fresh one.
		if !errors.Is(err, registry.ErrSessionNotFound) || attempt >= 1 {
			return nil, err
		}
	}

	conn.Bind(actor, join.Session.ID)
	if err := h.rooms.Register(conn); err != nil {
		if _, rollbackErr := h.registry.RemoveParticipant(join.Session.ID, actor.ID); rollbackErr != nil {
			h.logger.Error("failed to roll back join after registration failure",
				"actor_id", actor.ID, "session_id", join.Session.ID, "error", rollbackErr)
		}
		return nil, err
	}

	if prev := join.Previous; prev != nil && !prev.Destroyed {
		h.broadcastParticipantUpdate(prev.Session)
	}
	h.broadcastParticipantUpdate(join.Session)
	h.metrics.SetRegistryStats(h.registry.Stats())

	h.logger.Info("actor connected", "actor_id", actor.ID, "role", actor.Role,
		"session_id", join.Session.ID, "participants", len(join.Session.Participants))
	return join.Session, nil
}

// Disconnect queues the departure of an actor. Unknown actors are a no-op
// once the queue drains, as are disconnects superseded by a reconnect.
func (h *Hub) Disconnect(actorID string) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}

	select {
	case h.disconnects <- actorID:
		return nil
	default:
		return ErrDisconnectChannelFull
	}
}

// Dispatch queues an inbound domain event for routing.
func (h *Hub) Dispatch(sender types.Actor, event *types.ClientEvent) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}

	select {
	case h.events <- &eventContext{sender: sender, event: event}:
		return nil
	default:
		h.metrics.Dropped("channel_full")
		return ErrEventChannelFull
	}
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) run(ctx context.Context) {
	defer h.logger.Info("hub processing stopped")

	for {
		select {
		case ec := <-h.events:
			// Router errors mean the event was dropped and already
			// logged; nothing goes back to the sender.
			_ = h.router.Route(ctx, ec.sender, ec.event)

		case actorID := <-h.disconnects:
			h.handleDisconnect(actorID)

		case <-h.shutdown:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleDisconnect(actorID string) {
	// Teardown of a replaced connection also queues a disconnect. The
	// handler unregisters its connection before queueing, so a connection
	// still registered here belongs to a newer connect and the actor
	// stays in their session.
	if _, ok := h.rooms.Get(actorID); ok {
		h.logger.Info("ignoring stale disconnect, actor has a live connection", "actor_id", actorID)
		return
	}

	sessionID, ok := h.registry.Lookup(actorID)
	if !ok {
		return
	}

	leave, err := h.registry.RemoveParticipant(sessionID, actorID)
	if err != nil {
		h.logger.Warn("disconnect cleanup failed", "actor_id", actorID,
			"session_id", sessionID, "error", err)
		return
	}

	if !leave.Destroyed {
		h.broadcastParticipantUpdate(leave.Session)
	}
	h.metrics.SetRegistryStats(h.registry.Stats())

	h.logger.Info("actor disconnected", "actor_id", actorID,
		"session_id", sessionID, "session_destroyed", leave.Destroyed)
}

func (h *Hub) broadcastParticipantUpdate(session *types.Session) {
	h.metrics.Broadcast(types.EventParticipantUpdate)
	h.rooms.BroadcastToSession(session.ID, &types.SyncMessage{
		EventType: types.EventParticipantUpdate,
		SessionID: session.ID,
		Payload: types.ParticipantUpdatePayload{
			Participants: session.Participants,
			SessionInfo: types.SessionInfo{
				SessionID:        session.ID,
				SessionKind:      session.Kind,
				ParticipantCount: len(session.Participants),
			},
		},
		Timestamp: time.Now().UTC(),
	}, "")
}

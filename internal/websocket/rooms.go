package websocket

import (
	"log/slog"
	"sync"

	"studysync/pkg/types"
)

// Rooms tracks live connections by actor and by session, implementing the
// transport-level broadcast group. It is connection plumbing only: session
// membership is the registry's concern, Rooms just delivers.
type Rooms struct {
	mu        sync.RWMutex
	byActor   map[string]*Connection
	bySession map[string]map[string]*Connection
	logger    *slog.Logger
}

// NewRooms creates an empty room registry.
func NewRooms(logger *slog.Logger) *Rooms {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rooms{
		byActor:   make(map[string]*Connection),
		bySession: make(map[string]map[string]*Connection),
		logger:    logger.With("component", "rooms"),
	}
}

// Register adds a bound connection to its session room. An existing
// connection for the same actor is replaced and closed asynchronously to
// avoid holding the lock across the close.
func (r *Rooms) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsBound() {
		return ErrConnectionNotBound
	}

	actorID := conn.Actor().ID
	sessionID := conn.SessionID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byActor[actorID]; ok && existing != conn {
		r.removeLocked(existing)
		go func() {
			if err := existing.Close(); err != nil {
				r.logger.Warn("failed to close replaced connection", "actor_id", actorID, "error", err)
			}
		}()
	}

	r.byActor[actorID] = conn
	if r.bySession[sessionID] == nil {
		r.bySession[sessionID] = make(map[string]*Connection)
	}
	r.bySession[sessionID][actorID] = conn

	return nil
}

// Unregister removes a specific connection. Idempotent, and a no-op when a
// newer connection has already replaced this one.
func (r *Rooms) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	actorID := conn.Actor().ID
	if registered, ok := r.byActor[actorID]; !ok || registered != conn {
		return
	}
	r.removeLocked(conn)
}

func (r *Rooms) removeLocked(conn *Connection) {
	actorID := conn.Actor().ID
	sessionID := conn.SessionID()

	delete(r.byActor, actorID)
	if room, ok := r.bySession[sessionID]; ok {
		delete(room, actorID)
		if len(room) == 0 {
			delete(r.bySession, sessionID)
		}
	}
}

// Get returns the current connection for an actor.
func (r *Rooms) Get(actorID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byActor[actorID]
	return conn, ok
}

// SessionConnections returns all connections in a session room.
func (r *Rooms) SessionConnections(sessionID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.bySession[sessionID]
	connections := make([]*Connection, 0, len(room))
	for _, conn := range room {
		connections = append(connections, conn)
	}
	return connections
}

// BroadcastToSession delivers msg to every connection in the session room,
// skipping excludeActorID when non-empty. Delivery failures are logged and
// do not stop delivery to the remaining participants.
func (r *Rooms) BroadcastToSession(sessionID string, msg *types.SyncMessage, excludeActorID string) {
	for _, conn := range r.SessionConnections(sessionID) {
		if excludeActorID != "" && conn.Actor().ID == excludeActorID {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			r.logger.Warn("broadcast delivery failed", "session_id", sessionID,
				"actor_id", conn.Actor().ID, "event_type", msg.EventType, "error", err)
		}
	}
}

// Stats returns room counters for monitoring.
func (r *Rooms) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.byActor),
		"active_rooms":      len(r.bySession),
	}
}

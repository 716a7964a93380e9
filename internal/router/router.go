package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"studysync/internal/metrics"
	"studysync/internal/registry"
	"studysync/pkg/interfaces"
	"studysync/pkg/types"
)

// Broadcaster delivers a message to every connection in a session room,
// optionally excluding one actor. Implemented by websocket.Rooms.
type Broadcaster interface {
	BroadcastToSession(sessionID string, msg *types.SyncMessage, excludeActorID string)
}

// Router processes inbound domain events from already-joined actors:
// per-event-type authorization, persistence side effects, and fan-out to
// the session room.
//
// Event failures are fire-and-forget: malformed, unauthorized and
// rate-limited events are dropped and logged, the sender gets no error
// notification, and the session is left unmodified. Persistence failures
// never block or roll back the broadcast.
type Router struct {
	registry    *registry.Registry
	rooms       Broadcaster
	annotations interfaces.AnnotationStore
	progress    interfaces.ProgressStore
	limiter     *RateLimiter
	validate    *validator.Validate
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a router.
func New(reg *registry.Registry, rooms Broadcaster, annotations interfaces.AnnotationStore,
	progress interfaces.ProgressStore, rateLimitPerMinute int, m *metrics.Metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry:    reg,
		rooms:       rooms,
		annotations: annotations,
		progress:    progress,
		limiter:     NewRateLimiter(rateLimitPerMinute),
		validate:    validator.New(),
		metrics:     m,
		logger:      logger.With("component", "router"),
		now:         time.Now,
	}
}

// Route dispatches one inbound event. The returned error describes why an
// event was dropped; callers do not forward it to the sender.
func (r *Router) Route(ctx context.Context, sender types.Actor, event *types.ClientEvent) error {
	r.metrics.Event(event.Type)

	if !r.limiter.Allow(sender.ID) {
		r.drop("rate_limited", sender.ID, event.Type, ErrRateLimited)
		return ErrRateLimited
	}

	var err error
	switch event.Type {
	case types.EventAnnotationChange:
		err = r.handleAnnotationChange(ctx, sender, event.Data)
	case types.EventProgressChange:
		err = r.handleProgressChange(ctx, sender, event.Data)
	case types.EventContentUpdate:
		err = r.handleContentUpdate(ctx, sender, event.Data)
	case types.EventInteraction:
		err = r.handleInteraction(ctx, sender, event.Data)
	default:
		err = ErrUnknownEventType
		r.drop("unknown_type", sender.ID, event.Type, err)
	}
	return err
}

func (r *Router) handleAnnotationChange(ctx context.Context, sender types.Actor, data json.RawMessage) error {
	var payload annotationChangePayload
	if err := r.decode(data, &payload); err != nil {
		r.drop("malformed", sender.ID, types.EventAnnotationChange, err)
		return ErrMalformedEvent
	}
	if err := payload.Annotation.Validate(); err != nil {
		r.drop("malformed", sender.ID, types.EventAnnotationChange, err)
		return ErrMalformedEvent
	}

	if err := r.requireMembership(sender.ID, payload.SessionID); err != nil {
		r.drop("not_in_session", sender.ID, types.EventAnnotationChange, err)
		return err
	}

	annotation := payload.Annotation
	now := r.now().UTC()

	switch payload.Action {
	case types.ActionAdd:
		// Ownership of a new annotation is always the sender, regardless
		// of what the client put on the wire.
		annotation.OwnerID = sender.ID
		if annotation.ID == "" {
			annotation.ID = uuid.New().String()
		}
		annotation.CreatedAt = now
		annotation.UpdatedAt = now
		if err := r.annotations.AddAnnotation(ctx, annotation); err != nil {
			r.persistenceFailed(sender.ID, types.EventAnnotationChange, err)
		}

	case types.ActionUpdate, types.ActionDelete:
		// Fast reject at the router; the store repeats the owner check
		// authoritatively against the persisted row.
		if annotation.OwnerID != sender.ID {
			r.drop("unauthorized", sender.ID, types.EventAnnotationChange, ErrNotOwner)
			return ErrNotOwner
		}
		if annotation.ID == "" {
			r.drop("malformed", sender.ID, types.EventAnnotationChange, ErrMalformedEvent)
			return ErrMalformedEvent
		}
		annotation.UpdatedAt = now
		var err error
		if payload.Action == types.ActionUpdate {
			err = r.annotations.UpdateAnnotation(ctx, annotation, sender.ID)
		} else {
			err = r.annotations.DeleteAnnotation(ctx, annotation.ID, sender.ID)
		}
		if err != nil {
			r.persistenceFailed(sender.ID, types.EventAnnotationChange, err)
		}
	}

	r.broadcast(payload.SessionID, types.EventAnnotationSync, sender.ID, annotationSyncPayload{
		Annotation: annotation,
		Action:     payload.Action,
		UserID:     sender.ID,
		Timestamp:  now,
	}, sender.ID)
	return nil
}

func (r *Router) handleProgressChange(ctx context.Context, sender types.Actor, data json.RawMessage) error {
	var payload progressChangePayload
	if err := r.decode(data, &payload); err != nil {
		r.drop("malformed", sender.ID, types.EventProgressChange, err)
		return ErrMalformedEvent
	}

	if err := r.requireMembership(sender.ID, payload.SessionID); err != nil {
		r.drop("not_in_session", sender.ID, types.EventProgressChange, err)
		return err
	}

	if err := r.progress.RecordProgress(ctx, sender.ID, payload.SessionID, payload.Progress); err != nil {
		r.persistenceFailed(sender.ID, types.EventProgressChange, err)
	}

	r.broadcast(payload.SessionID, types.EventProgressSync, sender.ID, progressSyncPayload{
		Progress:  payload.Progress,
		UserID:    sender.ID,
		Timestamp: r.now().UTC(),
	}, sender.ID)
	return nil
}

func (r *Router) handleContentUpdate(ctx context.Context, sender types.Actor, data json.RawMessage) error {
	var payload contentUpdatePayload
	if err := r.decode(data, &payload); err != nil {
		r.drop("malformed", sender.ID, types.EventContentUpdate, err)
		return ErrMalformedEvent
	}

	if err := r.requireMembership(sender.ID, payload.SessionID); err != nil {
		r.drop("not_in_session", sender.ID, types.EventContentUpdate, err)
		return err
	}

	// Only the teacher drives shared content.
	if sender.Role != types.RoleTeacher {
		r.drop("unauthorized", sender.ID, types.EventContentUpdate, ErrUnauthorized)
		return ErrUnauthorized
	}

	r.broadcast(payload.SessionID, types.EventContentUpdate, sender.ID, contentUpdateOutPayload{
		Content:   payload.Content,
		UserID:    sender.ID,
		Timestamp: r.now().UTC(),
	}, sender.ID)
	return nil
}

func (r *Router) handleInteraction(ctx context.Context, sender types.Actor, data json.RawMessage) error {
	// Interactions carry a free-form payload and resolve their session
	// from the directory, not from the event itself.
	sessionID, ok := r.registry.Lookup(sender.ID)
	if !ok {
		r.drop("not_in_session", sender.ID, types.EventInteraction, ErrNotInSession)
		return ErrNotInSession
	}

	payload := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			r.drop("malformed", sender.ID, types.EventInteraction, err)
			return ErrMalformedEvent
		}
	}
	payload["userId"] = sender.ID
	payload["timestamp"] = r.now().UTC()

	// Interactions echo back to the sender as well.
	r.broadcast(sessionID, types.EventInteraction, sender.ID, payload, "")
	return nil
}

// decode unmarshals and validates an inbound payload.
func (r *Router) decode(data json.RawMessage, payload interface{}) error {
	if len(data) == 0 {
		return ErrMalformedEvent
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return err
	}
	return r.validate.Struct(payload)
}

// requireMembership checks that the sender is currently mapped to the
// session the event references.
func (r *Router) requireMembership(actorID, sessionID string) error {
	mapped, ok := r.registry.Lookup(actorID)
	if !ok || mapped != sessionID {
		return ErrNotInSession
	}
	return nil
}

func (r *Router) broadcast(sessionID, eventType, actorID string, payload interface{}, excludeActorID string) {
	r.metrics.Broadcast(eventType)
	r.rooms.BroadcastToSession(sessionID, &types.SyncMessage{
		EventType: eventType,
		ActorID:   actorID,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: r.now().UTC(),
	}, excludeActorID)
}

func (r *Router) drop(reason, actorID, eventType string, err error) {
	r.metrics.Dropped(reason)
	r.logger.Warn("event dropped", "reason", reason, "actor_id", actorID,
		"event_type", eventType, "error", err)
}

func (r *Router) persistenceFailed(actorID, eventType string, err error) {
	// Persisted state and broadcast state may diverge transiently;
	// annotations and progress are supplementary, not authoritative.
	r.logger.Error("persistence failed", "actor_id", actorID, "event_type", eventType, "error", err)
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"
	"studysync/internal/registry"
	"studysync/internal/websocket"
	"studysync/pkg/types"
)

// HealthChecker reports storage availability. Implemented by
// database.Manager.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server exposes the read-only monitoring API. Session lifecycle is
// driven entirely by connections; these endpoints only observe.
type Server struct {
	registry *registry.Registry
	rooms    *websocket.Rooms
	health   HealthChecker
	logger   *slog.Logger
}

// NewServer creates the API server.
func NewServer(reg *registry.Registry, rooms *websocket.Rooms, health HealthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: reg,
		rooms:    rooms,
		health:   health,
		logger:   logger.With("component", "api"),
	}
}

// Routes returns the API handler with middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.withCORS(mux)
}

type sessionSummary struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	CourseID         string `json:"course_id,omitempty"`
	TeacherID        string `json:"teacher_id,omitempty"`
	ParticipantCount int    `json:"participant_count"`
	CreatedAt        string `json:"created_at"`
}

func summarize(s *types.Session) sessionSummary {
	return sessionSummary{
		ID:               s.ID,
		Kind:             s.Kind,
		CourseID:         s.CourseID,
		TeacherID:        s.TeacherID,
		ParticipantCount: len(s.Participants),
		CreatedAt:        s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.Sessions()
	summaries := lo.Map(sessions, func(session *types.Session, _ int) sessionSummary {
		return summarize(session)
	})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": summaries,
		"count":    len(summaries),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":      summarize(session),
		"participants": session.Participants,
		"student_ids":  session.StudentIDs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	dbStatus := "ok"
	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		status = http.StatusServiceUnavailable
		dbStatus = "unavailable"
	}

	stats := s.registry.Stats()
	roomStats := s.rooms.Stats()

	s.writeJSON(w, status, map[string]interface{}{
		"status":            dbStatus,
		"active_sessions":   stats["active_sessions"],
		"connected_actors":  stats["connected_actors"],
		"total_connections": roomStats["total_connections"],
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

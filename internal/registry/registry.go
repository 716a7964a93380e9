package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"studysync/pkg/types"
)

// Key identifies a session for create-or-get. The encoded ID includes kind,
// originating actor and creation time so concurrent creation attempts by
// different actors never collide; same-key races resolve first-writer-wins.
type Key struct {
	Kind      string
	ActorID   string
	CreatedAt time.Time

	// Optional tutoring binding. When both are set the session is indexed
	// by (TeacherID, CourseID) and create-or-get returns any live session
	// already holding that pair.
	CourseID  string
	TeacherID string
}

// SessionID derives the wire-visible session identifier.
func (k Key) SessionID() string {
	return fmt.Sprintf("%s_%s_%s", k.Kind, k.ActorID, k.CreatedAt.UTC().Format("20060102_150405"))
}

type courseKey struct {
	teacherID string
	courseID  string
}

// Registry owns the live session set and the connection directory
// (actor -> session). Both live under one mutex: the consistency invariant
// "actor is a participant of s iff directory maps actor to s.ID" spans the
// two structures, so they are never observed or mutated independently.
// No I/O happens while the lock is held.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*types.Session
	directory map[string]string
	tutoring  map[courseKey]string
	logger    *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:  make(map[string]*types.Session),
		directory: make(map[string]string),
		tutoring:  make(map[courseKey]string),
		logger:    logger.With("component", "registry"),
	}
}

// JoinResult reports the outcome of AddParticipant.
type JoinResult struct {
	// Session is the joined session after the mutation.
	Session *types.Session

	// Previous is set when the actor was still mapped to another session
	// and had to be moved out of it first. Callers should broadcast a
	// participant-update to that room if it survived.
	Previous *LeaveResult
}

// LeaveResult reports the outcome of removing a participant.
type LeaveResult struct {
	SessionID string
	Destroyed bool

	// Session is the remaining session after the removal; nil when the
	// session was destroyed.
	Session *types.Session
}

// CreateOrGet returns the live session for key, allocating a new empty one
// if none exists. A tutoring-bound key first consults the (teacher, course)
// index, which is what makes the uniqueness invariant structural: there is
// never a scan whose order could matter.
func (r *Registry) CreateOrGet(key Key) *types.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key.TeacherID != "" && key.CourseID != "" {
		ck := courseKey{teacherID: key.TeacherID, courseID: key.CourseID}
		if sid, ok := r.tutoring[ck]; ok {
			if s, ok := r.sessions[sid]; ok {
				return s.Clone()
			}
			r.logger.Error("integrity violation: tutoring index references unknown session",
				"session_id", sid, "teacher_id", key.TeacherID, "course_id", key.CourseID)
			delete(r.tutoring, ck)
		}
	}

	sid := key.SessionID()
	if s, ok := r.sessions[sid]; ok {
		return s.Clone()
	}

	s := &types.Session{
		ID:           sid,
		Kind:         key.Kind,
		CreatedAt:    key.CreatedAt,
		Participants: []types.Participant{},
		StudentIDs:   []string{},
		CourseID:     key.CourseID,
		TeacherID:    key.TeacherID,
	}
	r.sessions[sid] = s
	if key.TeacherID != "" && key.CourseID != "" {
		r.tutoring[courseKey{teacherID: key.TeacherID, courseID: key.CourseID}] = sid
	}

	r.logger.Info("session created", "session_id", sid, "kind", key.Kind,
		"course_id", key.CourseID, "teacher_id", key.TeacherID)
	return s.Clone()
}

// Get returns a clone of the session, if it is live.
func (r *Registry) Get(sessionID string) (*types.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Lookup returns the session an actor currently belongs to.
func (r *Registry) Lookup(actorID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sid, ok := r.directory[actorID]
	return sid, ok
}

// FindTutoring returns the live tutoring session bound to the
// (teacher, course) pair.
func (r *Registry) FindTutoring(teacherID, courseID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sid, ok := r.tutoring[courseKey{teacherID: teacherID, courseID: courseID}]
	return sid, ok
}

// AddParticipant adds a join-time snapshot of actor to the session and
// records the directory mapping. Adding an actor already present in the
// same session is a no-op. An actor still mapped to a different session is
// moved out of it first, so the directory stays a partial function.
func (r *Registry) AddParticipant(sessionID string, actor types.Actor, joinedAt time.Time) (*JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	result := &JoinResult{}
	if prev, ok := r.directory[actor.ID]; ok {
		if prev == sessionID {
			result.Session = s.Clone()
			return result, nil
		}
		r.logger.Warn("actor rejoining from another session", "actor_id", actor.ID,
			"previous_session", prev, "session_id", sessionID)
		result.Previous = r.removeLocked(prev, actor.ID)
	}

	s.Participants = append(s.Participants, types.Participant{
		ActorID:     actor.ID,
		Role:        actor.Role,
		DisplayName: actor.DisplayName,
		JoinedAt:    joinedAt,
	})
	r.directory[actor.ID] = sessionID

	switch actor.Role {
	case types.RoleTeacher:
		if s.TeacherID == "" {
			s.TeacherID = actor.ID
		}
	case types.RoleStudent:
		s.StudentIDs = lo.Uniq(append(s.StudentIDs, actor.ID))
	}

	r.verifyLocked(s)
	result.Session = s.Clone()
	return result, nil
}

// RemoveParticipant removes the actor from the session and deletes the
// directory entry. The session is destroyed the instant its participant set
// becomes empty; Destroyed reports that so callers skip the broadcast.
func (r *Registry) RemoveParticipant(sessionID, actorID string) (*LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	if mapped, ok := r.directory[actorID]; !ok || mapped != sessionID {
		return nil, ErrNotInSession
	}

	return r.removeLocked(sessionID, actorID), nil
}

// removeLocked performs the removal under the already-held lock.
func (r *Registry) removeLocked(sessionID, actorID string) *LeaveResult {
	s, ok := r.sessions[sessionID]
	if !ok {
		r.logger.Error("integrity violation: directory references unknown session",
			"actor_id", actorID, "session_id", sessionID)
		delete(r.directory, actorID)
		return &LeaveResult{SessionID: sessionID, Destroyed: true}
	}

	before := len(s.Participants)
	s.Participants = lo.Reject(s.Participants, func(p types.Participant, _ int) bool {
		return p.ActorID == actorID
	})
	if len(s.Participants) == before {
		r.logger.Error("integrity violation: directory maps actor to session without membership",
			"actor_id", actorID, "session_id", sessionID)
	}
	delete(r.directory, actorID)

	if len(s.Participants) == 0 {
		delete(r.sessions, sessionID)
		if s.TeacherID != "" && s.CourseID != "" {
			delete(r.tutoring, courseKey{teacherID: s.TeacherID, courseID: s.CourseID})
		}
		r.logger.Info("session destroyed", "session_id", sessionID)
		return &LeaveResult{SessionID: sessionID, Destroyed: true}
	}

	return &LeaveResult{SessionID: sessionID, Session: s.Clone()}
}

// verifyLocked checks the session side of the consistency invariant and
// logs loudly when it is broken. A violation indicates a bug, not a state
// the caller can handle.
func (r *Registry) verifyLocked(s *types.Session) {
	for _, p := range s.Participants {
		if mapped, ok := r.directory[p.ActorID]; !ok || mapped != s.ID {
			r.logger.Error("integrity violation: participant without directory entry",
				"actor_id", p.ActorID, "session_id", s.ID)
		}
	}
}

// Sessions returns clones of all live sessions.
func (r *Registry) Sessions() []*types.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*types.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s.Clone())
	}
	return sessions
}

// Stats returns counters for monitoring.
func (r *Registry) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]int{
		"active_sessions":  len(r.sessions),
		"connected_actors": len(r.directory),
	}
}

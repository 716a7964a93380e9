package matcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"studysync/internal/registry"
	"studysync/pkg/interfaces"
	"studysync/pkg/types"
)

// Matcher routes a connecting actor into an existing session or creates a
// new one. Invoked once per successful connect. Course directory lookups
// happen here, before any registry call, so no external I/O ever runs
// under the registry lock.
type Matcher struct {
	registry *registry.Registry
	courses  interfaces.CourseDirectory
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a matcher.
func New(reg *registry.Registry, courses interfaces.CourseDirectory, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		registry: reg,
		courses:  courses,
		logger:   logger.With("component", "matcher"),
		now:      time.Now,
	}
}

// Match resolves the session for a connecting actor.
//
// Students with an active course assignment join the live tutoring session
// bound to their (teacher, course) pair when one exists; otherwise they get
// a private single-occupant session. Teachers connecting for tutoring bind
// their active course to the new session so later students can match it;
// reconnecting to a still-live pair returns the existing session.
func (m *Matcher) Match(ctx context.Context, actor types.Actor, requestedKind string) (*types.Session, error) {
	kind := requestedKind
	if !types.IsValidKind(kind) {
		kind = types.KindLearning
	}

	if actor.Role == types.RoleStudent {
		if session, ok := m.matchStudent(ctx, actor); ok {
			return session, nil
		}
	}

	key := registry.Key{
		Kind:      kind,
		ActorID:   actor.ID,
		CreatedAt: m.now(),
	}

	if actor.Role == types.RoleTeacher && kind == types.KindTutoring {
		assignment, err := m.courses.ActiveCourseForTeacher(ctx, actor.ID)
		switch {
		case err == nil:
			key.CourseID = assignment.CourseID
			key.TeacherID = actor.ID
		case errors.Is(err, interfaces.ErrNoActiveCourse):
			m.logger.Info("teacher has no active course, creating unbound tutoring session",
				"actor_id", actor.ID)
		default:
			m.logger.Warn("course directory lookup failed, creating unbound tutoring session",
				"actor_id", actor.ID, "error", err)
		}
	}

	return m.registry.CreateOrGet(key), nil
}

// matchStudent attempts to place a student into the tutoring session for
// their active assignment. Returns false to fall through to solo mode.
func (m *Matcher) matchStudent(ctx context.Context, actor types.Actor) (*types.Session, bool) {
	assignment, err := m.courses.ActiveCourseForStudent(ctx, actor.ID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNoActiveCourse) {
			m.logger.Warn("course directory lookup failed, falling back to solo session",
				"actor_id", actor.ID, "error", err)
		}
		return nil, false
	}

	sid, ok := m.registry.FindTutoring(assignment.TeacherID, assignment.CourseID)
	if !ok {
		return nil, false
	}
	session, ok := m.registry.Get(sid)
	if !ok {
		// The indexed session died between lookup and fetch; treat as no
		// match rather than failing the connect.
		m.logger.Warn("matched tutoring session vanished before join",
			"actor_id", actor.ID, "session_id", sid)
		return nil, false
	}

	m.logger.Info("student matched into tutoring session", "actor_id", actor.ID,
		"session_id", session.ID, "teacher_id", assignment.TeacherID, "course_id", assignment.CourseID)
	return session, true
}

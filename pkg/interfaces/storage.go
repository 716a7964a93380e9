package interfaces

import (
	"context"

	"studysync/pkg/types"
)

// ActorDirectory resolves connecting actors against the user directory.
// The coordinator never writes actors; user CRUD lives outside this core.
type ActorDirectory interface {
	// GetActor returns the actor for an ID, or ErrActorNotFound.
	GetActor(ctx context.Context, actorID string) (*types.Actor, error)
}

// CourseDirectory reports active course assignments used by the matcher.
type CourseDirectory interface {
	// ActiveCourseForStudent returns the student's current active
	// assignment, or ErrNoActiveCourse.
	ActiveCourseForStudent(ctx context.Context, studentID string) (*types.CourseAssignment, error)

	// ActiveCourseForTeacher returns the course the teacher is currently
	// leading, or ErrNoActiveCourse. Used to bind a tutoring session to
	// its (teacher, course) pair at creation time.
	ActiveCourseForTeacher(ctx context.Context, teacherID string) (*types.CourseAssignment, error)
}

// AnnotationStore persists annotation changes. Update and delete enforce
// the owner check internally; the router duplicates it as a fast reject.
// Writes are fire-and-forget: a nil return means the change was accepted
// for persistence, not that it already hit disk.
type AnnotationStore interface {
	AddAnnotation(ctx context.Context, annotation *types.Annotation) error
	UpdateAnnotation(ctx context.Context, annotation *types.Annotation, actorID string) error
	DeleteAnnotation(ctx context.Context, annotationID, actorID string) error
}

// ProgressStore records progress-change events.
type ProgressStore interface {
	RecordProgress(ctx context.Context, actorID, sessionID string, progress map[string]interface{}) error
}

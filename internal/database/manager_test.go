package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pkgdb "studysync/pkg/database"
	"studysync/pkg/interfaces"
	"studysync/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	config := pkgdb.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	m, err := NewManager(config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return m
}

func seed(t *testing.T, m *Manager, query string, args ...interface{}) {
	t.Helper()
	_, err := m.GetDB().Exec(query, args...)
	require.NoError(t, err)
}

func TestGetActor(t *testing.T) {
	m := newTestManager(t)
	seed(t, m, `INSERT INTO users (id, role, display_name) VALUES (?, ?, ?)`,
		"alice", types.RoleStudent, "Alice")

	actor, err := m.GetActor(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", actor.ID)
	require.Equal(t, types.RoleStudent, actor.Role)
	require.Equal(t, "Alice", actor.DisplayName)

	_, err = m.GetActor(context.Background(), "ghost")
	require.ErrorIs(t, err, interfaces.ErrActorNotFound)
}

func TestActiveCourseLookups(t *testing.T) {
	m := newTestManager(t)
	seed(t, m, `INSERT INTO course_assignments (course_id, student_id, teacher_id, status) VALUES (?, ?, ?, ?)`,
		"math101", "alice", "t1", "active")
	seed(t, m, `INSERT INTO course_assignments (course_id, student_id, teacher_id, status) VALUES (?, ?, ?, ?)`,
		"chem201", "bob", "t2", "completed")

	assignment, err := m.ActiveCourseForStudent(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "math101", assignment.CourseID)
	require.Equal(t, "t1", assignment.TeacherID)

	// Completed assignments do not count.
	_, err = m.ActiveCourseForStudent(context.Background(), "bob")
	require.ErrorIs(t, err, interfaces.ErrNoActiveCourse)

	assignment, err = m.ActiveCourseForTeacher(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "math101", assignment.CourseID)

	_, err = m.ActiveCourseForTeacher(context.Background(), "t2")
	require.ErrorIs(t, err, interfaces.ErrNoActiveCourse)
}

func TestAnnotationLifecycle(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now().UTC()

	annotation := &types.Annotation{
		ID:        "ann-1",
		CourseID:  "math101",
		OwnerID:   "alice",
		Type:      types.AnnotationNote,
		SpanStart: 10,
		SpanEnd:   25,
		NoteText:  "confusing step",
		Color:     "#FFD700",
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, m.AddAnnotation(ctx, annotation))
	require.NoError(t, m.Flush(ctx))

	var noteText string
	require.NoError(t, m.GetDB().QueryRow(
		`SELECT note_text FROM annotations WHERE id = ?`, "ann-1").Scan(&noteText))
	require.Equal(t, "confusing step", noteText)

	annotation.NoteText = "makes sense now"
	annotation.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, m.UpdateAnnotation(ctx, annotation, "alice"))
	require.NoError(t, m.Flush(ctx))

	require.NoError(t, m.GetDB().QueryRow(
		`SELECT note_text FROM annotations WHERE id = ?`, "ann-1").Scan(&noteText))
	require.Equal(t, "makes sense now", noteText)

	// A non-owner update is accepted for the queue but touches no rows.
	annotation.NoteText = "defaced"
	require.NoError(t, m.UpdateAnnotation(ctx, annotation, "bob"))
	require.NoError(t, m.Flush(ctx))

	require.NoError(t, m.GetDB().QueryRow(
		`SELECT note_text FROM annotations WHERE id = ?`, "ann-1").Scan(&noteText))
	require.Equal(t, "makes sense now", noteText)

	// Same for a non-owner delete.
	require.NoError(t, m.DeleteAnnotation(ctx, "ann-1", "bob"))
	require.NoError(t, m.Flush(ctx))

	var count int
	require.NoError(t, m.GetDB().QueryRow(
		`SELECT COUNT(*) FROM annotations WHERE id = ?`, "ann-1").Scan(&count))
	require.Equal(t, 1, count)

	require.NoError(t, m.DeleteAnnotation(ctx, "ann-1", "alice"))
	require.NoError(t, m.Flush(ctx))

	require.NoError(t, m.GetDB().QueryRow(
		`SELECT COUNT(*) FROM annotations WHERE id = ?`, "ann-1").Scan(&count))
	require.Equal(t, 0, count)
}

func TestRecordProgress(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	progress := map[string]interface{}{"chapter": 3, "percent": 42.5}
	require.NoError(t, m.RecordProgress(ctx, "alice", "learning_alice_20260901_100000", progress))
	require.NoError(t, m.RecordProgress(ctx, "alice", "learning_alice_20260901_100000", progress))
	require.NoError(t, m.Flush(ctx))

	var count int
	require.NoError(t, m.GetDB().QueryRow(
		`SELECT COUNT(*) FROM progress_events WHERE actor_id = ?`, "alice").Scan(&count))
	require.Equal(t, 2, count)

	var stored string
	require.NoError(t, m.GetDB().QueryRow(
		`SELECT progress FROM progress_events WHERE actor_id = ? LIMIT 1`, "alice").Scan(&stored))
	require.Contains(t, stored, `"chapter":3`)
}

func TestHealthCheck(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.HealthCheck(context.Background()))
}

func TestCloseRejectsFurtherWrites(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	err := m.RecordProgress(context.Background(), "alice", "s1", map[string]interface{}{})
	require.ErrorIs(t, err, interfaces.ErrStoreClosed)

	require.ErrorIs(t, m.Flush(context.Background()), interfaces.ErrStoreClosed)
}

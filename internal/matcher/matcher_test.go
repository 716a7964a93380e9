package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"studysync/internal/registry"
	"studysync/pkg/interfaces"
	"studysync/pkg/types"
)

type stubCourses struct {
	students map[string]*types.CourseAssignment
	teachers map[string]*types.CourseAssignment
	err      error
}

func (s *stubCourses) ActiveCourseForStudent(ctx context.Context, studentID string) (*types.CourseAssignment, error) {
	if s.err != nil {
		return nil, s.err
	}
	if a, ok := s.students[studentID]; ok {
		return a, nil
	}
	return nil, interfaces.ErrNoActiveCourse
}

func (s *stubCourses) ActiveCourseForTeacher(ctx context.Context, teacherID string) (*types.CourseAssignment, error) {
	if s.err != nil {
		return nil, s.err
	}
	if a, ok := s.teachers[teacherID]; ok {
		return a, nil
	}
	return nil, interfaces.ErrNoActiveCourse
}

var (
	teacher = types.Actor{ID: "t1", Role: types.RoleTeacher, DisplayName: "Ms. Vu"}
	alice   = types.Actor{ID: "alice", Role: types.RoleStudent, DisplayName: "Alice"}
)

func TestTeacherTutoringBindsActiveCourse(t *testing.T) {
	reg := registry.New(nil)
	courses := &stubCourses{
		teachers: map[string]*types.CourseAssignment{
			"t1": {CourseID: "math101", TeacherID: "t1"},
		},
	}
	m := New(reg, courses, nil)

	session, err := m.Match(context.Background(), teacher, types.KindTutoring)
	require.NoError(t, err)
	require.Equal(t, types.KindTutoring, session.Kind)
	require.Equal(t, "math101", session.CourseID)
	require.Equal(t, "t1", session.TeacherID)

	sid, ok := reg.FindTutoring("t1", "math101")
	require.True(t, ok)
	require.Equal(t, session.ID, sid)
}

func TestTeacherTutoringWithoutCourseStaysUnbound(t *testing.T) {
	reg := registry.New(nil)
	m := New(reg, &stubCourses{}, nil)

	session, err := m.Match(context.Background(), teacher, types.KindTutoring)
	require.NoError(t, err)
	require.Equal(t, types.KindTutoring, session.Kind)
	require.Empty(t, session.CourseID)

	_, ok := reg.FindTutoring("t1", "")
	require.False(t, ok)
}

func TestStudentMatchesLiveTutoringSession(t *testing.T) {
	reg := registry.New(nil)
	courses := &stubCourses{
		students: map[string]*types.CourseAssignment{
			"alice": {CourseID: "math101", TeacherID: "t1"},
		},
		teachers: map[string]*types.CourseAssignment{
			"t1": {CourseID: "math101", TeacherID: "t1"},
		},
	}
	m := New(reg, courses, nil)

	teacherSession, err := m.Match(context.Background(), teacher, types.KindTutoring)
	require.NoError(t, err)

	studentSession, err := m.Match(context.Background(), alice, types.KindLearning)
	require.NoError(t, err)
	require.Equal(t, teacherSession.ID, studentSession.ID)
}

func TestStudentWithoutAssignmentGetsSoloSession(t *testing.T) {
	reg := registry.New(nil)
	m := New(reg, &stubCourses{}, nil)

	session, err := m.Match(context.Background(), alice, types.KindLearning)
	require.NoError(t, err)
	require.Equal(t, types.KindLearning, session.Kind)
	require.Contains(t, session.ID, "learning_alice_")
}

func TestStudentWithAssignmentButNoLiveSessionFallsBack(t *testing.T) {
	reg := registry.New(nil)
	courses := &stubCourses{
		students: map[string]*types.CourseAssignment{
			"alice": {CourseID: "math101", TeacherID: "t1"},
		},
	}
	m := New(reg, courses, nil)

	session, err := m.Match(context.Background(), alice, types.KindLearning)
	require.NoError(t, err)
	require.Equal(t, types.KindLearning, session.Kind)
	require.Contains(t, session.ID, "learning_alice_")
}

func TestDirectoryFailureFallsBackToSolo(t *testing.T) {
	reg := registry.New(nil)
	m := New(reg, &stubCourses{err: errors.New("database unavailable")}, nil)

	session, err := m.Match(context.Background(), alice, types.KindLearning)
	require.NoError(t, err)
	require.Contains(t, session.ID, "learning_alice_")
}

func TestInvalidKindDefaultsToLearning(t *testing.T) {
	reg := registry.New(nil)
	m := New(reg, &stubCourses{}, nil)

	session, err := m.Match(context.Background(), alice, "party")
	require.NoError(t, err)
	require.Equal(t, types.KindLearning, session.Kind)
}

func TestTeacherReconnectReusesTutoringSession(t *testing.T) {
	reg := registry.New(nil)
	courses := &stubCourses{
		teachers: map[string]*types.CourseAssignment{
			"t1": {CourseID: "math101", TeacherID: "t1"},
		},
	}
	m := New(reg, courses, nil)
	m.now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }

	first, err := m.Match(context.Background(), teacher, types.KindTutoring)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC) }
	second, err := m.Match(context.Background(), teacher, types.KindTutoring)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
}

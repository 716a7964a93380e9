package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsValidActorID(t *testing.T) {
	valid := []string{"alice", "teacher_1", "user-42", "A1"}
	for _, id := range valid {
		require.True(t, IsValidActorID(id), "expected %q to be valid", id)
	}

	invalid := []string{"", "has space", "semi;colon", "a/b", string(make([]byte, 51))}
	for _, id := range invalid {
		require.False(t, IsValidActorID(id), "expected %q to be invalid", id)
	}
}

func TestIsValidRole(t *testing.T) {
	require.True(t, IsValidRole(RoleAdmin))
	require.True(t, IsValidRole(RoleTeacher))
	require.True(t, IsValidRole(RoleStudent))
	require.False(t, IsValidRole("superuser"))
	require.False(t, IsValidRole(""))
}

func TestIsValidKind(t *testing.T) {
	require.True(t, IsValidKind(KindLearning))
	require.True(t, IsValidKind(KindTutoring))
	require.False(t, IsValidKind("group"))
	require.False(t, IsValidKind(""))
}

func TestAnnotationValidate(t *testing.T) {
	tests := []struct {
		name       string
		annotation Annotation
		wantErr    error
	}{
		{
			name:       "valid highlight",
			annotation: Annotation{Type: AnnotationHighlight, SpanStart: 0, SpanEnd: 10},
		},
		{
			name:       "valid note with text",
			annotation: Annotation{Type: AnnotationNote, SpanStart: 5, SpanEnd: 5, NoteText: "check this"},
		},
		{
			name:       "unknown type",
			annotation: Annotation{Type: "doodle", SpanStart: 0, SpanEnd: 1},
			wantErr:    ErrInvalidAnnotationType,
		},
		{
			name:       "negative span start",
			annotation: Annotation{Type: AnnotationComment, SpanStart: -1, SpanEnd: 5},
			wantErr:    ErrInvalidTextSpan,
		},
		{
			name:       "end before start",
			annotation: Annotation{Type: AnnotationQuestion, SpanStart: 10, SpanEnd: 2},
			wantErr:    ErrInvalidTextSpan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.annotation.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSessionClone(t *testing.T) {
	original := &Session{
		ID:   "learning_alice_20260901_120000",
		Kind: KindLearning,
		Participants: []Participant{
			{ActorID: "alice", Role: RoleStudent, DisplayName: "Alice", JoinedAt: time.Now()},
		},
		StudentIDs: []string{"alice"},
	}

	clone := original.Clone()
	clone.Participants[0].DisplayName = "Changed"
	clone.StudentIDs[0] = "bob"
	clone.Participants = append(clone.Participants, Participant{ActorID: "extra"})

	require.Equal(t, "Alice", original.Participants[0].DisplayName)
	require.Equal(t, []string{"alice"}, original.StudentIDs)
	require.Len(t, original.Participants, 1)
}

func TestSessionParticipant(t *testing.T) {
	s := &Session{
		Participants: []Participant{
			{ActorID: "alice", Role: RoleStudent},
			{ActorID: "t1", Role: RoleTeacher},
		},
	}

	p, ok := s.Participant("t1")
	require.True(t, ok)
	require.Equal(t, RoleTeacher, p.Role)

	_, ok = s.Participant("nobody")
	require.False(t, ok)
}

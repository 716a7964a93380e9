package types

import (
	"encoding/json"
	"time"
)

// Actor roles, owned by the external user directory.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Session kinds.
const (
	KindLearning = "learning"
	KindTutoring = "tutoring"
)

// Inbound event types accepted by the router.
const (
	EventAnnotationChange = "annotation-change"
	EventProgressChange   = "progress-change"
	EventContentUpdate    = "content-update"
	EventInteraction      = "interaction"
)

// Outbound event types. Content updates are re-broadcast under their
// inbound name; interactions echo back to the sender as well.
const (
	EventParticipantUpdate = "participant-update"
	EventAnnotationSync    = "annotation-sync"
	EventProgressSync      = "progress-sync"
)

// Annotation actions.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Annotation types.
const (
	AnnotationHighlight = "highlight"
	AnnotationNote      = "note"
	AnnotationComment   = "comment"
	AnnotationQuestion  = "question"
)

// Actor is a read-only view of a user as resolved from the user directory.
type Actor struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

// Participant is a snapshot of an actor taken at join time. It is not a
// live reference; display name changes after joining are not reflected.
type Participant struct {
	ActorID     string    `json:"actor_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Session is a live collaborative room. Owned by the registry; all copies
// handed out by the registry are clones and safe to read without locking.
type Session struct {
	ID           string        `json:"id"`
	Kind         string        `json:"kind"`
	CreatedAt    time.Time     `json:"created_at"`
	Participants []Participant `json:"participants"`
	CourseID     string        `json:"course_id,omitempty"`
	TeacherID    string        `json:"teacher_id,omitempty"`
	StudentIDs   []string      `json:"student_ids"`
}

// Participant returns the join-time snapshot for an actor, if present.
func (s *Session) Participant(actorID string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ActorID == actorID {
			return p, true
		}
	}
	return Participant{}, false
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Participants = make([]Participant, len(s.Participants))
	copy(c.Participants, s.Participants)
	c.StudentIDs = make([]string, len(s.StudentIDs))
	copy(c.StudentIDs, s.StudentIDs)
	return &c
}

// Annotation is a text annotation on course content. OwnerID is the actor
// who created it; only the owner may update or delete it.
type Annotation struct {
	ID        string    `json:"id,omitempty"`
	CourseID  string    `json:"course_id,omitempty"`
	OwnerID   string    `json:"owner_actor_id"`
	Type      string    `json:"type"`
	SpanStart int       `json:"span_start"`
	SpanEnd   int       `json:"span_end"`
	NoteText  string    `json:"note_text,omitempty"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CourseAssignment is an active pairing of a student with a teacher-led
// course, as reported by the course directory.
type CourseAssignment struct {
	CourseID  string `json:"course_id"`
	TeacherID string `json:"teacher_id"`
}

// ClientEvent is the inbound websocket frame.
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SyncMessage is the outbound envelope for every broadcast.
type SyncMessage struct {
	EventType string      `json:"event_type"`
	ActorID   string      `json:"actor_id,omitempty"`
	SessionID string      `json:"session_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ParticipantUpdatePayload is the payload of a participant-update broadcast.
type ParticipantUpdatePayload struct {
	Participants []Participant `json:"participants"`
	SessionInfo  SessionInfo   `json:"session_info"`
}

// SessionInfo summarizes a session for clients.
type SessionInfo struct {
	SessionID        string `json:"session_id"`
	SessionKind      string `json:"session_kind"`
	ParticipantCount int    `json:"participant_count"`
}

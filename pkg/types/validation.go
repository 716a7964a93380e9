package types

import "regexp"

var actorIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidActorID checks that an actor ID is 1-50 characters of
// alphanumerics, underscore, or hyphen.
func IsValidActorID(actorID string) bool {
	if len(actorID) < 1 || len(actorID) > 50 {
		return false
	}
	return actorIDRegex.MatchString(actorID)
}

// IsValidRole reports whether role is one of the three known actor roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// IsValidKind reports whether kind is a known session kind.
func IsValidKind(kind string) bool {
	return kind == KindLearning || kind == KindTutoring
}

// IsValidAnnotationType reports whether t is a known annotation type.
func IsValidAnnotationType(t string) bool {
	switch t {
	case AnnotationHighlight, AnnotationNote, AnnotationComment, AnnotationQuestion:
		return true
	default:
		return false
	}
}

// IsValidAction reports whether action is a known annotation action.
func IsValidAction(action string) bool {
	switch action {
	case ActionAdd, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// Validate checks annotation fields that every action requires.
func (a *Annotation) Validate() error {
	if !IsValidAnnotationType(a.Type) {
		return ErrInvalidAnnotationType
	}
	if a.SpanStart < 0 || a.SpanEnd < a.SpanStart {
		return ErrInvalidTextSpan
	}
	return nil
}

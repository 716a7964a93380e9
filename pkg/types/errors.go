package types

import "errors"

var (
	ErrInvalidActorID        = errors.New("actor ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRole           = errors.New("invalid role: must be 'admin', 'teacher' or 'student'")
	ErrInvalidKind           = errors.New("invalid session kind: must be 'learning' or 'tutoring'")
	ErrInvalidAnnotationType = errors.New("invalid annotation type")
	ErrInvalidTextSpan       = errors.New("text span must satisfy 0 <= start <= end")
)

package interfaces

import "errors"

// Common errors shared across collaborator implementations.
var (
	ErrActorNotFound      = errors.New("actor not found")
	ErrNoActiveCourse     = errors.New("no active course assignment")
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrNotOwner           = errors.New("actor does not own this annotation")
	ErrStoreClosed        = errors.New("store is closed")
)

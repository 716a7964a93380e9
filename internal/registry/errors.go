package registry

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotInSession    = errors.New("actor is not a participant of this session")
)

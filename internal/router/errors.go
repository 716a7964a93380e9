package router

import "errors"

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedEvent   = errors.New("event is missing required fields")
	ErrNotInSession     = errors.New("sender is not in the referenced session")
	ErrNotOwner         = errors.New("sender does not own this annotation")
	ErrUnauthorized     = errors.New("sender role is not allowed to send this event")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

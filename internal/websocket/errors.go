package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout after 5 seconds")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Room registry errors
var (
	ErrNilConnection      = errors.New("connection cannot be nil")
	ErrConnectionNotBound = errors.New("connection must be bound to an actor before registration")
)

package router

import (
	"time"

	"studysync/pkg/types"
)

// Inbound payload shapes. Field names follow the client wire format;
// validate tags define the required-field checks whose failure drops the
// event as malformed.

type annotationChangePayload struct {
	SessionID  string            `json:"sessionId" validate:"required"`
	Action     string            `json:"action" validate:"required,oneof=add update delete"`
	Annotation *types.Annotation `json:"annotation" validate:"required"`
}

type progressChangePayload struct {
	SessionID string                 `json:"sessionId" validate:"required"`
	Progress  map[string]interface{} `json:"progress" validate:"required"`
}

type contentUpdatePayload struct {
	SessionID string                 `json:"sessionId" validate:"required"`
	Content   map[string]interface{} `json:"content" validate:"required"`
}

// Outbound payload shapes, exactly as consumed by the study and teaching
// interfaces.

type annotationSyncPayload struct {
	Annotation *types.Annotation `json:"annotation"`
	Action     string            `json:"action"`
	UserID     string            `json:"userId"`
	Timestamp  time.Time         `json:"timestamp"`
}

type progressSyncPayload struct {
	Progress  map[string]interface{} `json:"progress"`
	UserID    string                 `json:"userId"`
	Timestamp time.Time              `json:"timestamp"`
}

type contentUpdateOutPayload struct {
	Content   map[string]interface{} `json:"content"`
	UserID    string                 `json:"userId"`
	Timestamp time.Time              `json:"timestamp"`
}

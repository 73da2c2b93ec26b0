package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error
}

// NewEvent builds an event stamped with the current time, the request id and the acting user
func NewEvent(ctx context.Context, actor *auth.Actor, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
	if actor != nil {
		id := actor.UserID
		event.UserID = &id
		event.Username = actor.Username
	}
	return event
}

// On sets the resource the event concerns
func (e *Event) On(resourceType ResourceType, resourceID string) *Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// With adds a metadata entry
func (e *Event) With(key string, value interface{}) *Event {
	e.Metadata[key] = value
	return e
}

// Describe sets the human-readable message
func (e *Event) Describe(message string) *Event {
	e.Message = message
	return e
}

// NoopLogger discards events
type NoopLogger struct{}

// Log implements Logger
func (NoopLogger) Log(context.Context, *Event) error { return nil }

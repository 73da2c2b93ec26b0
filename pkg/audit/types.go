package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthSignup      EventType = "auth.signup"
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"
	EventTypeAuthCodeExpired EventType = "auth.code_expired"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"
	EventTypeAuthzRoleReset    EventType = "authz.role_reset"

	// Admin events
	EventTypeAdminUserCreate EventType = "admin.user_create"
	EventTypeAdminUserUpdate EventType = "admin.user_update"
	EventTypeAdminUserDelete EventType = "admin.user_delete"

	// Catalog events
	EventTypeCatalogCreate EventType = "catalog.create"
	EventTypeCatalogUpdate EventType = "catalog.update"
	EventTypeCatalogDelete EventType = "catalog.delete"

	// Moderation events, recorded when someone other than the author edits content
	EventTypeModerationEdit   EventType = "moderation.edit"
	EventTypeModerationDelete EventType = "moderation.delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being acted on
type ResourceType string

const (
	ResourceTypeUser     ResourceType = "user"
	ResourceTypeCategory ResourceType = "category"
	ResourceTypeGenre    ResourceType = "genre"
	ResourceTypeTitle    ResourceType = "title"
	ResourceTypeReview   ResourceType = "review"
	ResourceTypeComment  ResourceType = "comment"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/verdict/pkg/storage"
)

// DBLogger persists audit events to the audit_events table
type DBLogger struct {
	db storage.Querier
}

// NewDBLogger creates a new database-backed audit logger. The table is created by storage.Migrate.
func NewDBLogger(db storage.Querier) *DBLogger {
	return &DBLogger{db: db}
}

// Log inserts the event and records its id
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			occurred_at, event_type, status,
			user_id, username,
			resource_type, resource_id,
			request_id, message, metadata
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7,
			$8, $9, $10
		) RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.EventType), string(event.Status),
		event.UserID, event.Username,
		string(event.ResourceType), event.ResourceID,
		event.RequestID, event.Message, string(metadata),
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// Recent returns the newest events, most recent first
func (l *DBLogger) Recent(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, occurred_at, event_type, status, user_id, username,
			resource_type, resource_id, request_id, message, metadata
		FROM audit_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var userID *int64
		var metadata string
		if err := rows.Scan(
			&event.ID, &event.Timestamp, &event.EventType, &event.Status, &userID, &event.Username,
			&event.ResourceType, &event.ResourceID, &event.RequestID, &event.Message, &metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.UserID = userID
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

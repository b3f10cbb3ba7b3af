package events

import "time"

// EventType represents the type of event.
type EventType string

const (
	// EventTypeRun represents a backfill run lifecycle event.
	EventTypeRun EventType = "run"
	// EventTypeBackfill represents a backfill lifecycle event.
	EventTypeBackfill EventType = "backfill"
	// EventTypeCustom represents a custom event.
	EventTypeCustom EventType = "custom"
)

// Event statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Event is one entry in the persistent event queue.
type Event struct {
	ID          string        // Unique event ID
	Type        EventType     // Event type
	Source      string        // Event source (scheduler, api, ...)
	Action      string        // Specific action (execute, complete, ...)
	Payload     any           // Event payload (JSON-serializable)
	Metadata    EventMetadata // Additional metadata
	CreatedAt   time.Time     // When the event was created
	ProcessAt   *time.Time    // When to process (nil = immediate)
	ProcessedAt *time.Time    // When the event was processed
	Status      string        // pending, processing, completed, failed
}

// EventMetadata carries tracing context for an event.
type EventMetadata struct {
	RequestID string         // Request ID for tracing
	Extra     map[string]any // Additional metadata
}

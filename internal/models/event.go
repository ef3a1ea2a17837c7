package models

import "time"

// Event type constants
const (
	EventQuoteCaptured     = "QUOTE_CAPTURED"
	EventSnapshotRefreshed = "SNAPSHOT_REFRESHED"
)

// QuoteEvent carries one captured option quote from the collector
type QuoteEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	Project   string    `json:"project"`
	Data      OptionRow `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotEvent announces that a project snapshot was rebuilt
type SnapshotEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Project     string    `json:"project"`
	LastUpdated time.Time `json:"last_updated"`
	Summary     Summary   `json:"summary"`
	Timestamp   time.Time `json:"timestamp"`
}

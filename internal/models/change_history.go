package models

import "time"

// FieldChange is one changed attribute inside a history entry.
type FieldChange struct {
	Field    Field  `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// ChangeHistoryEntry is an immutable audit record of one mutation of an
// inspection. Entries are append-only.
type ChangeHistoryEntry struct {
	ID           string        `json:"id"`
	InspectionID string        `json:"inspectionId"`
	Timestamp    time.Time     `json:"timestamp"`
	UserID       string        `json:"userId"`
	Username     string        `json:"username"`
	Changes      []FieldChange `json:"changes"`
}

package models

import "time"

// Job history event types.
const (
	EventStart           = "START"
	EventPause           = "PAUSE"
	EventResume          = "RESUME"
	EventDoorOpen        = "DOOR_OPEN"
	EventComplete        = "COMPLETE"
	EventCancel          = "CANCEL"
	EventOverridePotency = "OVERRIDE_POTENCY"
	EventOverrideTime    = "OVERRIDE_TIME"
)

// JobEvent is a single history entry.
type JobEvent struct {
	EventID     string    `json:"event_id"`
	JobID       string    `json:"job_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // START | PAUSE | RESUME | DOOR_OPEN | COMPLETE | CANCEL | OVERRIDE_*
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

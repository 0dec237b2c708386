package models

import "time"

// Status is the device-level state shared by the whole controller.
type Status string

const (
	StatusJobLess  Status = "JOBLESS"
	StatusReady    Status = "READY"
	StatusRunning  Status = "RUNNING"
	StatusPaused   Status = "PAUSED"
	StatusDoorOpen Status = "DOOR_OPEN"
)

// Idle reports whether a new job may be started from this status.
func (s Status) Idle() bool {
	return s == StatusJobLess || s == StatusReady
}

// Heating reports whether potency/time overrides are locked.
func (s Status) Heating() bool {
	return s == StatusRunning || s == StatusDoorOpen
}

// Job is the template loaded into the device plus its countdown.
type Job struct {
	ID        string    `json:"id,omitempty"`
	Template  Template  `json:"template"`
	TimeLeft  int       `json:"time_left"` // seconds
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Snapshot is a point-in-time copy of the device; safe to use after the
// controller lock is released.
type Snapshot struct {
	Status Status `json:"status"`
	Job    Job    `json:"job"`
	Loaded bool   `json:"loaded"` // a job or template has been loaded at least once
}

package service

import "time"

// HistoryFilter narrows job history by time range, event type and job.
type HistoryFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "START", "PAUSE", "RESUME", "DOOR_OPEN", "COMPLETE", "CANCEL", "OVERRIDE_POTENCY", "OVERRIDE_TIME"
	JobID string    // "" means every job
}

// Config tunes the services built by NewService.
type Config struct {
	TemplateFile     string        // resolved through the template repository
	TickInterval     time.Duration // clock period; zero means one second
	BuiltinTemplates bool          // merge the factory templates at initialization
	HistoryBuffer    int           // recorder buffer; zero means the default
}

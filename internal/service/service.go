package service

import (
	"context"
	"time"

	"digital_microwave/internal/clock"
	"digital_microwave/internal/logger"
	"digital_microwave/internal/models"
	"digital_microwave/internal/repository"
)

// Device is the controller surface offered to whatever hosts it.
type Device interface {
	Initialize(ctx context.Context) error
	Close() error

	Start(ctx context.Context, raw string) error
	StartTemplate(ctx context.Context, name string) error
	Pause() error
	OpenDoor() error
	Resume() error
	Cancel() (string, error)
	OverridePotency(p int) error
	OverrideTimeleft(v string) error
	OverrideTimeleftSeconds(secs int) error

	GetStatus() models.Status
	Snapshot() models.Snapshot

	GetTemplates(name string, kind models.KindFilter) ([]models.Template, error)
	SaveTemplate(t models.Template) ([]models.Template, error)
	DeleteTemplate(t models.Template, kind models.KindFilter) ([]models.Template, error)
	PersistTemplates(ctx context.Context) error
}

// History exposes the job event log with filtering access.
type History interface {
	List(ctx context.Context, f HistoryFilter) ([]models.JobEvent, error)
	Summary(ctx context.Context, since time.Time) (map[string]int, error)
}

// Service aggregates the device and its history. Recorder is nil when no
// history repository is configured; otherwise the host must Run it.
type Service struct {
	Device
	History
	Recorder *Recorder
}

// NewService wires the repository layer into one controller instance.
func NewService(repos *repository.Repository, log *logger.Logger, cfg Config) *Service {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = clock.DefaultInterval
	}

	opts := []Option{
		WithLogger(log),
		WithClock(clock.NewTicker(interval, log)),
		WithTemplateFile(cfg.TemplateFile),
	}
	if !cfg.BuiltinTemplates {
		opts = append(opts, WithBuiltinTemplates(nil))
	}

	var rec *Recorder
	if repos.History != nil {
		rec = NewRecorder(repos.History, log, cfg.HistoryBuffer)
		opts = append(opts, WithEventSink(rec))
	}

	return &Service{
		Device:   NewController(repos.Templates, opts...),
		History:  NewHistoryService(repos.History),
		Recorder: rec,
	}
}

package service

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	microwave "digital_microwave"
	"digital_microwave/internal/apperror"
	"digital_microwave/internal/clock"
	"digital_microwave/internal/library"
	"digital_microwave/internal/logger"
	"digital_microwave/internal/models"
	"digital_microwave/internal/repository"
	"digital_microwave/internal/validate"

	"github.com/google/uuid"
)

// DefaultTemplateFile is the library file name resolved through the repository.
const DefaultTemplateFile = "JobTemplates.json"

// User-facing state messages.
const (
	msgNotInitialized = "device is not initialized"
	msgInitialized    = "device is already initialized"
	msgClosed         = "device is shut down"
	msgAlreadyRunning = "microwave is already running a job"
	msgNotRunning     = "no job is running"
	msgNotSuspended   = "no paused job to resume"
	msgHeating        = "cannot change while heating"
)

// EventSink receives job history events. Record must not block.
type EventSink interface {
	Record(e models.JobEvent) bool
}

type nopSink struct{}

func (nopSink) Record(models.JobEvent) bool { return false }

// Controller owns the template library and the current job. Every public
// operation and the clock tick run under mu; repository I/O happens outside
// it.
type Controller struct {
	templates repository.TemplateRepo
	clock     clock.Clock
	sink      EventSink
	log       *logger.Logger
	builtin   []models.Template
	fileName  string
	now       func() time.Time

	mu          sync.Mutex
	library     *library.Library
	job         models.Job
	status      models.Status
	loaded      bool
	initialized bool
	closed      bool
}

type Option func(*Controller)

func WithClock(c clock.Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

func WithEventSink(s EventSink) Option { return func(ctl *Controller) { ctl.sink = s } }

func WithLogger(l *logger.Logger) Option { return func(ctl *Controller) { ctl.log = l } }

// WithBuiltinTemplates replaces the factory templates merged in at
// initialization. An empty list disables them.
func WithBuiltinTemplates(ts []models.Template) Option {
	return func(ctl *Controller) { ctl.builtin = slices.Clone(ts) }
}

func WithTemplateFile(name string) Option {
	return func(ctl *Controller) {
		if strings.TrimSpace(name) != "" {
			ctl.fileName = name
		}
	}
}

func NewController(templates repository.TemplateRepo, opts ...Option) *Controller {
	c := &Controller{
		templates: templates,
		sink:      nopSink{},
		builtin:   repository.DefaultTemplates(),
		fileName:  DefaultTemplateFile,
		now:       func() time.Time { return time.Now().UTC() },
		job:       defaultJob(),
		status:    models.StatusJobLess,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log)
	if c.sink == nil {
		c.sink = nopSink{}
	}
	if c.clock == nil {
		c.clock = clock.NewTicker(clock.DefaultInterval, c.log)
	}
	return c
}

func defaultJob() models.Job {
	return models.Job{
		Template: models.Template{
			Potency:  models.DefaultPotency,
			Duration: models.DefaultDuration,
		},
		TimeLeft: models.DefaultDuration,
	}
}

// Initialize loads the persisted templates, seeds the library and starts the
// clock. The device is READY when any template exists, JOBLESS otherwise.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	blocked := c.initialized || c.closed
	c.mu.Unlock()
	if blocked {
		return apperror.State(msgInitialized)
	}

	path, err := c.templates.ResolvePath(c.fileName)
	if err != nil {
		return apperror.IO("resolve template file", err)
	}
	persisted, err := c.templates.LoadTemplates(path)
	if err != nil {
		return apperror.IO("load templates", err)
	}
	lib := library.New()
	lib.LoadInitial(persisted, c.builtin)

	c.mu.Lock()
	if c.initialized || c.closed {
		c.mu.Unlock()
		return apperror.State(msgInitialized)
	}
	c.library = lib
	c.job = defaultJob()
	c.loaded = lib.Len() > 0
	c.status = c.idleStatusLocked()
	c.initialized = true
	status := c.status
	c.mu.Unlock()

	if err := c.clock.Start(c.Tick); err != nil {
		c.mu.Lock()
		c.initialized = false
		c.library = nil
		c.status = models.StatusJobLess
		c.mu.Unlock()
		return &apperror.Error{Kind: apperror.KindState, Msg: "start clock", Err: err}
	}

	// a Close that ran before the clock started could not stop it
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.clock.Stop()
		return apperror.State(msgClosed)
	}

	c.log.Infow("device_initialized",
		"path", path,
		"persisted", len(persisted),
		"templates", lib.Len(),
		"status", status,
	)
	return nil
}

// Close stops the clock. Safe to call more than once. Afterwards the device
// rejects every operation that would change the job; reads, Cancel and
// PersistTemplates still work.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.clock.Stop()
	c.log.Infow("device_closed")
	return nil
}

// Start loads a job and begins heating. raw is either a path to a job
// document or the document itself. A document holding only a name starts
// the library template of that name.
func (c *Controller) Start(ctx context.Context, raw string) error {
	if err := c.checkCanStart(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	input := raw
	if path, ok := c.templates.TryResolveInputAsPath(raw); ok {
		text, err := c.templates.ReadText(path)
		if err != nil {
			return apperror.IO("read job document", err)
		}
		input = text
	}

	doc, err := microwave.DecodeJobDocument(input)
	if err != nil {
		return apperror.IO("decode job document", err)
	}
	tpl, err := doc.ToTemplate()
	if err != nil {
		return apperror.IO("decode job document", err)
	}

	return c.apply(func() (*models.JobEvent, error) {
		if doc.IsReference() {
			if stored, ok := c.library.Find(doc.Name); ok {
				tpl = stored
			}
		}
		return c.startLocked(tpl)
	})
}

// StartTemplate starts the library template with the given name.
func (c *Controller) StartTemplate(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.apply(func() (*models.JobEvent, error) {
		tpl, ok := c.library.Find(name)
		if !ok {
			return nil, apperror.State("template not found")
		}
		return c.startLocked(tpl)
	})
}

func (c *Controller) checkCanStart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.operableLocked(); err != nil {
		return err
	}
	if !c.status.Idle() {
		return apperror.State(msgAlreadyRunning)
	}
	return nil
}

func (c *Controller) startLocked(tpl models.Template) (*models.JobEvent, error) {
	// status may have changed while the document was being read
	if !c.status.Idle() {
		return nil, apperror.State(msgAlreadyRunning)
	}
	if err := validate.Job(tpl); err != nil {
		return nil, err
	}

	c.job = models.Job{
		ID:        uuid.NewString(),
		Template:  tpl,
		TimeLeft:  tpl.Duration,
		StartedAt: c.now(),
	}
	c.loaded = true
	c.status = models.StatusRunning
	return c.eventLocked(models.EventStart, "job started", map[string]any{
		"name":      tpl.Name,
		"meal_kind": tpl.Kind,
		"potency":   tpl.Potency,
		"time_left": tpl.Duration,
	}), nil
}

// Tick advances the running job by one second. It never fails; in any state
// other than RUNNING it does nothing.
func (c *Controller) Tick() {
	c.mu.Lock()
	if !c.initialized || c.closed || c.status != models.StatusRunning {
		c.mu.Unlock()
		return
	}
	if c.job.TimeLeft > 0 {
		c.job.TimeLeft--
	}
	var ev *models.JobEvent
	if c.job.TimeLeft <= 0 {
		c.job.TimeLeft = 0
		c.status = models.StatusReady
		ev = c.eventLocked(models.EventComplete, "job finished", nil)
	}
	jobID, left := c.job.ID, c.job.TimeLeft
	c.mu.Unlock()

	c.log.Debugw("tick", "job_id", jobID, "time_left", left)
	if ev != nil {
		c.emit(*ev)
	}
}

func (c *Controller) Pause() error {
	return c.apply(func() (*models.JobEvent, error) {
		if c.status != models.StatusRunning {
			return nil, apperror.State(msgNotRunning)
		}
		c.status = models.StatusPaused
		return c.eventLocked(models.EventPause, "job paused", nil), nil
	})
}

// OpenDoor suspends a running job the way Pause does, in its own state.
func (c *Controller) OpenDoor() error {
	return c.apply(func() (*models.JobEvent, error) {
		if c.status != models.StatusRunning {
			return nil, apperror.State(msgNotRunning)
		}
		c.status = models.StatusDoorOpen
		return c.eventLocked(models.EventDoorOpen, "door opened while heating", nil), nil
	})
}

func (c *Controller) Resume() error {
	return c.apply(func() (*models.JobEvent, error) {
		if c.status != models.StatusPaused && c.status != models.StatusDoorOpen {
			return nil, apperror.State(msgNotSuspended)
		}
		from := c.status
		c.status = models.StatusRunning
		return c.eventLocked(models.EventResume, "job resumed", map[string]any{"from": from}), nil
	})
}

// Cancel discards the job from any status and resets potency and time to
// their defaults. It returns the resulting current-job document.
func (c *Controller) Cancel() (string, error) {
	c.mu.Lock()
	from := c.status
	jobID := c.job.ID
	c.job.ID = ""
	c.job.StartedAt = time.Time{}
	c.job.Template.Potency = models.DefaultPotency
	c.job.Template.Duration = models.DefaultDuration
	c.job.TimeLeft = models.DefaultDuration
	c.status = c.idleStatusLocked()
	doc := microwave.FromJob(c.job)
	hadJob := jobID != "" || !from.Idle()
	ev := models.JobEvent{
		EventID:     uuid.NewString(),
		JobID:       jobID,
		OccurredAt:  c.now(),
		Type:        models.EventCancel,
		Description: "job cancelled",
		Metadata:    map[string]any{"from": from},
	}
	c.mu.Unlock()

	if hadJob {
		c.emit(ev)
	}
	return doc.Encode()
}

// OverridePotency replaces the loaded job's potency while not heating.
func (c *Controller) OverridePotency(p int) error {
	return c.apply(func() (*models.JobEvent, error) {
		if c.status.Heating() {
			return nil, apperror.State(msgHeating)
		}
		if err := validate.Potency(p); err != nil {
			return nil, err
		}
		c.job.Template.Potency = p
		return c.eventLocked(models.EventOverridePotency, "potency changed", map[string]any{"potency": p}), nil
	})
}

// OverrideTimeleft takes a wall-clock style "m:ss" value.
func (c *Controller) OverrideTimeleft(v string) error {
	return c.apply(func() (*models.JobEvent, error) {
		if c.status.Heating() {
			return nil, apperror.State(msgHeating)
		}
		secs, err := validate.ClockValue(v)
		if err != nil {
			return nil, err
		}
		return c.overrideTimeleftLocked(secs)
	})
}

func (c *Controller) OverrideTimeleftSeconds(secs int) error {
	return c.apply(func() (*models.JobEvent, error) {
		if c.status.Heating() {
			return nil, apperror.State(msgHeating)
		}
		return c.overrideTimeleftLocked(secs)
	})
}

func (c *Controller) overrideTimeleftLocked(secs int) (*models.JobEvent, error) {
	if err := validate.Duration(secs); err != nil {
		return nil, err
	}
	c.job.TimeLeft = secs
	c.job.Template.Duration = secs
	return c.eventLocked(models.EventOverrideTime, "time left changed", map[string]any{"time_left": secs}), nil
}

func (c *Controller) GetStatus() models.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Snapshot returns a copy of the device state.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.Snapshot{Status: c.status, Job: c.job, Loaded: c.loaded}
}

// GetTemplates lists templates whose name contains name and whose kind
// matches kind, in library order.
func (c *Controller) GetTemplates(name string, kind models.KindFilter) ([]models.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, apperror.State(msgNotInitialized)
	}
	return collect(c.library.Filter(name, kind)), nil
}

// SaveTemplate stores a user template (always deletable) and returns the
// templates of the same kind.
func (c *Controller) SaveTemplate(t models.Template) ([]models.Template, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Deletable = true
	if err := validate.Template(t); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.operableLocked(); err != nil {
		return nil, err
	}
	if err := c.library.Save(t); err != nil {
		return nil, err
	}
	c.loaded = true
	if c.status == models.StatusJobLess {
		c.status = models.StatusReady
	}
	return collect(c.library.Filter("", models.OnlyKind(t.Kind))), nil
}

// DeleteTemplate removes a user template and returns the templates matching
// kind. Factory templates are rejected.
func (c *Controller) DeleteTemplate(t models.Template, kind models.KindFilter) ([]models.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.operableLocked(); err != nil {
		return nil, err
	}
	if err := c.library.Delete(t.Name); err != nil {
		return nil, err
	}
	return collect(c.library.Filter("", kind)), nil
}

// PersistTemplates writes the current library through the repository. The
// lock is only held while taking the snapshot.
func (c *Controller) PersistTemplates(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return apperror.State(msgNotInitialized)
	}
	snapshot := c.library.All()
	c.mu.Unlock()

	path, err := c.templates.ResolvePath(c.fileName)
	if err != nil {
		return apperror.IO("resolve template file", err)
	}
	if err := c.templates.SaveTemplates(path, snapshot); err != nil {
		return apperror.IO("save templates", err)
	}
	c.log.Infow("templates_persisted", "path", path, "count", len(snapshot))
	return nil
}

// apply runs fn under the lock on an initialized device and publishes the
// resulting event after unlocking. fn must not mutate state when it fails.
func (c *Controller) apply(fn func() (*models.JobEvent, error)) error {
	c.mu.Lock()
	if err := c.operableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	ev, err := fn()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if ev != nil {
		c.emit(*ev)
	}
	return nil
}

func (c *Controller) operableLocked() error {
	if !c.initialized {
		return apperror.State(msgNotInitialized)
	}
	if c.closed {
		return apperror.State(msgClosed)
	}
	return nil
}

func (c *Controller) eventLocked(typ, desc string, meta map[string]any) *models.JobEvent {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["status"] = c.status
	meta["time_left"] = c.job.TimeLeft
	return &models.JobEvent{
		EventID:     uuid.NewString(),
		JobID:       c.job.ID,
		OccurredAt:  c.now(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	}
}

func (c *Controller) emit(ev models.JobEvent) {
	c.sink.Record(ev)
	c.log.Infow("job_"+strings.ToLower(ev.Type), "job_id", ev.JobID, "meta", ev.Metadata)
}

func (c *Controller) idleStatusLocked() models.Status {
	if c.loaded {
		return models.StatusReady
	}
	return models.StatusJobLess
}

// collect materialises seq; an empty result is an empty, non-nil slice.
func collect(seq iter.Seq[models.Template]) []models.Template {
	out := []models.Template{}
	for t := range seq {
		out = append(out, t)
	}
	return out
}

// Ensure implementation of Device interface at compile time.
var _ Device = (*Controller)(nil)

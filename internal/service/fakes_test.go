package service

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"digital_microwave/internal/clock"
	"digital_microwave/internal/models"
	"digital_microwave/internal/repository"
)

// ---- Test doubles ----

// fakeTemplateRepo keeps files in memory and records every call.
type fakeTemplateRepo struct {
	mu sync.Mutex

	dir     string
	stored  map[string][]models.Template
	docs    map[string]string
	loadErr error
	saveErr error
	readErr error

	loadCalls int
	saveCalls int
	lastSaved []models.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{
		dir:    "/data",
		stored: map[string][]models.Template{},
		docs:   map[string]string{},
	}
}

func (f *fakeTemplateRepo) ResolvePath(fileName string) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		return "", errors.New("empty file name")
	}
	return path.Join(f.dir, fileName), nil
}

func (f *fakeTemplateRepo) LoadTemplates(p string) ([]models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]models.Template(nil), f.stored[p]...), nil
}

func (f *fakeTemplateRepo) SaveTemplates(p string, ts []models.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.lastSaved = append([]models.Template(nil), ts...)
	f.stored[p] = f.lastSaved
	return nil
}

func (f *fakeTemplateRepo) TryResolveInputAsPath(raw string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw = strings.TrimSpace(raw)
	_, ok := f.docs[raw]
	return raw, ok
}

func (f *fakeTemplateRepo) ReadText(p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.docs[p], nil
}

var _ repository.TemplateRepo = (*fakeTemplateRepo)(nil)

// captureSink collects events recorded by the controller.
type captureSink struct {
	mu     sync.Mutex
	events []models.JobEvent
}

func (s *captureSink) Record(e models.JobEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return true
}

func (s *captureSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func (s *captureSink) count(typ string) int {
	n := 0
	for _, t := range s.types() {
		if t == typ {
			n++
		}
	}
	return n
}

// memHistoryRepo is an in-memory repository.HistoryRepo.
type memHistoryRepo struct {
	mu        sync.Mutex
	events    []models.JobEvent
	appendErr error
	listErr   error
	lastQuery repository.HistoryQuery
	listCalls int

	appendCalls int
}

func (m *memHistoryRepo) Append(ctx context.Context, e models.JobEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if m.appendErr != nil {
		return m.appendErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memHistoryRepo) List(ctx context.Context, q repository.HistoryQuery) ([]models.JobEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	m.lastQuery = q
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.JobEvent
	for _, e := range m.events {
		if !q.From.IsZero() && e.OccurredAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.OccurredAt.After(q.To) {
			continue
		}
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		if q.JobID != "" && e.JobID != q.JobID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memHistoryRepo) attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls
}

func (m *memHistoryRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// ---- Shared helpers ----

func testBuiltins() []models.Template {
	return []models.Template{
		{Name: "Popcorn", Kind: models.MealKindPopcorn, Potency: 9, Duration: 120},
		{Name: "Milk", Kind: models.MealKindBeverage, Potency: 5, Duration: 60},
		{Name: "Leftovers", Kind: models.MealKindLeftovers, Potency: 7, Duration: 90},
	}
}

type testDevice struct {
	*Controller
	clock *clock.Manual
	repo  *fakeTemplateRepo
	sink  *captureSink
}

func newTestDevice(t *testing.T, opts ...Option) *testDevice {
	t.Helper()
	d := &testDevice{
		clock: clock.NewManual(),
		repo:  newFakeTemplateRepo(),
		sink:  &captureSink{},
	}
	base := []Option{
		WithClock(d.clock),
		WithEventSink(d.sink),
		WithBuiltinTemplates(testBuiltins()),
	}
	d.Controller = NewController(d.repo, append(base, opts...)...)
	d.Controller.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func newInitializedDevice(t *testing.T, opts ...Option) *testDevice {
	t.Helper()
	d := newTestDevice(t, opts...)
	if err := d.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func mustStart(t *testing.T, d *testDevice, raw string) {
	t.Helper()
	if err := d.Start(context.Background(), raw); err != nil {
		t.Fatalf("Start(%s): %v", raw, err)
	}
}

func templateNames(ts []models.Template) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

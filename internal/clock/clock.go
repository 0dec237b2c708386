// Package clock drives the controller's tick handler at a fixed interval.
package clock

import (
	"errors"
	"sync"
	"time"

	"digital_microwave/internal/logger"
)

// DefaultInterval is the production tick period.
const DefaultInterval = 1 * time.Second

var (
	ErrAlreadyStarted = errors.New("clock already started")
	ErrStopped        = errors.New("clock stopped")
	errBadInterval    = errors.New("clock interval must be positive")
)

// Clock fires tick for its whole lifetime, from Start until Stop.
// Stop must be safe to call more than once.
type Clock interface {
	Start(tick func()) error
	Stop()
}

// Ticker is the production clock: one goroutine around a time.Ticker.
type Ticker struct {
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	quit    chan struct{}
	done    chan struct{}
}

func NewTicker(interval time.Duration, log *logger.Logger) *Ticker {
	return &Ticker{interval: interval, log: logger.OrNop(log)}
}

// Start launches the tick loop. A Ticker starts at most once.
func (t *Ticker) Start(tick func()) error {
	if t.interval <= 0 {
		return errBadInterval
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return ErrStopped
	}
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	t.quit = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(tick)
	return nil
}

func (t *Ticker) run(tick func()) {
	defer close(t.done)
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-t.quit:
			return
		case <-tk.C:
			t.fire(tick)
		}
	}
}

// fire runs one tick; a panic is logged and the loop keeps going.
func (t *Ticker) fire(tick func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Errorw("clock_tick_panic", "panic", r)
		}
	}()
	tick()
}

// Stop ends the tick loop and waits for it to exit. Idempotent.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	started := t.started
	t.mu.Unlock()

	if started {
		close(t.quit)
		<-t.done
	}
}

// Manual is a Clock that only fires when told to. Used by tests and by
// hosts that drive time themselves.
type Manual struct {
	mu      sync.Mutex
	tick    func()
	stopped bool
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) Start(tick func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if m.tick != nil {
		return ErrAlreadyStarted
	}
	m.tick = tick
	return nil
}

func (m *Manual) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

// Fire delivers n ticks synchronously. It does nothing before Start or
// after Stop.
func (m *Manual) Fire(n int) {
	m.mu.Lock()
	tick := m.tick
	active := tick != nil && !m.stopped
	m.mu.Unlock()
	if !active {
		return
	}
	for i := 0; i < n; i++ {
		tick()
	}
}

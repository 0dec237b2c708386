package service

import (
	"context"
	"sync/atomic"
	"time"

	"digital_microwave/internal/logger"
	"digital_microwave/internal/models"
	"digital_microwave/internal/repository"
)

const (
	defaultHistoryBuffer = 64
	flushTimeout         = 2 * time.Second
)

// Recorder hands job events from the controller to the history repository.
// Record never blocks: a full buffer drops the event.
type Recorder struct {
	repo    repository.HistoryRepo
	log     *logger.Logger
	events  chan models.JobEvent
	dropped atomic.Int64
}

// Ensure implementation of EventSink interface at compile time.
var _ EventSink = (*Recorder)(nil)

func NewRecorder(repo repository.HistoryRepo, log *logger.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultHistoryBuffer
	}
	return &Recorder{
		repo:   repo,
		log:    logger.OrNop(log),
		events: make(chan models.JobEvent, buffer),
	}
}

func (r *Recorder) Record(e models.JobEvent) bool {
	select {
	case r.events <- e:
		return true
	default:
		r.dropped.Add(1)
		r.log.Warnw("history_event_dropped", "type", e.Type, "job_id", e.JobID)
		return false
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Run writes events until ctx is canceled, then flushes what is buffered.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case e := <-r.events:
			// select may pick a buffered event over a closed ctx
			if ctx.Err() != nil {
				r.flush(e)
				return
			}
			r.write(ctx, e)
		}
	}
}

// flush writes pending and then whatever is still buffered, under its own
// timeout since the run context is already gone.
func (r *Recorder) flush(pending ...models.JobEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for _, e := range pending {
		r.write(ctx, e)
	}
	for {
		select {
		case e := <-r.events:
			r.write(ctx, e)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e models.JobEvent) {
	if err := r.repo.Append(ctx, e); err != nil {
		r.log.Errorw("history_append_failed", "err", err, "type", e.Type, "job_id", e.JobID)
	}
}

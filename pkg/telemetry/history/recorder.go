package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridian-gw/meridian/pkg/telemetry"
)

// writeTimeout bounds each individual database write in the worker.
const writeTimeout = 5 * time.Second

// Recorder is an asynchronous telemetry.Emitter backed by a Store. Events
// are buffered on a channel and written by a single worker goroutine, so the
// request hot path never waits on SQLite. When the buffer is full events are
// dropped and counted rather than blocking.
type Recorder struct {
	store  *Store
	events chan event
	logger *slog.Logger

	dropped atomic.Int64

	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

type event struct {
	attempt    *telemetry.Attempt
	transition *telemetry.Transition
}

// NewRecorder creates a recorder writing to store and starts its worker.
// bufferSize caps the number of in-flight events.
func NewRecorder(store *Store, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	r := &Recorder{
		store:  store,
		events: make(chan event, bufferSize),
		logger: slog.Default().With("component", "history_recorder"),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// RecordAttempt enqueues an attempt for persistence. Never blocks, and is
// safe to call after Close: late emitters from draining requests count as
// drops instead of panicking.
func (r *Recorder) RecordAttempt(a telemetry.Attempt) {
	r.enqueue(event{attempt: &a})
}

// RecordTransition enqueues a breaker transition for persistence. Never
// blocks.
func (r *Recorder) RecordTransition(tr telemetry.Transition) {
	r.enqueue(event{transition: &tr})
}

func (r *Recorder) enqueue(ev event) {
	select {
	case <-r.quit:
		r.dropped.Add(1)
		return
	default:
	}
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops the recorder after draining buffered events. The events
// channel is never closed, so emitters racing with shutdown drop instead of
// panicking. The underlying store is not closed.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.quit)
		<-r.done
	})
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case ev := <-r.events:
			r.write(ev)
		case <-r.quit:
			for {
				select {
				case ev := <-r.events:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch {
	case ev.attempt != nil:
		err = r.store.InsertAttempt(ctx, *ev.attempt)
	case ev.transition != nil:
		err = r.store.InsertTransition(ctx, *ev.transition)
	}
	if err != nil {
		r.logger.Error("failed to persist telemetry event", "error", err)
	}
}

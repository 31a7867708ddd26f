package audit

import (
	"context"
	"sync"
	"time"

	"credit-risk-engine/internal/common/logger"
	"credit-risk-engine/internal/common/metrics"
)

const (
	defaultBufferSize   = 1024
	defaultWriteTimeout = 2 * time.Second
)

// Recorder fans prediction events out to its sinks from a single
// background worker. Record never blocks: when the buffer is full the event
// is dropped and counted.
type Recorder struct {
	sinks        []Sink
	events       chan Event
	writeTimeout time.Duration
	logger       logger.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewRecorder(sinks []Sink, bufferSize int, writeTimeout time.Duration, log logger.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	r := &Recorder{
		sinks:        sinks,
		events:       make(chan Event, bufferSize),
		writeTimeout: writeTimeout,
		logger:       log,
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an event and reports whether it was accepted.
func (r *Recorder) Record(event Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.AuditDropped.Inc()
		return false
	}

	select {
	case r.events <- event:
		return true
	default:
		metrics.AuditDropped.Inc()
		return false
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.events {
		for _, sink := range r.sinks {
			r.write(sink, event)
		}
	}
}

func (r *Recorder) write(sink Sink, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := sink.Write(ctx, event); err != nil {
		metrics.AuditEvents.WithLabelValues(sink.Name(), "error").Inc()
		r.logger.Warn("Audit write failed", map[string]interface{}{
			"sink":          sink.Name(),
			"prediction_id": event.PredictionID,
			"error":         err.Error(),
		})
		return
	}
	metrics.AuditEvents.WithLabelValues(sink.Name(), "ok").Inc()
}

// Close stops accepting events and waits for the worker to drain the
// buffer or for ctx to expire.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

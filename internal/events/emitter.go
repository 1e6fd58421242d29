package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Sink receives analysis events. Deliver may be called from several
// emitter workers at once.
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// DeliveryObserver is told the outcome of every sink delivery.
type DeliveryObserver func(sink string, err error)

// Stats are point-in-time delivery counters.
type Stats struct {
	Enqueued  uint64
	Dropped   uint64
	Delivered map[string]uint64
	Failed    map[string]uint64
}

type sinkCounters struct {
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// queued carries the span of the request that produced the event so the
// delivery shows up in the same trace.
type queued struct {
	ev   *Event
	span trace.SpanContext
}

// Emitter fans analysis events out to sinks on background workers. Emit
// never blocks an analysis: a full queue drops the event.
// A nil *Emitter is valid and discards everything.
type Emitter struct {
	queue        chan queued
	sinks        []Sink
	counters     map[string]*sinkCounters
	drainTimeout time.Duration
	observe      DeliveryObserver
	logger       *slog.Logger

	enqueued atomic.Uint64
	dropped  atomic.Uint64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// EmitterConfig sizes the queue and worker pool.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
	Observe         DeliveryObserver
	Logger          *slog.Logger
}

// NewEmitter starts cfg.Workers goroutines delivering to sinks.
func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	em := &Emitter{
		queue:        make(chan queued, cfg.QueueSize),
		sinks:        sinks,
		counters:     make(map[string]*sinkCounters, len(sinks)),
		drainTimeout: cfg.ShutdownTimeout,
		observe:      cfg.Observe,
		logger:       cfg.Logger.With("component", "events"),
	}
	for _, s := range sinks {
		em.counters[s.Name()] = &sinkCounters{}
	}

	em.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go em.worker()
	}
	return em
}

// Emit enqueues ev without blocking.
func (e *Emitter) Emit(ctx context.Context, ev *Event) {
	if e == nil || ev == nil {
		return
	}
	var span trace.SpanContext
	if ctx != nil {
		span = trace.SpanContextFromContext(ctx)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return
	}

	select {
	case e.queue <- queued{ev: ev, span: span}:
		e.enqueued.Add(1)
	default:
		e.dropped.Add(1)
		e.logger.Warn("event queue full, dropping event", "event_id", ev.ID, "request_id", ev.RequestID)
	}
}

// Close stops accepting events, drains the queue for at most the configured
// shutdown timeout and then closes every sink.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, e.drainTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		e.logger.Warn("event drain timed out, pending events discarded", "pending", len(e.queue))
	}

	for _, s := range e.sinks {
		if err := s.Close(ctx); err != nil {
			e.logger.Error("sink close failed", "sink", s.Name(), "error", err)
		}
	}
}

// Stats copies the current counters.
func (e *Emitter) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	st := Stats{
		Enqueued:  e.enqueued.Load(),
		Dropped:   e.dropped.Load(),
		Delivered: make(map[string]uint64, len(e.counters)),
		Failed:    make(map[string]uint64, len(e.counters)),
	}
	for name, c := range e.counters {
		st.Delivered[name] = c.delivered.Load()
		st.Failed[name] = c.failed.Load()
	}
	return st
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for q := range e.queue {
		ctx := context.Background()
		if q.span.IsValid() {
			ctx = trace.ContextWithSpanContext(ctx, q.span)
		}
		e.deliver(ctx, q.ev)
	}
}

func (e *Emitter) deliver(ctx context.Context, ev *Event) {
	for _, s := range e.sinks {
		name := s.Name()
		err := s.Deliver(ctx, ev)
		if err != nil {
			e.counters[name].failed.Add(1)
			e.logger.Warn("sink delivery failed", "sink", name, "event_id", ev.ID, "error", err)
		} else {
			e.counters[name].delivered.Add(1)
		}
		if e.observe != nil {
			e.observe(name, err)
		}
	}
}

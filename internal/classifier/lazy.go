package classifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc builds a model handle.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// LoadObserver is told about every load attempt.
type LoadObserver func(model string, err error, elapsed time.Duration)

// Lazy holds a model handle that is built on first use. Concurrent first
// callers share a single load, and no caller ever sees a partly built value.
// A failed load is not remembered; the next Get tries again.
type Lazy[T any] struct {
	name     string
	load     LoadFunc[T]
	observe  LoadObserver
	value    atomic.Pointer[T]
	group    singleflight.Group
	attempts atomic.Int64

	mu      sync.Mutex
	lastErr error
}

// NewLazy wraps load. observe may be nil.
func NewLazy[T any](name string, load LoadFunc[T], observe LoadObserver) *Lazy[T] {
	return &Lazy[T]{name: name, load: load, observe: observe}
}

// Get returns the handle, loading it if needed. The load is detached from
// ctx cancellation so one impatient caller cannot fail the others.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}
	res, err, _ := l.group.Do(l.name, func() (any, error) {
		if v := l.value.Load(); v != nil {
			return *v, nil
		}
		l.attempts.Add(1)
		start := time.Now()
		v, err := l.load(context.WithoutCancel(ctx))
		if l.observe != nil {
			l.observe(l.name, err, time.Since(start))
		}
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		if err != nil {
			return nil, err
		}
		l.value.Store(&v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Loaded reports whether the handle is ready.
func (l *Lazy[T]) Loaded() bool { return l.value.Load() != nil }

// Attempts counts load calls so far.
func (l *Lazy[T]) Attempts() int64 { return l.attempts.Load() }

// LastError is the error of the most recent load, or nil.
func (l *Lazy[T]) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

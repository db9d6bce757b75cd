// Package dispatch fans pipeline events out to subscribers without
// blocking the pipeline.
//
// Each subscriber owns a buffered channel drained by its own goroutine. If
// a subscriber's channel is full the event is dropped for that subscriber
// rather than queued: a stale security event is worth less than a fresh
// one, and a slow audit or alert consumer must never stall a decision. A
// handler that panics is recovered and logged; it cannot take down other
// subscribers or the pipeline.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// Default per-subscriber channel buffer.
const defaultBufferSize = 256

// Handler consumes one event. It runs on the subscriber's own goroutine.
type Handler func(ctx context.Context, e model.Event)

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	TotalPublished uint64
	Subscribers    map[string]SubscriberStats
}

// SubscriberStats tracks delivery counters for one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	name    string
	kinds   map[model.Kind]struct{} // nil means all kinds
	ch      chan model.Event
	done    chan struct{}
	sent    atomic.Uint64
	dropped atomic.Uint64
}

func (s *subscriber) wants(k model.Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Dispatcher distributes events to subscribers with a drop policy.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
	bufferSize  int

	totalPublished atomic.Uint64

	log logger.Logger
}

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.bufferSize = n
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// New creates a dispatcher with configuration options.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subscribers: make(map[string]*subscriber),
		bufferSize:  defaultBufferSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.log == nil {
		d.log = logger.Get().Named("dispatch")
	}

	return d
}

// Subscribe registers a handler under a unique name. With no kinds the
// handler receives every event; otherwise only the listed kinds. The
// handler starts receiving immediately on its own goroutine.
func (d *Dispatcher) Subscribe(ctx context.Context, name string, handler Handler, kinds ...model.Kind) error {
	if handler == nil {
		return ErrNilHandler
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	if _, exists := d.subscribers[name]; exists {
		return ErrSubscriberExists
	}

	sub := &subscriber{
		name: name,
		ch:   make(chan model.Event, d.bufferSize),
		done: make(chan struct{}),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[model.Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}
	d.subscribers[name] = sub

	go d.drain(ctx, sub, handler)

	return nil
}

// Unsubscribe removes a subscriber and stops its goroutine once the
// in-flight events are drained.
func (d *Dispatcher) Unsubscribe(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub, exists := d.subscribers[name]
	if !exists {
		return ErrSubscriberNotFound
	}
	delete(d.subscribers, name)
	close(sub.ch)
	return nil
}

// Publish sends the event to every subscriber interested in its kind.
// It never blocks, even if all subscribers are slow.
func (d *Dispatcher) Publish(e model.Event) {
	d.totalPublished.Add(1)
	metrics.RecordEventPublished()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	for _, sub := range d.subscribers {
		if !sub.wants(e.Kind()) {
			continue
		}
		select {
		case sub.ch <- e:
			sub.sent.Add(1)
		default:
			sub.dropped.Add(1)
			metrics.RecordEventDropped(sub.name)
		}
	}
}

// drain runs the subscriber's handler loop, isolating panics per event.
func (d *Dispatcher) drain(ctx context.Context, sub *subscriber, handler Handler) {
	defer close(sub.done)
	for e := range sub.ch {
		d.invoke(ctx, sub.name, handler, e)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, name string, handler Handler, e model.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("dispatch", "handler_panic")
			d.log.Error(ctx, "subscriber handler panicked",
				logger.String("subscriber", name),
				logger.String("kind", string(e.Kind())),
				logger.Any("panic", r),
			)
		}
	}()
	handler(ctx, e)
}

// Stats returns a snapshot of dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := Stats{
		TotalPublished: d.totalPublished.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(d.subscribers)),
	}
	for name, sub := range d.subscribers {
		out.Subscribers[name] = SubscriberStats{
			Sent:    sub.sent.Load(),
			Dropped: sub.dropped.Load(),
		}
	}
	return out
}

// Close stops the dispatcher and waits for subscriber goroutines to drain.
// Idempotent.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	subs := make([]*subscriber, 0, len(d.subscribers))
	for name, sub := range d.subscribers {
		subs = append(subs, sub)
		close(sub.ch)
		delete(d.subscribers, name)
	}
	d.mu.Unlock()

	for _, sub := range subs {
		<-sub.done
	}
	return nil
}

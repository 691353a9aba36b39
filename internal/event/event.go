// Package event fans quiz lifecycle events out to in-process subscribers
// such as the Prometheus metrics.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultWorkers        = 64
	defaultHandlerTimeout = 10 * time.Second
)

// Event is anything with a routing name, e.g. domain.EventQuizCompleted.
type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

type Option func(*Bus)

// WithWorkers caps how many handlers may run at once.
func WithWorkers(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.slots = make(chan struct{}, n)
		}
	}
}

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// Bus delivers each published event to the handlers subscribed to its name,
// one goroutine per handler. When every worker slot is busy Publish waits
// for a slot or for its context to end.
type Bus struct {
	slots    chan struct{}
	timeout  time.Duration
	inflight sync.WaitGroup

	mu       sync.RWMutex
	stopped  bool
	handlers map[string][]Handler
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		slots:    make(chan struct{}, defaultWorkers),
		timeout:  defaultHandlerTimeout,
		handlers: make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish hands e to its subscribers. Events published after Stop are
// dropped.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		slog.WarnContext(ctx, "event: bus stopped, dropping event", "event", e.Name())
		return
	}
	subs := append([]Handler(nil), b.handlers[e.Name()]...)
	b.inflight.Add(len(subs))
	b.mu.RUnlock()

	for i, h := range subs {
		select {
		case b.slots <- struct{}{}:
			go b.run(ctx, h, e)
		case <-ctx.Done():
			slog.WarnContext(ctx, "event: no free worker, dropping delivery",
				"event", e.Name(),
				"skipped", len(subs)-i,
				"error", ctx.Err(),
			)
			b.inflight.Add(i - len(subs))
			return
		}
	}
}

func (b *Bus) run(ctx context.Context, h Handler, e Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event: handler panic",
				"event", e.Name(),
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}
		cancel()
		<-b.slots
		b.inflight.Done()
	}()

	if err := h(ctx, e); err != nil {
		slog.ErrorContext(ctx, "event: handler failed", "event", e.Name(), "error", err)
	}
}

// Stop refuses further events and waits for in-flight handlers.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	b.inflight.Wait()
}

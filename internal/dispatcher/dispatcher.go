// Package dispatcher routes simulation events to recording handlers by title.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mechevo/simulator/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AnyTitle registers a handler that receives every event without a
// title-specific handler.
const AnyTitle = "*"

var (
	ErrUnknownTitle = errors.New("no handler for event title")
	ErrQueueFull    = errors.New("queue full")
	ErrClosed       = errors.New("dispatcher closed")
)

// HandlerFunc processes one event.
type HandlerFunc func(core.Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	gaugeReg  metric.Registration

	// Track buffers for gauge callback and Close
	mu      sync.RWMutex
	buffers map[string]chan core.Event
	closed  bool
	workers sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan core.Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	d.gaugeReg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for title, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("title", title)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given event title with optional configuration.
// Use AnyTitle for a fallback handler.
func (d *Dispatcher) Register(title string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(title, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(title, handler)
	}

	d.handlers[title] = handler
}

// Dispatch routes an event to the handler for its title, or to the
// AnyTitle handler when none is registered.
func (d *Dispatcher) Dispatch(e core.Event) error {
	h, ok := d.handlers[e.Title]
	if !ok {
		h, ok = d.handlers[AnyTitle]
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTitle, e.Title)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the title.
func (d *Dispatcher) HasHandler(title string) bool {
	_, ok := d.handlers[title]
	return ok
}

// Listener adapts the dispatcher to an event log subscription. Failures
// are logged, never returned to the emitter.
func (d *Dispatcher) Listener() func(core.Event) {
	return func(e core.Event) {
		if err := d.Dispatch(e); err != nil && !errors.Is(err, ErrUnknownTitle) {
			d.logger.Error("dispatch failed", "title", e.Title, "seq", e.Seq, "error", err)
		}
	}
}

// Close stops accepting buffered events and waits until every queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.workers.Wait()
	if d.gaugeReg != nil {
		_ = d.gaugeReg.Unregister()
	}
}

func (d *Dispatcher) withBuffer(title string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan core.Event, size)

	d.mu.Lock()
	d.buffers[title] = buffer
	d.mu.Unlock()

	titleAttr := attribute.String("title", title)

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range buffer {
			if err := h(e); err != nil {
				d.logger.Error("buffered handler failed", "title", title, "seq", e.Seq, "error", err)
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(titleAttr))
		}
	}()

	return func(e core.Event) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return ErrClosed
		}

		if blocking {
			buffer <- e
			return nil
		}

		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(titleAttr))
			return fmt.Errorf("%w: %s", ErrQueueFull, title)
		}
	}
}

func (d *Dispatcher) withLogging(title string, h HandlerFunc) HandlerFunc {
	return func(e core.Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "title", title, "seq", e.Seq, "attributes", len(e.Attributes))

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "title", title, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "title", title, "duration", time.Since(start))
		}

		return err
	}
}

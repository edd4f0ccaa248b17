// Package eventlog collects the events raised during a run.
package eventlog

import (
	"sync"

	"github.com/mechevo/simulator/pkg/core"
)

// Listener observes events as they are appended. Listeners run synchronously
// on the emitting goroutine and must not call back into the Log.
type Listener func(core.Event)

// Log is the append-only record of one run. It is the single observer shared
// by the whole world.
type Log struct {
	mu        sync.Mutex
	events    []core.Event
	seq       uint64
	listeners []Listener
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Subscribe adds a listener that sees every subsequent event.
func (l *Log) Subscribe(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Emit assigns the next sequence number, stores the event and notifies listeners.
func (l *Log) Emit(e core.Event) {
	l.mu.Lock()
	l.seq++
	e.Seq = l.seq
	l.events = append(l.events, e)
	listeners := l.listeners
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
}

// Len returns the number of buffered events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Events returns a copy of the buffered events in order.
func (l *Log) Events() []core.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Drain returns the buffered events in order and empties the buffer.
// Sequence numbers keep increasing across drains.
func (l *Log) Drain() []core.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.events
	l.events = nil
	return out
}

// Report builds a run report from the buffered events, draining them.
func (l *Log) Report(totalTime float64) core.Report {
	events := l.Drain()
	if events == nil {
		events = []core.Event{}
	}
	return core.Report{TotalTime: totalTime, Events: events}
}

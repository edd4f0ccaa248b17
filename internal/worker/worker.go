// Package worker records the events of a run into a storage backend.
package worker

import (
	"fmt"
	"sync/atomic"

	"github.com/mechevo/simulator/internal/dispatcher"
	"github.com/mechevo/simulator/internal/logging"
	"github.com/mechevo/simulator/internal/storage"
	"github.com/mechevo/simulator/pkg/core"
)

// DefaultQueueSize is the event queue length between the simulation and the backend.
const DefaultQueueSize = 10000

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	LogManager *logging.SlogManager
	QueueSize  int
}

// Manager forwards the events of one run to the backend
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	runID   string

	recorded atomic.Int64
	failed   atomic.Int64
}

// NewManager creates a new worker manager for one run
func NewManager(deps Dependencies, backend storage.Backend, runID string) *Manager {
	if deps.QueueSize <= 0 {
		deps.QueueSize = DefaultQueueSize
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		runID:   runID,
	}
}

// RegisterHandlers registers the recording handler with the dispatcher.
// A single blocking queue keeps events in emission order across titles.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(dispatcher.AnyTitle, m.handleEvent,
		dispatcher.Buffered(m.deps.QueueSize), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleEvent(e core.Event) error {
	if err := m.backend.RecordEvent(m.runID, e); err != nil {
		m.failed.Add(1)
		return fmt.Errorf("failed to record %s #%d: %w", e.Title, e.Seq, err)
	}
	m.recorded.Add(1)
	return nil
}

// Recorded returns the number of events the backend accepted.
func (m *Manager) Recorded() int64 {
	return m.recorded.Load()
}

// Failed returns the number of events the backend rejected.
func (m *Manager) Failed() int64 {
	return m.failed.Load()
}

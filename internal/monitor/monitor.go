// Package monitor periodically reports the runs in flight.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/mechevo/simulator/internal/influx"
	"github.com/mechevo/simulator/internal/logging"
	"github.com/mechevo/simulator/internal/simulator"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

const defaultInterval = time.Second

// ProgressSource lists the runs in flight.
type ProgressSource interface {
	Active() []simulator.Progress
}

// PointWriter receives process status points.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Progress   ProgressSource
	// Metrics may be nil, in which case no points are written.
	Metrics PointWriter
	// StatusPath is rewritten on every sample. Empty disables the file.
	StatusPath string
	Interval   time.Duration
}

// Snapshot is one status sample.
type Snapshot struct {
	Time       time.Time            `json:"time"`
	Runs       []simulator.Progress `json:"runs"`
	Goroutines int                  `json:"goroutines"`
	HeapMB     float64              `json:"heapMb"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample takes a snapshot of the runs in flight and the process.
func (s *Service) Sample() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Snapshot{
		Time:       time.Now(),
		Runs:       s.deps.Progress.Active(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(mem.HeapAlloc) / (1 << 20),
	}
}

// Point converts a snapshot to the process_status point.
func Point(snap Snapshot) *influxdb2_write.Point {
	maxTick := 0
	for _, r := range snap.Runs {
		maxTick = max(maxTick, r.Tick)
	}
	return influxdb2_write.NewPointWithMeasurement("process_status").
		AddField("activeRuns", len(snap.Runs)).
		AddField("maxTick", maxTick).
		AddField("goroutines", snap.Goroutines).
		AddField("heapMb", snap.HeapMB).
		SetTime(snap.Time)
}

// writeStatusFile replaces the status file contents with snap.
func writeStatusFile(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

func (s *Service) report() {
	logger := s.deps.LogManager.Logger()
	snap := s.Sample()

	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, snap); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Metrics != nil && len(snap.Runs) > 0 {
		if err := s.deps.Metrics.WritePoint(influx.PerformanceBucket, Point(snap)); err != nil {
			logger.Debug("Error writing status point", "error", err)
		}
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.report()
			}
		}
	}(s.stopChan, s.done)
}

// Stop stops the status monitor and writes a last sample.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	s.report()
}

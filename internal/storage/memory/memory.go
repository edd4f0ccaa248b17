// Package memory buffers runs in memory and exports each finished run to a file.
package memory

import (
	"fmt"
	"sync"

	"github.com/mechevo/simulator/internal/config"
	v1 "github.com/mechevo/simulator/internal/storage/memory/export/v1"
	"github.com/mechevo/simulator/pkg/core"
)

// runRecord holds a run in progress
type runRecord struct {
	info   core.RunInfo
	events []core.Event
}

// exportRecord remembers where a finished run was written
type exportRecord struct {
	path string
	meta core.UploadMetadata
}

// Backend stores run data in memory and exports it when the run ends
type Backend struct {
	cfg config.MemoryConfig
	tag string

	runs    map[string]*runRecord
	exports map[string]exportRecord

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, tag string) *Backend {
	return &Backend{
		cfg:     cfg,
		tag:     tag,
		runs:    make(map[string]*runRecord),
		exports: make(map[string]exportRecord),
	}
}

// Init validates the export format
func (b *Backend) Init() error {
	switch b.cfg.Format {
	case "", FormatJSON, FormatMsgpack:
		return nil
	default:
		return fmt.Errorf("unknown export format %q", b.cfg.Format)
	}
}

// Close drops runs that never ended
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs = make(map[string]*runRecord)
	return nil
}

// StartRun begins buffering a run
func (b *Backend) StartRun(info core.RunInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.runs[info.ID]; ok {
		return fmt.Errorf("run %s already started", info.ID)
	}
	b.runs[info.ID] = &runRecord{info: info}
	return nil
}

// RecordEvent appends an event to its run
func (b *Backend) RecordEvent(runID string, e core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	run, ok := b.runs[runID]
	if !ok {
		return fmt.Errorf("unknown run %s", runID)
	}
	run.events = append(run.events, e)
	return nil
}

// EndRun exports the run and forgets its buffer. Events recorded through
// RecordEvent take precedence; the report's events are used when none were.
func (b *Backend) EndRun(summary core.RunSummary, report core.Report) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	run, ok := b.runs[summary.RunID]
	if !ok {
		return fmt.Errorf("unknown run %s", summary.RunID)
	}
	delete(b.runs, summary.RunID)

	if len(run.events) > 0 {
		report.Events = run.events
	}

	path, err := b.export(&v1.RunData{
		Info:    run.info,
		Tag:     b.tag,
		Summary: summary,
		Report:  report,
	})
	if err != nil {
		return err
	}

	b.exports[summary.RunID] = exportRecord{
		path: path,
		meta: core.UploadMetadata{
			RunID:        run.info.ID,
			ScenarioName: run.info.ScenarioName,
			TotalTime:    report.TotalTime,
			Tag:          b.tag,
		},
	}
	return nil
}

// ExportedFilePath returns the file written for a finished run
func (b *Backend) ExportedFilePath(runID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.exports[runID]
	return rec.path, ok
}

// ExportMetadata returns upload metadata for a finished run
func (b *Backend) ExportMetadata(runID string) (core.UploadMetadata, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.exports[runID]
	return rec.meta, ok
}

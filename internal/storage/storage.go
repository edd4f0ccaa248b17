// Package storage records simulation runs.
package storage

import "github.com/mechevo/simulator/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// One backend serves every run of the process; runs are keyed by RunInfo.ID.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(info core.RunInfo) error
	EndRun(summary core.RunSummary, report core.Report) error

	// Event recording, in emission order per run
	RecordEvent(runID string, e core.Event) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a replay viewer.
type Uploadable interface {
	ExportedFilePath(runID string) (string, bool)
	ExportMetadata(runID string) (core.UploadMetadata, bool)
}

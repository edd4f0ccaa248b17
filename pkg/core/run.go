package core

import "time"

// RunInfo describes one simulation run for storage and upload.
type RunInfo struct {
	ID           string
	ScenarioName string
	StartedAt    time.Time
	TickDuration float64
	Teams        int
	Units        int
}

// RunSummary is written when a run ends.
type RunSummary struct {
	RunID       string
	Ticks       int
	TotalTime   float64
	EventCount  int
	Shots       int // projectiles fired
	Hits        int // damage events
	WinningTeam int // -1 when no single team is left
	Reason      string
	Survivors   map[int]int
	WallTime    time.Duration
}

// UploadMetadata accompanies an exported report sent to a viewer server.
type UploadMetadata struct {
	RunID        string
	ScenarioName string
	TotalTime    float64
	Tag          string
}

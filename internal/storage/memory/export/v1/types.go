// Package v1 contains the v1 export format for simulation runs.
// Entities are indexed by object id so a viewer can look them up directly.
package v1

import "github.com/mechevo/simulator/pkg/core"

// FormatVersion is written into every export.
const FormatVersion = "1"

// Export is the root structure for v1 format
type Export struct {
	Version      string       `json:"version" msgpack:"version"`
	RunID        string       `json:"runId" msgpack:"runId"`
	ScenarioName string       `json:"scenarioName" msgpack:"scenarioName"`
	Tags         string       `json:"tags" msgpack:"tags"`
	StartedAt    string       `json:"startedAt" msgpack:"startedAt"` // RFC3339 UTC
	TickDuration float64      `json:"tickDuration" msgpack:"tickDuration"`
	TotalTime    float64      `json:"totalTime" msgpack:"totalTime"`
	Ticks        int          `json:"ticks" msgpack:"ticks"`
	WinningTeam  int          `json:"winningTeam" msgpack:"winningTeam"`
	Reason       string       `json:"reason" msgpack:"reason"`
	Entities     []Entity     `json:"entities" msgpack:"entities"`
	Events       []core.Event `json:"events" msgpack:"events"`
}

// Entity is one body with its timelines. Index 0 and unused ids are placeholders
// with an empty Kind.
type Entity struct {
	ID        int         `json:"id" msgpack:"id"`
	Kind      string      `json:"kind" msgpack:"kind"`
	TeamID    int         `json:"teamId" msgpack:"teamId"`
	OwnerID   int         `json:"ownerId,omitempty" msgpack:"ownerId,omitempty"`
	Type      string      `json:"type,omitempty" msgpack:"type,omitempty"`
	Radius    float64     `json:"radius,omitempty" msgpack:"radius,omitempty"`
	SpawnTime float64     `json:"spawnTime" msgpack:"spawnTime"`
	EraseTime *float64    `json:"eraseTime" msgpack:"eraseTime"`
	Positions [][]float64 `json:"positions" msgpack:"positions"` // [time, x, y, angle]
	Health    [][]float64 `json:"health" msgpack:"health"`       // [time, hp]
	Actions   [][]any     `json:"actions" msgpack:"actions"`     // [time, title, param]
}

// RunData is everything the builder needs about a finished run.
type RunData struct {
	Info    core.RunInfo
	Tag     string
	Summary core.RunSummary
	Report  core.Report
}

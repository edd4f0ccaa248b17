// Package streaming defines the messages exchanged with a live run viewer.
package streaming

import (
	"encoding/json"
	"time"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun = "start_run"
	TypeEndRun   = "end_run"
	TypeEvent    = "event"
	TypeAck      = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	RunID   string          `json:"runId"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type  string `json:"type"`  // always "ack"
	For   string `json:"for"`   // the message type being acknowledged
	RunID string `json:"runId"` // the run the acknowledged message belongs to
}

// StartRunPayload announces a run before any of its events.
type StartRunPayload struct {
	ScenarioName string    `json:"scenarioName"`
	StartedAt    time.Time `json:"startedAt"`
	TickDuration float64   `json:"tickDuration"`
	Teams        int       `json:"teams"`
	Units        int       `json:"units"`
	Tag          string    `json:"tag"`
}

// EndRunPayload closes a run.
type EndRunPayload struct {
	Ticks       int         `json:"ticks"`
	TotalTime   float64     `json:"totalTime"`
	EventCount  int         `json:"eventCount"`
	WinningTeam int         `json:"winningTeam"`
	Reason      string      `json:"reason"`
	Survivors   map[int]int `json:"survivors"`
}

// Package websocket streams runs live to a viewer server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mechevo/simulator/internal/config"
	"github.com/mechevo/simulator/pkg/core"
	"github.com/mechevo/simulator/pkg/streaming"
)

// Backend streams run data over WebSocket to a viewer server.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  config.WebSocketConfig
	tag  string
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg config.WebSocketConfig, tag string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
		tag:  tag,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType, runID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, RunID: runID, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartRun announces the run and waits for server ack.
func (b *Backend) StartRun(info core.RunInfo) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, info.ID, streaming.StartRunPayload{
		ScenarioName: info.ScenarioName,
		StartedAt:    info.StartedAt,
		TickDuration: info.TickDuration,
		Teams:        info.Teams,
		Units:        info.Units,
		Tag:          b.tag,
	})
	if err != nil {
		return err
	}

	b.conn.cacheStart(info.ID, data)
	return b.conn.sendAndWait(data, streaming.TypeStartRun, info.ID, ackTimeout)
}

// RecordEvent sends one event without waiting.
func (b *Backend) RecordEvent(runID string, e core.Event) error {
	data, err := marshalEnvelope(streaming.TypeEvent, runID, e)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// EndRun sends end_run and waits for server ack. The report's events were
// already streamed and are not sent again.
func (b *Backend) EndRun(summary core.RunSummary, report core.Report) error {
	defer b.conn.cacheStart(summary.RunID, nil)

	data, err := marshalEnvelope(streaming.TypeEndRun, summary.RunID, streaming.EndRunPayload{
		Ticks:       summary.Ticks,
		TotalTime:   report.TotalTime,
		EventCount:  summary.EventCount,
		WinningTeam: summary.WinningTeam,
		Reason:      summary.Reason,
		Survivors:   summary.Survivors,
	})
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, streaming.TypeEndRun, summary.RunID, ackTimeout)
}

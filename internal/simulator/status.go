package simulator

import (
	"log/slog"
	"sort"
	"sync"
)

// Progress is the live state of one run.
type Progress struct {
	RunID    string  `json:"runId"`
	Scenario string  `json:"scenario"`
	Tick     int     `json:"tick"`
	Elapsed  float64 `json:"elapsed"`
}

// Status holds the progress of every run in flight
type Status struct {
	mu   sync.RWMutex
	runs map[string]*Progress
}

// NewStatus creates an empty Status
func NewStatus() *Status {
	return &Status{runs: make(map[string]*Progress)}
}

func (s *Status) begin(runID, scenario string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = &Progress{RunID: runID, Scenario: scenario}
}

func (s *Status) update(runID string, tick int, elapsed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.runs[runID]; ok {
		p.Tick = tick
		p.Elapsed = elapsed
	}
}

func (s *Status) end(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
}

// Active returns the runs in flight ordered by run id
func (s *Status) Active() []Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Progress, 0, len(s.runs))
	for _, p := range s.runs {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out
}

// LogAttrs is a logging.ContextProvider. With a single run in flight it
// names the run and its tick; otherwise only the number of runs.
func (s *Status) LogAttrs() []slog.Attr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) != 1 {
		return []slog.Attr{slog.Int("activeRuns", len(s.runs))}
	}
	for _, p := range s.runs {
		return []slog.Attr{slog.String("runId", p.RunID), slog.Int("tick", p.Tick)}
	}
	return nil
}

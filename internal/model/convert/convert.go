package convert

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/mechevo/simulator/internal/model"
	"github.com/mechevo/simulator/pkg/core"
)

// EventRecordToCore converts a GORM EventRecord back to a core.Event.
// Attribute order is preserved; malformed attribute JSON yields no attributes.
func EventRecordToCore(r model.EventRecord) core.Event {
	var attrs []core.Attribute
	if len(r.Attributes) > 0 {
		_ = json.Unmarshal(r.Attributes, &attrs)
	}
	return core.Event{
		Seq:        r.Seq,
		Time:       r.Time,
		Title:      r.Title,
		Attributes: attrs,
	}
}

// EventRecordsToReport rebuilds a run report from stored records ordered by seq.
func EventRecordsToReport(records []model.EventRecord, totalTime float64) core.Report {
	events := make([]core.Event, 0, len(records))
	for _, r := range records {
		events = append(events, EventRecordToCore(r))
	}
	return core.Report{TotalTime: totalTime, Events: events}
}

// RunToCore converts a stored run back to its info and summary.
func RunToCore(r model.Run) (core.RunInfo, core.RunSummary) {
	info := core.RunInfo{
		ID:           r.RunID,
		ScenarioName: r.ScenarioName,
		StartedAt:    r.StartedAt,
		TickDuration: r.TickDuration,
		Teams:        r.Teams,
		Units:        r.Units,
	}

	survivors := map[int]int{}
	var raw map[string]int
	if len(r.Survivors) > 0 && json.Unmarshal(r.Survivors, &raw) == nil {
		for team, n := range raw {
			id, err := strconv.Atoi(team)
			if err != nil {
				continue
			}
			survivors[id] = n
		}
	}

	summary := core.RunSummary{
		RunID:       r.RunID,
		Ticks:       r.Ticks,
		TotalTime:   r.TotalTime,
		EventCount:  r.EventCount,
		WinningTeam: r.WinningTeam,
		Reason:      r.Reason,
		Survivors:   survivors,
		WallTime:    time.Duration(r.WallTimeMs) * time.Millisecond,
	}
	return info, summary
}

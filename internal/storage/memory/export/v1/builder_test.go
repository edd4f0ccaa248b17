package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mechevo/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t float64, e core.Event) core.Event {
	e.Time = t
	return e
}

func duelData() *RunData {
	events := []core.Event{
		at(0, core.NewEvent(core.TitleCreateObstacle).Int("id", 1).Float("x", 500).Float("y", 500).Float("radius", 40)),
		at(0, core.NewEvent(core.TitleCreatePlayer).Int("id", 2).Int("teamId", 1).Float("x", 100).Float("y", 500).
			Float("angle", 0).Str("color", "red").Int("hp", 100)),
		at(0, core.NewEvent(core.TitleCreatePlayer).Int("id", 3).Int("teamId", 2).Float("x", 900).Float("y", 500).
			Float("angle", 180).Str("color", "blue").Int("hp", 100)),
		at(0.1, core.NewEvent(core.TitleStartAttacking).Int("id", 2).Str("slot", "CENTER").Str("weapon", "cannon")),
		at(0.1, core.NewEvent(core.TitleCreateProjectile).Int("id", 4).Int("ownerId", 2).Str("type", "shell").
			Float("x", 145).Float("y", 500).Float("angle", 0)),
		at(0.2, core.NewEvent(core.TitleMovePlayer).Int("id", 3).Float("x", 895).Float("y", 500).Float("angle", 180)),
		at(1.1, core.NewEvent(core.TitleStopAttacking).Int("id", 2)),
		at(3.2, core.NewEvent(core.TitleModifyHp).Int("id", 3).Int("value", 80)),
		at(3.2, core.NewEvent(core.TitleEraseProjectile).Int("id", 4).Float("x", 862).Float("y", 500)),
	}
	return &RunData{
		Info: core.RunInfo{
			ID:           "run-1",
			ScenarioName: "duel",
			StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
			TickDuration: 0.1,
		},
		Tag:     "Sim",
		Summary: core.RunSummary{RunID: "run-1", Ticks: 32, WinningTeam: -1, Reason: "maxTicks"},
		Report:  core.Report{TotalTime: 3.2, Events: events},
	}
}

func TestBuild_Header(t *testing.T) {
	export := Build(duelData())

	assert.Equal(t, FormatVersion, export.Version)
	assert.Equal(t, "run-1", export.RunID)
	assert.Equal(t, "duel", export.ScenarioName)
	assert.Equal(t, "Sim", export.Tags)
	assert.Equal(t, "2026-03-01T11:00:00Z", export.StartedAt)
	assert.Equal(t, 3.2, export.TotalTime)
	assert.Equal(t, 32, export.Ticks)
	assert.Equal(t, -1, export.WinningTeam)
	assert.Equal(t, "maxTicks", export.Reason)
	assert.Len(t, export.Events, 9)
}

func TestBuild_EntitiesIndexedByID(t *testing.T) {
	export := Build(duelData())

	require.Len(t, export.Entities, 5)
	assert.Equal(t, "", export.Entities[0].Kind, "index 0 is a placeholder")
	for i, kind := range []string{"", "obstacle", "unit", "unit", "projectile"} {
		assert.Equal(t, i, export.Entities[i].ID)
		assert.Equal(t, kind, export.Entities[i].Kind)
	}

	obstacle := export.Entities[1]
	assert.Equal(t, 40.0, obstacle.Radius)
	assert.Equal(t, -1, obstacle.TeamID)
}

func TestBuild_Timelines(t *testing.T) {
	export := Build(duelData())

	blue := export.Entities[3]
	assert.Equal(t, "blue", blue.Type)
	assert.Equal(t, 2, blue.TeamID)
	assert.Equal(t, [][]float64{{0, 900, 500, 180}, {0.2, 895, 500, 180}}, blue.Positions)
	assert.Equal(t, [][]float64{{0, 100}, {3.2, 80}}, blue.Health)
	assert.Nil(t, blue.EraseTime)

	red := export.Entities[2]
	assert.Equal(t, [][]any{{0.1, core.TitleStartAttacking, "CENTER"}, {1.1, core.TitleStopAttacking, ""}}, red.Actions)

	shell := export.Entities[4]
	assert.Equal(t, "shell", shell.Type)
	assert.Equal(t, 2, shell.OwnerID)
	require.NotNil(t, shell.EraseTime)
	assert.Equal(t, 3.2, *shell.EraseTime)
	// the erase position keeps the last known angle
	assert.Equal(t, []float64{3.2, 862, 500, 0}, shell.Positions[len(shell.Positions)-1])
}

func TestBuild_EmptyRun(t *testing.T) {
	export := Build(&RunData{Info: core.RunInfo{ID: "empty"}})

	assert.NotNil(t, export.Entities)
	assert.NotNil(t, export.Events)
	assert.Empty(t, export.StartedAt)

	data, err := json.Marshal(export)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entities":[]`)
	assert.Contains(t, string(data), `"events":[]`)
}

func TestBuild_IgnoresEventsForUnknownEntities(t *testing.T) {
	data := &RunData{Report: core.Report{Events: []core.Event{
		core.NewEvent(core.TitleModifyHp).Int("id", 7).Int("value", 10),
		core.NewEvent(core.TitleCreateObstacle).Int("id", 2).Float("x", 1).Float("y", 1),
		core.NewEvent(core.TitleMovePlayer).Int("id", 1).Float("x", 1).Float("y", 1),
	}}}

	export := Build(data)

	require.Len(t, export.Entities, 3)
	assert.Empty(t, export.Entities[1].Positions)
	assert.Len(t, export.Entities[2].Positions, 1)
}

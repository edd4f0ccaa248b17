package convert

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/mechevo/simulator/internal/model"
	"github.com/mechevo/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreToEventRecord(t *testing.T) {
	e := core.NewEvent(core.TitleMovePlayer).Int("id", 4).Float("x", 120.5).Float("y", 80).Float("angle", 90)
	e.Seq = 17
	e.Time = 1.5

	rec := mustRecord(t, e)

	assert.Equal(t, uint64(17), rec.Seq)
	assert.Equal(t, 1.5, rec.Time)
	assert.Equal(t, core.TitleMovePlayer, rec.Title)
	assert.Equal(t, 4, rec.ObjectID)

	coord, ok := rec.Position.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 120.5, coord.XY.X)
	assert.Equal(t, 80.0, coord.XY.Y)

	var attrs []core.Attribute
	require.NoError(t, json.Unmarshal(rec.Attributes, &attrs))
	assert.Equal(t, e.Attributes, attrs)
}

func TestCoreToEventRecord_NoPosition(t *testing.T) {
	rec := mustRecord(t, core.NewEvent(core.TitleStopMoving).Int("id", 2))

	assert.True(t, rec.Position.IsEmpty())
	assert.Equal(t, 2, rec.ObjectID)
}

func TestCoreToEventRecord_NonFinitePosition(t *testing.T) {
	e := core.NewEvent(core.TitleMovePlayer).Int("id", 3).Float("x", math.NaN()).Float("y", 10)

	_, err := CoreToEventRecord(e)
	assert.Error(t, err)

	_, ok, err := CoreToEntity(core.NewEvent(core.TitleCreateSentry).Int("id", 3).Float("x", 1).Float("y", math.Inf(-1)))
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestCoreToEventRecord_NoAttributes(t *testing.T) {
	rec := mustRecord(t, core.NewEvent("custom"))

	assert.Equal(t, "[]", string(rec.Attributes))
	assert.Equal(t, 0, rec.ObjectID)
}

func TestCoreToEntity(t *testing.T) {
	tests := []struct {
		name    string
		event   core.Event
		kind    string
		teamID  int
		ownerID int
		typ     string
		radius  float64
	}{
		{
			name: "player",
			event: core.NewEvent(core.TitleCreatePlayer).Int("id", 1).Int("teamId", 2).
				Float("x", 10).Float("y", 20).Float("angle", 0).Str("color", "blue"),
			kind: "unit", teamID: 2, typ: "blue",
		},
		{
			name:  "obstacle",
			event: core.NewEvent(core.TitleCreateObstacle).Int("id", 2).Float("x", 1).Float("y", 1).Float("radius", 40),
			kind:  "obstacle", teamID: -1, radius: 40,
		},
		{
			name: "sentry",
			event: core.NewEvent(core.TitleCreateSentry).Int("id", 3).Int("teamId", 1).
				Float("x", 1).Float("y", 1).Float("angle", 180).Int("hp", 50),
			kind: "sentry", teamID: 1,
		},
		{
			name: "projectile",
			event: core.NewEvent(core.TitleCreateProjectile).Int("id", 9).Int("ownerId", 1).
				Str("type", "shell").Float("x", 5).Float("y", 5).Float("angle", 45),
			kind: "projectile", teamID: -1, ownerID: 1, typ: "shell",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ent, ok, err := CoreToEntity(tt.event)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, ent.Kind)
			assert.Equal(t, tt.teamID, ent.TeamID)
			assert.Equal(t, tt.ownerID, ent.OwnerID)
			assert.Equal(t, tt.typ, ent.Type)
			assert.Equal(t, tt.radius, ent.Radius)
			assert.False(t, ent.Position.IsEmpty())
		})
	}
}

func TestCoreToEntity_IgnoresNonCreate(t *testing.T) {
	_, ok, err := CoreToEntity(core.NewEvent(core.TitleModifyHp).Int("id", 1).Int("value", 3))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCoreToRunAndSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := CoreToRun(core.RunInfo{
		ID:           "3f7e",
		ScenarioName: "duel",
		StartedAt:    start,
		TickDuration: 0.1,
		Teams:        2,
		Units:        2,
	}, "Sim")

	assert.Equal(t, "3f7e", run.RunID)
	assert.Equal(t, "Sim", run.Tag)
	assert.Equal(t, -1, run.WinningTeam)
	assert.False(t, run.Finished)

	ApplySummary(&run, core.RunSummary{
		RunID:       "3f7e",
		Ticks:       42,
		TotalTime:   4.2,
		EventCount:  100,
		WinningTeam: 1,
		Reason:      "decided",
		Survivors:   map[int]int{1: 1, 2: 0},
		WallTime:    1500 * time.Millisecond,
	})

	assert.True(t, run.Finished)
	assert.Equal(t, 42, run.Ticks)
	assert.Equal(t, int64(1500), run.WallTimeMs)
	assert.JSONEq(t, `{"1":1,"2":0}`, string(run.Survivors))
}

func TestRunToCore(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	info := core.RunInfo{
		ID:           "3f7e",
		ScenarioName: "duel",
		StartedAt:    start,
		TickDuration: 0.1,
		Teams:        2,
		Units:        3,
	}
	summary := core.RunSummary{
		RunID:       "3f7e",
		Ticks:       42,
		TotalTime:   4.2,
		EventCount:  100,
		WinningTeam: 1,
		Reason:      "decided",
		Survivors:   map[int]int{1: 2, 2: 0},
		WallTime:    1500 * time.Millisecond,
	}
	run := CoreToRun(info, "Sim")
	ApplySummary(&run, summary)

	gotInfo, gotSummary := RunToCore(run)
	assert.Equal(t, info, gotInfo)
	assert.Equal(t, summary, gotSummary)
}

func TestRunToCore_UnfinishedRun(t *testing.T) {
	run := CoreToRun(core.RunInfo{ID: "a"}, "")
	run.Survivors = nil

	_, summary := RunToCore(run)
	assert.Equal(t, -1, summary.WinningTeam)
	assert.Empty(t, summary.Survivors)
	assert.NotNil(t, summary.Survivors)
}

func mustRecord(t *testing.T, e core.Event) model.EventRecord {
	t.Helper()
	rec, err := CoreToEventRecord(e)
	require.NoError(t, err)
	return rec
}

package v1

import (
	"strconv"
	"time"

	"github.com/mechevo/simulator/pkg/core"
)

var entityKinds = map[string]string{
	core.TitleCreatePlayer:     "unit",
	core.TitleCreateObstacle:   "obstacle",
	core.TitleCreateSentry:     "sentry",
	core.TitleCreateProjectile: "projectile",
}

var eraseTitles = map[string]bool{
	core.TitleErasePlayer:     true,
	core.TitleEraseSentry:     true,
	core.TitleEraseProjectile: true,
}

var moveTitles = map[string]bool{
	core.TitleMovePlayer:     true,
	core.TitleMoveProjectile: true,
}

// actionParams names the attribute carried by each start event.
var actionParams = map[string]string{
	core.TitleStartMoving:    "direction",
	core.TitleStartDashing:   "side",
	core.TitleStartRotating:  "side",
	core.TitleStartAttacking: "slot",
	core.TitleStopMoving:     "",
	core.TitleStopDashing:    "",
	core.TitleStopRotating:   "",
	core.TitleStopAttacking:  "",
}

// Build converts a finished run into the v1 export format
func Build(data *RunData) Export {
	export := Export{
		Version:      FormatVersion,
		RunID:        data.Info.ID,
		ScenarioName: data.Info.ScenarioName,
		Tags:         data.Tag,
		TickDuration: data.Info.TickDuration,
		TotalTime:    data.Report.TotalTime,
		Ticks:        data.Summary.Ticks,
		WinningTeam:  data.Summary.WinningTeam,
		Reason:       data.Summary.Reason,
		Entities:     make([]Entity, 0),
		Events:       data.Report.Events,
	}
	if !data.Info.StartedAt.IsZero() {
		export.StartedAt = data.Info.StartedAt.UTC().Format(time.RFC3339)
	}
	if export.Events == nil {
		export.Events = make([]core.Event, 0)
	}

	// The viewer uses entities[id], so array index must equal entity ID
	maxID := 0
	for _, e := range data.Report.Events {
		if _, ok := entityKinds[e.Title]; ok {
			if id := intAttr(e, "id", 0); id > maxID {
				maxID = id
			}
		}
	}
	if maxID > 0 {
		export.Entities = make([]Entity, maxID+1)
		for i := range export.Entities {
			export.Entities[i] = Entity{ID: i, TeamID: -1}
		}
	}

	lookup := func(e core.Event) *Entity {
		id := intAttr(e, "id", 0)
		if id <= 0 || id > maxID || export.Entities[id].Kind == "" {
			return nil
		}
		return &export.Entities[id]
	}

	for _, e := range data.Report.Events {
		if kind, ok := entityKinds[e.Title]; ok {
			id := intAttr(e, "id", 0)
			if id <= 0 {
				continue
			}
			ent := &export.Entities[id]
			ent.Kind = kind
			ent.TeamID = intAttr(e, "teamId", -1)
			ent.OwnerID = intAttr(e, "ownerId", 0)
			ent.Radius = floatAttr(e, "radius", 0)
			ent.SpawnTime = e.Time
			ent.Positions = make([][]float64, 0)
			ent.Health = make([][]float64, 0)
			ent.Actions = make([][]any, 0)
			switch e.Title {
			case core.TitleCreatePlayer:
				ent.Type, _ = e.Get("color")
			case core.TitleCreateProjectile:
				ent.Type, _ = e.Get("type")
			}
			appendPosition(ent, e)
			if _, ok := e.Get("hp"); ok {
				ent.Health = append(ent.Health, []float64{e.Time, floatAttr(e, "hp", 0)})
			}
			continue
		}

		ent := lookup(e)
		if ent == nil {
			continue
		}

		switch {
		case moveTitles[e.Title]:
			appendPosition(ent, e)
		case eraseTitles[e.Title]:
			at := e.Time
			ent.EraseTime = &at
			if _, ok := e.Get("x"); ok {
				appendPosition(ent, e)
			}
		case e.Title == core.TitleModifyHp:
			ent.Health = append(ent.Health, []float64{e.Time, floatAttr(e, "value", 0)})
		default:
			key, ok := actionParams[e.Title]
			if !ok {
				continue
			}
			param := ""
			if key != "" {
				param, _ = e.Get(key)
			}
			ent.Actions = append(ent.Actions, []any{e.Time, e.Title, param})
		}
	}

	return export
}

// appendPosition records x, y and angle; a missing angle repeats the last one.
func appendPosition(ent *Entity, e core.Event) {
	if _, ok := e.Get("x"); !ok {
		return
	}
	angle := 0.0
	if n := len(ent.Positions); n > 0 {
		angle = ent.Positions[n-1][3]
	}
	ent.Positions = append(ent.Positions, []float64{
		e.Time,
		floatAttr(e, "x", 0),
		floatAttr(e, "y", 0),
		floatAttr(e, "angle", angle),
	})
}

func intAttr(e core.Event, key string, def int) int {
	v, ok := e.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatAttr(e core.Event, key string, def float64) float64 {
	v, ok := e.Get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mechevo/simulator/internal/geo"
	"github.com/mechevo/simulator/internal/model"
	"github.com/mechevo/simulator/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// entityKinds maps create titles to the stored entity kind.
var entityKinds = map[string]string{
	core.TitleCreatePlayer:     "unit",
	core.TitleCreateObstacle:   "obstacle",
	core.TitleCreateSentry:     "sentry",
	core.TitleCreateProjectile: "projectile",
}

// EraseTitles are the events that end an entity's life.
var EraseTitles = map[string]bool{
	core.TitleErasePlayer:     true,
	core.TitleEraseSentry:     true,
	core.TitleEraseProjectile: true,
}

func attrInt(e core.Event, key string, def int) int {
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

func attrFloat(e core.Event, key string) (float64, bool) {
	v, ok := e.Get(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// eventPoint returns the event's x/y as a point, empty when either is missing.
func eventPoint(e core.Event) (geom.Point, error) {
	x, okX := attrFloat(e, "x")
	y, okY := attrFloat(e, "y")
	if !okX || !okY {
		return geom.Point{}, nil
	}
	pt, err := geo.Point(geom.XY{X: x, Y: y})
	if err != nil {
		return geom.Point{}, fmt.Errorf("%s event position: %w", e.Title, err)
	}
	return pt, nil
}

// attributesToJSON converts ordered attributes to datatypes.JSON for DB storage.
func attributesToJSON(attrs []core.Attribute) datatypes.JSON {
	if len(attrs) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(attrs)
	return datatypes.JSON(data)
}

// CoreToEventRecord converts a core.Event to a GORM model.EventRecord.
// RunID is stamped by the writer.
func CoreToEventRecord(e core.Event) (model.EventRecord, error) {
	pos, err := eventPoint(e)
	if err != nil {
		return model.EventRecord{}, err
	}
	return model.EventRecord{
		Seq:        e.Seq,
		Time:       e.Time,
		Title:      e.Title,
		ObjectID:   attrInt(e, "id", 0),
		Position:   pos,
		Attributes: attributesToJSON(e.Attributes),
	}, nil
}

// CoreToEntity converts a create event to a GORM model.Entity.
// Returns false for every other title.
func CoreToEntity(e core.Event) (model.Entity, bool, error) {
	kind, ok := entityKinds[e.Title]
	if !ok {
		return model.Entity{}, false, nil
	}
	pos, err := eventPoint(e)
	if err != nil {
		return model.Entity{}, false, err
	}

	ent := model.Entity{
		ObjectID:  attrInt(e, "id", 0),
		Kind:      kind,
		TeamID:    attrInt(e, "teamId", -1),
		OwnerID:   attrInt(e, "ownerId", 0),
		Position:  pos,
		SpawnTime: e.Time,
	}
	if r, ok := attrFloat(e, "radius"); ok {
		ent.Radius = r
	}
	switch e.Title {
	case core.TitleCreatePlayer:
		ent.Type, _ = e.Get("color")
	case core.TitleCreateProjectile:
		ent.Type, _ = e.Get("type")
	}
	return ent, true, nil
}

// CoreToRun converts run info to a GORM model.Run with an empty summary.
func CoreToRun(info core.RunInfo, tag string) model.Run {
	return model.Run{
		RunID:        info.ID,
		ScenarioName: info.ScenarioName,
		Tag:          tag,
		StartedAt:    info.StartedAt,
		TickDuration: info.TickDuration,
		Teams:        info.Teams,
		Units:        info.Units,
		WinningTeam:  -1,
		Survivors:    datatypes.JSON("{}"),
	}
}

// ApplySummary fills the summary columns of a run.
func ApplySummary(r *model.Run, s core.RunSummary) {
	r.Ticks = s.Ticks
	r.TotalTime = s.TotalTime
	r.EventCount = s.EventCount
	r.WinningTeam = s.WinningTeam
	r.Reason = s.Reason
	r.WallTimeMs = s.WallTime.Milliseconds()
	r.Finished = true

	survivors := make(map[string]int, len(s.Survivors))
	for team, n := range s.Survivors {
		survivors[strconv.Itoa(team)] = n
	}
	data, _ := json.Marshal(survivors)
	r.Survivors = datatypes.JSON(data)
}

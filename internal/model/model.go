package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&Entity{},
	&EventRecord{},
}

////////////////////////
// RUN MODELS
////////////////////////

// Run is one simulation run of a scenario.
// Summary columns stay zero until the run ends.
type Run struct {
	gorm.Model
	RunID        string    `json:"runId" gorm:"size:36;uniqueIndex:idx_run_run_id"`
	ScenarioName string    `json:"scenarioName" gorm:"size:200"`
	Tag          string    `json:"tag" gorm:"size:127"`
	StartedAt    time.Time `json:"startedAt" gorm:"index:idx_run_started_at"`
	TickDuration float64   `json:"tickDuration"`
	Teams        int       `json:"teams"`
	Units        int       `json:"units"`

	Ticks       int            `json:"ticks"`
	TotalTime   float64        `json:"totalTime"`
	EventCount  int            `json:"eventCount"`
	WinningTeam int            `json:"winningTeam"`
	Reason      string         `json:"reason" gorm:"size:32"`
	Survivors   datatypes.JSON `json:"survivors" gorm:"default:'{}'"` // team id -> live units
	WallTimeMs  int64          `json:"wallTimeMs"`
	Finished    bool           `json:"finished" gorm:"default:false"`

	Entities []Entity
	Events   []EventRecord
}

func (*Run) TableName() string {
	return "runs"
}

// Entity is a body created during a run: unit, obstacle, sentry or projectile.
// Uses composite primary key (RunID, ObjectID); object ids are unique within a run.
type Entity struct {
	RunID     uint       `json:"runId" gorm:"primaryKey;autoIncrement:false"`
	ObjectID  int        `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Kind      string     `json:"kind" gorm:"size:16;index:idx_entity_kind"`
	Run       Run        `gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	TeamID    int        `json:"teamId"`              // -1 for obstacles and projectiles
	OwnerID   int        `json:"ownerId"`             // projectiles only
	Type      string     `json:"type" gorm:"size:32"` // projectile type, unit color
	Radius    float64    `json:"radius"`
	Position  geom.Point `json:"position"`                      // position at creation
	SpawnTime float64    `json:"spawnTime"`                     // sim time of the create event
	EraseTime *float64   `json:"eraseTime" gorm:"default:NULL"` // nil while alive
}

func (*Entity) TableName() string {
	return "entities"
}

// EventRecord is one event of the run's stream.
//
// Attributes keep insertion order as a JSON array of {key, value}.
type EventRecord struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID      uint           `json:"runId" gorm:"index:idx_event_run_seq,priority:1"`
	Run        Run            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Seq        uint64         `json:"seq" gorm:"index:idx_event_run_seq,priority:2"`
	Time       float64        `json:"time"`
	Title      string         `json:"title" gorm:"size:32;index:idx_event_title"`
	ObjectID   int            `json:"objectId" gorm:"index:idx_event_object_id"`
	Position   geom.Point     `json:"position"` // empty when the event carries no coordinates
	Attributes datatypes.JSON `json:"attributes" gorm:"default:'[]'"`
}

func (*EventRecord) TableName() string {
	return "events"
}

package core

// Scenario is the external description of an arena and its combatants.
type Scenario struct {
	Name      string         `json:"name" yaml:"name"`
	Map       MapSpec        `json:"map" yaml:"map"`
	Obstacles []ObstacleSpec `json:"obstacles" yaml:"obstacles"`
	Sentries  []SentrySpec   `json:"sentries,omitempty" yaml:"sentries,omitempty"`
	Players   []PlayerSpec   `json:"players" yaml:"players"`
}

// MapSpec holds arena dimensions. The arena spans [0,Width]x[0,Height].
type MapSpec struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

type ObstacleSpec struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Radius float64 `json:"radius" yaml:"radius"`
}

type SentrySpec struct {
	TeamID int     `json:"teamId" yaml:"teamId"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Angle  float64 `json:"angle" yaml:"angle"`
	Weapon string  `json:"weapon,omitempty" yaml:"weapon,omitempty"`
}

// PlayerSpec describes one unit. Weapons are listed in slot order left, right, center.
type PlayerSpec struct {
	TeamID    int         `json:"teamId" yaml:"teamId"`
	Color     string      `json:"color" yaml:"color"`
	X         float64     `json:"x" yaml:"x"`
	Y         float64     `json:"y" yaml:"y"`
	Angle     float64     `json:"angle" yaml:"angle"`
	Weapons   []string    `json:"weapons" yaml:"weapons"`
	Algorithm []EntrySpec `json:"algorithm" yaml:"algorithm"`
}

// EntrySpec is one decision rule: all conditions must hold, then actions run in order.
type EntrySpec struct {
	Conditions []CallSpec `json:"conditions" yaml:"conditions"`
	Actions    []CallSpec `json:"actions" yaml:"actions"`
}

// CallSpec names a condition or action with its string parameters.
type CallSpec struct {
	Name  string   `json:"name" yaml:"name"`
	Param []string `json:"param,omitempty" yaml:"param,omitempty"`
}

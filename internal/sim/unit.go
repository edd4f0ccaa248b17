package sim

import (
	"math"

	"github.com/mechevo/simulator/internal/geo"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Unit tuning.
const (
	UnitHealth    = 100
	UnitRadius    = 30.0
	MoveSpeed     = 50.0  // arena units per second
	RotSpeed      = 100.0 // degrees per second
	HeatRate      = 10.0  // heat lost per second
	MaxHeat       = 100.0
	MountDistance = 15.0
)

// Unit is a combatant driven by its decision algorithm.
type Unit struct {
	Body
	TeamID    int
	Color     string
	Health    int
	Heat      float64
	Weapons   [3]*Weapon
	Paralysed bool
	Confused  bool

	algorithm *Algorithm
	order     *Suggestion

	// start-of-tick pose, used to decide whether a move event is due
	lastPosition geom.XY
	lastAngle    float64
}

// Algorithm returns the unit's decision rules.
func (u *Unit) Algorithm() *Algorithm {
	return u.algorithm
}

// Order returns the suggestion the unit is currently executing, nil before the first tick.
func (u *Unit) Order() *Suggestion {
	return u.order
}

// UpdateHeat decays heat linearly, never below zero.
func (u *Unit) UpdateHeat(dt float64) {
	u.Heat = math.Max(0, u.Heat-HeatRate*dt)
}

// IncreaseHeat adds heat, capped at MaxHeat.
func (u *Unit) IncreaseHeat(amount float64) {
	u.Heat = math.Min(MaxHeat, u.Heat+amount)
}

// TakeDamage lowers health and reports the new value. Health at or below zero
// destroys the unit; the transition is terminal.
func (u *Unit) TakeDamage(w *World, damage int) {
	u.Health -= damage
	if u.Health <= 0 {
		u.Destroyed = true
	}
	w.emit(hpEvent(u.ID, u.Health))
}

// Weapon returns the weapon mounted in slot.
func (u *Unit) Weapon(slot Slot) *Weapon {
	return u.Weapons[slot]
}

// MountPosition is where projectiles from slot are spawned.
func (u *Unit) MountPosition(slot Slot) geom.XY {
	switch slot {
	case SlotLeft:
		return geo.Displace(u.Position, u.Angle+90, MountDistance)
	case SlotRight:
		return geo.Displace(u.Position, u.Angle-90, MountDistance)
	default:
		return u.Position
	}
}

// EnemiesInView returns live units of other teams whose bearing lies within
// the unit's facing ± halfAngle, in world order.
func (u *Unit) EnemiesInView(w *World, halfAngle float64) []*Unit {
	var out []*Unit
	for _, o := range w.units {
		if o == u || o.Destroyed || o.TeamID == u.TeamID {
			continue
		}
		if geo.InFieldOfView(u.Angle, halfAngle, geo.Bearing(u.Position, o.Position)) {
			out = append(out, o)
		}
	}
	return out
}

// FieldOfView returns every other live unit inside facing ± halfAngle, allies included.
func (u *Unit) FieldOfView(w *World, halfAngle float64) []*Unit {
	var out []*Unit
	for _, o := range w.units {
		if o == u || o.Destroyed {
			continue
		}
		if geo.InFieldOfView(u.Angle, halfAngle, geo.Bearing(u.Position, o.Position)) {
			out = append(out, o)
		}
	}
	return out
}

// ObstaclesInView returns obstacles inside facing ± halfAngle.
func (u *Unit) ObstaclesInView(w *World, halfAngle float64) []*Obstacle {
	var out []*Obstacle
	for _, o := range w.obstacles {
		if geo.InFieldOfView(u.Angle, halfAngle, geo.Bearing(u.Position, o.Position)) {
			out = append(out, o)
		}
	}
	return out
}

// nearest returns the candidate closest to u, ties resolved by list order.
func (u *Unit) nearest(candidates []*Unit) *Unit {
	var best *Unit
	bestDist := math.Inf(1)
	for _, c := range candidates {
		if d := geo.Distance(u.Position, c.Position); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (u *Unit) markPose() {
	u.lastPosition = u.Position
	u.lastAngle = u.Angle
}

func (u *Unit) poseChanged() bool {
	return u.Position != u.lastPosition || u.Angle != u.lastAngle
}

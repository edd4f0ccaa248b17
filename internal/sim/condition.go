package sim

import (
	"fmt"
	"strconv"

	"github.com/mechevo/simulator/internal/geo"
)

// ConditionKind identifies a predicate over the world as seen by one unit.
type ConditionKind uint8

const (
	ConditionAlways ConditionKind = iota
	ConditionEnemyInView
	ConditionEnemyInFire
	ConditionObstacleInView
	ConditionHeatBelow
	ConditionHealthBelow
	ConditionWeaponReady
)

func (k ConditionKind) String() string {
	switch k {
	case ConditionAlways:
		return "true"
	case ConditionEnemyInView:
		return "enemyInView"
	case ConditionEnemyInFire:
		return "enemyInFireRange"
	case ConditionObstacleInView:
		return "obstacleInView"
	case ConditionHeatBelow:
		return "heatBelow"
	case ConditionHealthBelow:
		return "healthBelow"
	case ConditionWeaponReady:
		return "weaponReady"
	default:
		return fmt.Sprintf("condition(%d)", uint8(k))
	}
}

// Condition is one conjunct of an entry.
type Condition struct {
	Kind      ConditionKind
	Threshold float64
	Slot      Slot
}

// NewCondition validates params for kind. Threshold conditions take one number,
// weaponReady takes a slot, the rest take nothing.
func NewCondition(kind ConditionKind, params []string) (Condition, error) {
	c := Condition{Kind: kind}
	want := 0
	switch kind {
	case ConditionAlways, ConditionEnemyInView, ConditionEnemyInFire, ConditionObstacleInView:
	case ConditionHeatBelow, ConditionHealthBelow, ConditionWeaponReady:
		want = 1
	default:
		return Condition{}, fmt.Errorf("%w: unknown condition kind %d", ErrInvalidParam, kind)
	}
	if len(params) != want {
		return Condition{}, fmt.Errorf("%w: %s takes %d parameters, got %d", ErrInvalidParam, kind, want, len(params))
	}

	switch kind {
	case ConditionHeatBelow, ConditionHealthBelow:
		v, err := strconv.ParseFloat(params[0], 64)
		if err != nil {
			return Condition{}, fmt.Errorf("%w: %s threshold %q", ErrInvalidParam, kind, params[0])
		}
		c.Threshold = v
	case ConditionWeaponReady:
		slot, err := ParseSlot(params[0])
		if err != nil {
			return Condition{}, err
		}
		c.Slot = slot
	}
	return c, nil
}

// Always is the condition used by catch-all entries.
func Always() Condition {
	return Condition{Kind: ConditionAlways}
}

// Check evaluates the condition for u.
func (c Condition) Check(w *World, u *Unit) bool {
	switch c.Kind {
	case ConditionAlways:
		return true
	case ConditionEnemyInView:
		return len(u.EnemiesInView(w, geo.ViewHalfAngle)) > 0
	case ConditionEnemyInFire:
		return len(u.EnemiesInView(w, geo.FireHalfAngle)) > 0
	case ConditionObstacleInView:
		return len(u.ObstaclesInView(w, geo.ViewHalfAngle)) > 0
	case ConditionHeatBelow:
		return u.Heat < c.Threshold
	case ConditionHealthBelow:
		return float64(u.Health) < c.Threshold
	case ConditionWeaponReady:
		wp := u.Weapon(c.Slot)
		return wp != nil && wp.Ready()
	}
	panic(fmt.Sprintf("sim: check: unhandled condition kind %s", c.Kind))
}

// PreferredTarget is the unit the condition singled out, nil if it observes no one.
func (c Condition) PreferredTarget(w *World, u *Unit) *Unit {
	switch c.Kind {
	case ConditionEnemyInView:
		return u.nearest(u.EnemiesInView(w, geo.ViewHalfAngle))
	case ConditionEnemyInFire:
		return u.nearest(u.EnemiesInView(w, geo.FireHalfAngle))
	default:
		return nil
	}
}

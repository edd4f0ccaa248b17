package sim

import (
	"fmt"
	"strings"

	"github.com/mechevo/simulator/internal/geo"
	"github.com/mechevo/simulator/pkg/core"
)

// ActionKind identifies a behavior. The set is closed; each method below
// switches over every kind.
type ActionKind uint8

const (
	ActionIdle ActionKind = iota
	ActionMoveInLine
	ActionDash
	ActionRotate
	ActionAttack
)

func (k ActionKind) String() string {
	switch k {
	case ActionIdle:
		return "idle"
	case ActionMoveInLine:
		return "moveInLine"
	case ActionDash:
		return "dash"
	case ActionRotate:
		return "rotate"
	case ActionAttack:
		return "attack"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

// Action tuning.
const (
	MoveDuration   = 1.0
	DashDuration   = 0.2
	DashSpeed      = 200.0
	DashHeatRate   = 150.0 // heat gained per second while dashing
	RotateDuration = 0.3
	AttackDuration = 1.0
)

// Direction tokens.
const (
	Forward  = "FORWARD"
	Backward = "BACKWARD"
	Left     = "LEFT"
	Right    = "RIGHT"
)

// Action is one step of an entry's sequence. It is an immutable descriptor;
// per-invocation progress lives on the Suggestion executing it.
type Action struct {
	Kind  ActionKind
	Param string
	slot  Slot
	next  *Action
}

// NewAction validates params for kind. Move takes FORWARD or BACKWARD, dash
// and rotate take LEFT or RIGHT, attack takes a slot, idle takes nothing.
func NewAction(kind ActionKind, params []string) (*Action, error) {
	a := &Action{Kind: kind}
	switch kind {
	case ActionIdle:
		if len(params) != 0 {
			return nil, fmt.Errorf("%w: idle takes no parameters, got %d", ErrInvalidParam, len(params))
		}
		return a, nil
	case ActionMoveInLine, ActionDash, ActionRotate, ActionAttack:
	default:
		return nil, fmt.Errorf("%w: unknown action kind %d", ErrInvalidParam, kind)
	}

	if len(params) != 1 {
		return nil, fmt.Errorf("%w: %s takes one parameter, got %d", ErrInvalidParam, kind, len(params))
	}
	p := strings.ToUpper(params[0])
	switch kind {
	case ActionMoveInLine:
		if p != Forward && p != Backward {
			return nil, fmt.Errorf("%w: %s direction %q", ErrInvalidParam, kind, params[0])
		}
	case ActionDash, ActionRotate:
		if p != Left && p != Right {
			return nil, fmt.Errorf("%w: %s side %q", ErrInvalidParam, kind, params[0])
		}
	case ActionAttack:
		slot, err := ParseSlot(p)
		if err != nil {
			return nil, err
		}
		a.slot = slot
	}
	a.Param = p
	return a, nil
}

// Next returns the following step, nil at the end of the sequence.
func (a *Action) Next() *Action {
	return a.next
}

// Cancelable reports whether a different decision may interrupt the action.
func (a *Action) Cancelable() bool {
	switch a.Kind {
	case ActionIdle, ActionMoveInLine, ActionRotate, ActionAttack:
		return true
	case ActionDash:
		return false
	}
	panic(fmt.Sprintf("sim: cancelable: unhandled action kind %s", a.Kind))
}

// Duration is the minimum time the action runs.
func (a *Action) Duration() float64 {
	switch a.Kind {
	case ActionIdle:
		return 0
	case ActionMoveInLine:
		return MoveDuration
	case ActionDash:
		return DashDuration
	case ActionRotate:
		return RotateDuration
	case ActionAttack:
		return AttackDuration
	}
	panic(fmt.Sprintf("sim: duration: unhandled action kind %s", a.Kind))
}

// Check is the precondition for starting the action. It has no side effects.
func (a *Action) Check(w *World, u *Unit) bool {
	switch a.Kind {
	case ActionIdle, ActionMoveInLine, ActionRotate:
		return true
	case ActionDash:
		return u.Heat < MaxHeat
	case ActionAttack:
		wp := u.Weapon(a.slot)
		return wp != nil && wp.Ready() && u.Heat+wp.HeatCost() <= MaxHeat
	}
	panic(fmt.Sprintf("sim: check: unhandled action kind %s", a.Kind))
}

// Finished is the completion predicate. A dash additionally runs until the
// unit's heat has reached the maximum.
func (a *Action) Finished(u *Unit, elapsed float64) bool {
	switch a.Kind {
	case ActionIdle, ActionMoveInLine, ActionRotate, ActionAttack:
		return elapsed >= a.Duration()
	case ActionDash:
		return elapsed >= a.Duration() && u.Heat >= MaxHeat
	}
	panic(fmt.Sprintf("sim: finished: unhandled action kind %s", a.Kind))
}

// effectiveParam mirrors directions for confused units.
func (a *Action) effectiveParam(u *Unit) string {
	if !u.Confused {
		return a.Param
	}
	switch a.Param {
	case Forward:
		return Backward
	case Backward:
		return Forward
	case Left:
		return Right
	case Right:
		return Left
	}
	return a.Param
}

func (a *Action) begin(w *World, u *Unit, s *Suggestion) {
	switch a.Kind {
	case ActionIdle:
	case ActionMoveInLine:
		w.emit(core.NewEvent(core.TitleStartMoving).Int("id", u.ID).Str("direction", a.effectiveParam(u)))
	case ActionDash:
		w.emit(core.NewEvent(core.TitleStartDashing).Int("id", u.ID).Str("side", a.effectiveParam(u)))
	case ActionRotate:
		w.emit(core.NewEvent(core.TitleStartRotating).Int("id", u.ID).Str("side", a.effectiveParam(u)))
	case ActionAttack:
		wp := u.Weapon(a.slot)
		w.emit(core.NewEvent(core.TitleStartAttacking).
			Int("id", u.ID).
			Str("slot", a.slot.String()).
			Str("weapon", wp.Kind.String()))
		if wp.Ready() {
			w.fireUnitWeapon(u, a.slot, s.targetID)
		}
	default:
		panic(fmt.Sprintf("sim: begin: unhandled action kind %s", a.Kind))
	}
}

func (a *Action) update(w *World, u *Unit, dt float64) {
	switch a.Kind {
	case ActionIdle, ActionAttack:
	case ActionMoveInLine:
		angle := u.Angle
		if a.effectiveParam(u) == Backward {
			angle += 180
		}
		u.Move(angle, u.Speed*dt)
	case ActionDash:
		angle := u.Angle + 90
		if a.effectiveParam(u) == Right {
			angle = u.Angle - 90
		}
		u.Move(angle, DashSpeed*dt)
		u.IncreaseHeat(DashHeatRate * dt)
	case ActionRotate:
		step := RotSpeed * dt
		if a.effectiveParam(u) == Right {
			step = -step
		}
		u.Angle = geo.NormalizeAngle(u.Angle + step)
	default:
		panic(fmt.Sprintf("sim: update: unhandled action kind %s", a.Kind))
	}
}

func (a *Action) end(w *World, u *Unit) {
	switch a.Kind {
	case ActionIdle:
	case ActionMoveInLine:
		w.emit(core.NewEvent(core.TitleStopMoving).Int("id", u.ID))
	case ActionDash:
		w.emit(core.NewEvent(core.TitleStopDashing).Int("id", u.ID))
	case ActionRotate:
		w.emit(core.NewEvent(core.TitleStopRotating).Int("id", u.ID))
	case ActionAttack:
		w.emit(core.NewEvent(core.TitleStopAttacking).Int("id", u.ID))
	default:
		panic(fmt.Sprintf("sim: end: unhandled action kind %s", a.Kind))
	}
}

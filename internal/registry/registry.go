// Package registry maps scenario identifiers to kernel conditions, actions and weapons.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mechevo/simulator/internal/sim"
)

var (
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownCondition = errors.New("unknown condition")
	ErrUnknownWeapon    = errors.New("unknown weapon")
)

// Registry resolves names case-insensitively.
type Registry struct {
	actions    map[string]sim.ActionKind
	conditions map[string]sim.ConditionKind
	weapons    map[string]sim.WeaponKind
}

// New returns a registry with every built-in name, including the class-style
// aliases used by older scenario files (e.g. "AttackAction", "TrueCondition").
func New() *Registry {
	r := &Registry{
		actions:    make(map[string]sim.ActionKind),
		conditions: make(map[string]sim.ConditionKind),
		weapons:    make(map[string]sim.WeaponKind),
	}

	for _, k := range []sim.ActionKind{sim.ActionIdle, sim.ActionMoveInLine, sim.ActionDash, sim.ActionRotate, sim.ActionAttack} {
		r.actions[key(k.String())] = k
	}
	r.actions[key("IdleAction")] = sim.ActionIdle
	r.actions[key("AttackAction")] = sim.ActionAttack

	for _, k := range []sim.ConditionKind{
		sim.ConditionAlways,
		sim.ConditionEnemyInView,
		sim.ConditionEnemyInFire,
		sim.ConditionObstacleInView,
		sim.ConditionHeatBelow,
		sim.ConditionHealthBelow,
		sim.ConditionWeaponReady,
	} {
		r.conditions[key(k.String())] = k
	}
	r.conditions[key("TrueCondition")] = sim.ConditionAlways
	r.conditions[key("always")] = sim.ConditionAlways

	for _, k := range []sim.WeaponKind{sim.WeaponMachineGun, sim.WeaponCannon, sim.WeaponMissileLauncher} {
		r.weapons[key(k.String())] = k
	}
	return r
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AliasAction makes alias resolve to the same kind as name.
func (r *Registry) AliasAction(alias, name string) error {
	k, ok := r.actions[key(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	r.actions[key(alias)] = k
	return nil
}

// AliasCondition makes alias resolve to the same kind as name.
func (r *Registry) AliasCondition(alias, name string) error {
	k, ok := r.conditions[key(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCondition, name)
	}
	r.conditions[key(alias)] = k
	return nil
}

// AddAliases registers every alias -> name pair. All unknown targets are
// reported together; the valid pairs are still registered.
func (r *Registry) AddAliases(actions, conditions map[string]string) error {
	var errs []error
	for _, alias := range slices.Sorted(maps.Keys(actions)) {
		if err := r.AliasAction(alias, actions[alias]); err != nil {
			errs = append(errs, fmt.Errorf("alias %q: %w", alias, err))
		}
	}
	for _, alias := range slices.Sorted(maps.Keys(conditions)) {
		if err := r.AliasCondition(alias, conditions[alias]); err != nil {
			errs = append(errs, fmt.Errorf("alias %q: %w", alias, err))
		}
	}
	return errors.Join(errs...)
}

// Action builds an action from its identifier and parameters.
func (r *Registry) Action(name string, params []string) (*sim.Action, error) {
	k, ok := r.actions[key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	a, err := sim.NewAction(k, params)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	return a, nil
}

// Condition builds a condition from its identifier and parameters.
func (r *Registry) Condition(name string, params []string) (sim.Condition, error) {
	k, ok := r.conditions[key(name)]
	if !ok {
		return sim.Condition{}, fmt.Errorf("%w: %q", ErrUnknownCondition, name)
	}
	c, err := sim.NewCondition(k, params)
	if err != nil {
		return sim.Condition{}, fmt.Errorf("condition %q: %w", name, err)
	}
	return c, nil
}

// Weapon resolves a weapon identifier.
func (r *Registry) Weapon(name string) (sim.WeaponKind, error) {
	k, ok := r.weapons[key(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeapon, name)
	}
	return k, nil
}

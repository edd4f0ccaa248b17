package sim

import (
	"testing"

	"github.com/mechevo/simulator/internal/geo"
	"github.com/mechevo/simulator/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/require"
)

const dt = 0.1

// recorder is a Sink that keeps every event.
type recorder struct {
	events []core.Event
}

func (r *recorder) Emit(e core.Event) {
	r.events = append(r.events, e)
}

func (r *recorder) titled(title string) []core.Event {
	var out []core.Event
	for _, e := range r.events {
		if e.Title == title {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.events = nil
}

func newTestWorld(t *testing.T, opts ...Option) (*World, *recorder) {
	t.Helper()
	arena, err := geo.NewArena(1000, 1000)
	require.NoError(t, err)
	rec := &recorder{}
	return NewWorld(arena, rec, opts...), rec
}

func idleAlgorithm(t *testing.T) *Algorithm {
	t.Helper()
	alg, err := NewAlgorithm(CatchAll())
	require.NoError(t, err)
	return alg
}

func mustAction(t *testing.T, kind ActionKind, params ...string) *Action {
	t.Helper()
	a, err := NewAction(kind, params)
	require.NoError(t, err)
	return a
}

func mustCondition(t *testing.T, kind ConditionKind, params ...string) Condition {
	t.Helper()
	c, err := NewCondition(kind, params)
	require.NoError(t, err)
	return c
}

func mustEntry(t *testing.T, conds []Condition, actions ...*Action) *Entry {
	t.Helper()
	e, err := NewEntry(conds, actions)
	require.NoError(t, err)
	return e
}

func addUnit(t *testing.T, w *World, team int, x, y, angle float64, alg *Algorithm) *Unit {
	t.Helper()
	if alg == nil {
		alg = idleAlgorithm(t)
	}
	u, err := w.AddUnit(UnitConfig{
		TeamID:    team,
		Color:     "red",
		Position:  geom.XY{X: x, Y: y},
		Angle:     angle,
		Weapons:   []WeaponKind{WeaponMachineGun, WeaponCannon, WeaponMissileLauncher},
		Algorithm: alg,
	})
	require.NoError(t, err)
	return u
}

package sim

import (
	"math"
	"testing"

	"github.com/mechevo/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUnit_HeatBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		heat := rapid.Float64Range(0, MaxHeat).Draw(t, "heat")
		step := rapid.Float64Range(0, 5).Draw(t, "dt")
		amount := rapid.Float64Range(0, 500).Draw(t, "amount")

		u := &Unit{Heat: heat}
		u.UpdateHeat(step)
		if want := math.Max(0, heat-HeatRate*step); u.Heat != want {
			t.Fatalf("UpdateHeat: got %v, want %v", u.Heat, want)
		}

		u.Heat = heat
		u.IncreaseHeat(amount)
		if want := math.Min(MaxHeat, heat+amount); u.Heat != want {
			t.Fatalf("IncreaseHeat: got %v, want %v", u.Heat, want)
		}
		if u.Heat < 0 || u.Heat > MaxHeat {
			t.Fatalf("heat %v out of bounds", u.Heat)
		}
	})
}

func TestUnit_TakeDamageLethal(t *testing.T) {
	w, rec := newTestWorld(t)
	u := addUnit(t, w, 1, 100, 100, 0, nil)
	rec.reset()

	u.TakeDamage(w, UnitHealth+5)

	assert.True(t, u.Destroyed)
	hp := rec.titled(core.TitleModifyHp)
	require.Len(t, hp, 1)
	v, _ := hp[0].Get("value")
	assert.Equal(t, "-5", v)
	assert.Equal(t, []string{"id", "value"}, hp[0].Keys())

	w.Advance(dt)

	assert.Empty(t, w.Units())
	assert.Nil(t, u.Order(), "destroyed unit must not decide")
	assert.Len(t, rec.titled(core.TitleErasePlayer), 1)
}

func TestUnit_TakeDamageNonLethal(t *testing.T) {
	w, rec := newTestWorld(t)
	u := addUnit(t, w, 1, 100, 100, 0, nil)
	rec.reset()

	u.TakeDamage(w, 30)

	assert.False(t, u.Destroyed)
	assert.Equal(t, 70, u.Health)
	require.Len(t, rec.titled(core.TitleModifyHp), 1)
}

func TestUnit_FieldOfViewFullCircle(t *testing.T) {
	w, _ := newTestWorld(t)
	viewer := addUnit(t, w, 1, 500, 500, 37, nil)
	others := []*Unit{
		addUnit(t, w, 1, 600, 500, 0, nil),
		addUnit(t, w, 2, 500, 600, 0, nil),
		addUnit(t, w, 2, 400, 500, 0, nil),
		addUnit(t, w, 3, 500, 400, 0, nil),
		addUnit(t, w, 3, 430, 430, 0, nil),
	}

	assert.Equal(t, others, viewer.FieldOfView(w, 360))
}

func TestUnit_FieldOfViewZeroHalfAngle(t *testing.T) {
	w, _ := newTestWorld(t)
	viewer := addUnit(t, w, 1, 500, 500, 0, nil)
	ahead := addUnit(t, w, 2, 700, 500, 0, nil)
	addUnit(t, w, 2, 700, 501, 0, nil)
	addUnit(t, w, 2, 500, 700, 0, nil)

	assert.Equal(t, []*Unit{ahead}, viewer.FieldOfView(w, 0))
}

func TestUnit_EnemiesInViewSkipsAllies(t *testing.T) {
	w, _ := newTestWorld(t)
	viewer := addUnit(t, w, 1, 500, 500, 0, nil)
	addUnit(t, w, 1, 600, 500, 0, nil)
	enemy := addUnit(t, w, 2, 700, 520, 0, nil)

	assert.Equal(t, []*Unit{enemy}, viewer.EnemiesInView(w, 30))
}

func TestUnit_MountPositions(t *testing.T) {
	u := &Unit{}
	u.Angle = 0
	left := u.MountPosition(SlotLeft)
	right := u.MountPosition(SlotRight)
	assert.InDelta(t, MountDistance, left.Y, 1e-9)
	assert.InDelta(t, -MountDistance, right.Y, 1e-9)
	assert.Equal(t, u.Position, u.MountPosition(SlotCenter))
}

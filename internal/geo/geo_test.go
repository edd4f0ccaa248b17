package geo

import (
	"math"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{725, 5},
		{-720, 0},
		{359.5, 359.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeAngle(tt.in), 1e-9, "in=%v", tt.in)
	}
}

func TestDisplace_AgreesWithBearing(t *testing.T) {
	origin := geom.XY{X: 100, Y: 100}
	for _, angle := range []float64{0, 45, 90, 135, 180, 270, 315} {
		p := Displace(origin, angle, 10)
		assert.InDelta(t, 10, Distance(origin, p), 1e-9)
		assert.InDelta(t, angle, Bearing(origin, p), 1e-9, "angle=%v", angle)
	}
}

func TestBearing_Coincident(t *testing.T) {
	p := geom.XY{X: 3, Y: 4}
	assert.Equal(t, 0.0, Bearing(p, p))
}

func TestInFieldOfView(t *testing.T) {
	tests := []struct {
		name    string
		facing  float64
		half    float64
		bearing float64
		want    bool
	}{
		{"center", 90, 30, 90, true},
		{"low edge inclusive", 90, 30, 60, true},
		{"high edge inclusive", 90, 30, 120, true},
		{"outside", 90, 30, 121, false},
		{"wrap low", 10, 30, 345, true},
		{"wrap low edge", 10, 30, 340, true},
		{"wrap low outside", 10, 30, 339, false},
		{"wrap high", 350, 30, 15, true},
		{"wrap high edge", 350, 30, 20, true},
		{"wrap high outside", 350, 30, 21, false},
		{"zero bearing not special", 180, 30, 0, false},
		{"zero half angle exact", 45, 0, 45, true},
		{"zero half angle off", 45, 0, 45.0001, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InFieldOfView(tt.facing, tt.half, tt.bearing))
		})
	}
}

func TestInFieldOfView_FullCircleAcceptsAll(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		facing := rapid.Float64Range(0, 359.999).Draw(t, "facing")
		bearing := rapid.Float64Range(0, 359.999).Draw(t, "bearing")
		if !InFieldOfView(facing, 360, bearing) {
			t.Fatalf("bearing %v rejected with facing %v", bearing, facing)
		}
	})
}

func TestTurnToward(t *testing.T) {
	assert.InDelta(t, 20, TurnToward(10, 90, 10), 1e-9)
	assert.InDelta(t, 0, TurnToward(10, 350, 10), 1e-9)
	assert.InDelta(t, 355, TurnToward(10, 350, 15), 1e-9)
	assert.InDelta(t, 90, TurnToward(85, 90, 10), 1e-9)
}

func TestArena(t *testing.T) {
	_, err := NewArena(0, 10)
	require.ErrorIs(t, err, ErrInvalidArena)
	_, err = NewArena(10, math.NaN())
	require.ErrorIs(t, err, ErrInvalidArena)

	a, err := NewArena(800, 600)
	require.NoError(t, err)
	assert.True(t, a.Contains(geom.XY{X: 0, Y: 600}))
	assert.False(t, a.Contains(geom.XY{X: -0.1, Y: 5}))
	assert.False(t, a.Contains(geom.XY{X: 5, Y: 600.1}))
	assert.Equal(t, geom.XY{X: 400, Y: 300}, a.Center())
}

func TestPoint(t *testing.T) {
	p, err := Point(geom.XY{X: 1.5, Y: 2})
	require.NoError(t, err)
	c, ok := p.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 1.5, c.X)
	assert.Equal(t, 2.0, c.Y)
}

func TestPoint_RejectsNonFinite(t *testing.T) {
	for _, xy := range []geom.XY{{X: math.NaN(), Y: 1}, {X: 1, Y: math.Inf(1)}} {
		p, err := Point(xy)
		assert.Error(t, err)
		assert.True(t, p.IsEmpty())
	}
}

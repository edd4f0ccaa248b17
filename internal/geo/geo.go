package geo

import (
	"errors"
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ARENA GEOMETRY
// Angles are degrees. 0 points along +X and angles grow counter-clockwise,
// so a heading of a moves a body along (cos a, sin a). Bearings use the same
// convention, which keeps movement and field-of-view math in agreement.

// ErrInvalidArena is returned when arena dimensions are not positive.
var ErrInvalidArena = errors.New("invalid arena dimensions")

// Field-of-view half angles.
const (
	ViewHalfAngle = 60.0
	FireHalfAngle = 30.0
)

// NormalizeAngle maps any angle into [0,360).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// Direction returns the unit vector for a heading.
func Direction(angle float64) geom.XY {
	rad := angle * math.Pi / 180
	return geom.XY{X: math.Cos(rad), Y: math.Sin(rad)}
}

// Displace moves p by distance along angle.
func Displace(p geom.XY, angle, distance float64) geom.XY {
	d := Direction(angle)
	return geom.XY{X: p.X + d.X*distance, Y: p.Y + d.Y*distance}
}

// Distance is the euclidean distance between two points.
func Distance(a, b geom.XY) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Bearing returns the absolute angle from one point to another in [0,360).
// Coincident points have bearing 0.
func Bearing(from, to geom.XY) float64 {
	dx, dy := to.X-from.X, to.Y-from.Y
	if dx == 0 && dy == 0 {
		return 0
	}
	return NormalizeAngle(math.Atan2(dy, dx) * 180 / math.Pi)
}

// InFieldOfView reports whether bearing lies within facing±halfAngle.
//
// The primary interval is clamped to [0,360]. When the low end was clamped,
// [low+360, 360] is also accepted; when the high end was clamped, [0, high-360]
// is also accepted. Every bound is inclusive.
func InFieldOfView(facing, halfAngle, bearing float64) bool {
	lo, hi := facing-halfAngle, facing+halfAngle
	wrapLo, wrapHi := math.Inf(1), math.Inf(-1)
	if lo < 0 {
		wrapLo = lo + 360
		lo = 0
	}
	if hi > 360 {
		wrapHi = hi - 360
		hi = 360
	}
	if lo <= bearing && bearing <= hi {
		return true
	}
	return wrapLo <= bearing || bearing <= wrapHi
}

// TurnToward rotates current toward target by at most maxStep degrees, taking the
// shorter way round. The result is normalized.
func TurnToward(current, target, maxStep float64) float64 {
	diff := NormalizeAngle(target-current)
	if diff > 180 {
		diff -= 360
	}
	if math.Abs(diff) <= maxStep {
		return NormalizeAngle(target)
	}
	if diff > 0 {
		return NormalizeAngle(current + maxStep)
	}
	return NormalizeAngle(current - maxStep)
}

// Arena is the rectangle [0,Width]x[0,Height].
type Arena struct {
	Width  float64
	Height float64
}

// NewArena validates dimensions.
func NewArena(width, height float64) (Arena, error) {
	if !(width > 0) || !(height > 0) {
		return Arena{}, ErrInvalidArena
	}
	return Arena{Width: width, Height: height}, nil
}

// Contains reports whether p lies inside the arena, edges included.
func (a Arena) Contains(p geom.XY) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= a.Width && p.Y <= a.Height
}

// Center returns the middle of the arena.
func (a Arena) Center() geom.XY {
	return geom.XY{X: a.Width / 2, Y: a.Height / 2}
}

// Point converts a position into a simplefeatures point for persistence.
// Non-finite coordinates are rejected.
func Point(p geom.XY) (geom.Point, error) {
	pt, err := geom.NewPoint(geom.Coordinates{XY: p, Type: geom.DimXY})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("point (%v, %v): %w", p.X, p.Y, err)
	}
	return pt, nil
}

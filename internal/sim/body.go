package sim

import (
	"fmt"

	"github.com/mechevo/simulator/internal/geo"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Kind tags every concrete body type. The set is closed; collision resolution
// switches over ordered pairs of these values.
type Kind uint8

const (
	KindUnit Kind = iota
	KindObstacle
	KindSentry
	KindProjectile
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindObstacle:
		return "obstacle"
	case KindSentry:
		return "sentry"
	case KindProjectile:
		return "projectile"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Body holds the state shared by every simulated entity.
type Body struct {
	ID        int
	Kind      Kind
	Position  geom.XY
	Angle     float64
	Radius    float64
	Speed     float64
	Destroyed bool
}

// Solid is implemented by every concrete body through its embedded Body.
type Solid interface {
	Base() *Body
}

// Base returns the shared body state.
func (b *Body) Base() *Body {
	return b
}

// Move translates the body by distance along angle. Radius plays no part here.
func (b *Body) Move(angle, distance float64) {
	b.Position = geo.Displace(b.Position, angle, distance)
}

// Overlaps reports whether two bodies intersect. Touching is not overlapping.
func (b *Body) Overlaps(o *Body) bool {
	return geo.Distance(b.Position, o.Position) < b.Radius+o.Radius
}

package sim

import (
	"fmt"

	"github.com/mechevo/simulator/internal/geo"
)

// resolveCollisions checks every live pair once, in world order, and resolves
// those that overlap. Corrections are applied immediately, so later pairs see
// the corrected positions.
func (w *World) resolveCollisions() {
	solids := w.liveSolids()
	for i := 0; i < len(solids); i++ {
		for j := i + 1; j < len(solids); j++ {
			a, b := solids[i].Base(), solids[j].Base()
			if a.Destroyed || b.Destroyed || !a.Overlaps(b) {
				continue
			}
			w.resolve(solids[i], solids[j])
		}
	}
}

// resolve handles one overlapping pair. The pair is normalized so that the
// lower Kind comes first, which leaves ten unordered cases to handle.
func (w *World) resolve(a, b Solid) {
	if a.Base().Kind > b.Base().Kind {
		a, b = b, a
	}

	switch [2]Kind{a.Base().Kind, b.Base().Kind} {
	case [2]Kind{KindUnit, KindUnit}:
		separate(a.Base(), b.Base())
	case [2]Kind{KindUnit, KindObstacle}, [2]Kind{KindUnit, KindSentry}:
		pushOut(a.Base(), b.Base())
	case [2]Kind{KindUnit, KindProjectile}:
		u, p := a.(*Unit), b.(*Projectile)
		if p.OwnerID == u.ID {
			return
		}
		u.TakeDamage(w, p.Damage)
		p.Destroyed = true
	case [2]Kind{KindObstacle, KindProjectile}:
		b.Base().Destroyed = true
	case [2]Kind{KindSentry, KindProjectile}:
		s, p := a.(*Sentry), b.(*Projectile)
		if p.OwnerID == s.ID {
			return
		}
		s.TakeDamage(w, p.Damage)
		p.Destroyed = true
	case [2]Kind{KindObstacle, KindObstacle},
		[2]Kind{KindObstacle, KindSentry},
		[2]Kind{KindSentry, KindSentry}:
		// static bodies never correct each other
	case [2]Kind{KindProjectile, KindProjectile}:
		// projectiles pass through each other
	default:
		panic(fmt.Sprintf("sim: no collision handler for %s/%s", a.Base().Kind, b.Base().Kind))
	}
}

// separate pushes two mobile bodies apart along the line between their
// centers, each by half the penetration depth. Coincident bodies separate
// along the X axis: a toward +X and b toward -X.
func separate(a, b *Body) {
	dist := geo.Distance(a.Position, b.Position)
	half := (a.Radius + b.Radius - dist) / 2
	angle := 0.0
	if dist > 0 {
		angle = geo.Bearing(b.Position, a.Position)
	}
	a.Move(angle, half)
	b.Move(angle+180, half)
}

// pushOut moves the mobile body m clear of the immovable body s. Coincident
// bodies resolve toward +X.
func pushOut(m, s *Body) {
	dist := geo.Distance(m.Position, s.Position)
	angle := 0.0
	if dist > 0 {
		angle = geo.Bearing(s.Position, m.Position)
	}
	m.Move(angle, m.Radius+s.Radius-dist)
}

package sim

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Obstacle is a static collision surface.
type Obstacle struct {
	Body
}

// Sentry is a stationary, team-owned turret.
type Sentry struct {
	Body
	TeamID int
	Health int
	Gun    *Weapon
}

// Sentry tuning.
const (
	SentryHealth = 50
	SentryRadius = 20
	SentryRange  = 250.0
)

// TakeDamage lowers health and reports it. Health at or below zero destroys the sentry.
func (s *Sentry) TakeDamage(w *World, damage int) {
	s.Health -= damage
	if s.Health <= 0 {
		s.Destroyed = true
	}
	w.emit(hpEvent(s.ID, s.Health))
}

// ProjectileKind identifies a projectile model.
type ProjectileKind uint8

const (
	ProjectileBullet ProjectileKind = iota
	ProjectileShell
	ProjectileHomingMissile
)

type projectileStats struct {
	name     string
	radius   float64
	speed    float64
	damage   int
	homing   bool
	rotSpeed float64
}

var projectileTable = [...]projectileStats{
	ProjectileBullet:        {name: "Bullet", radius: 3, speed: 400, damage: 5},
	ProjectileShell:         {name: "Shell", radius: 8, speed: 250, damage: 20},
	ProjectileHomingMissile: {name: "HomingMissile", radius: 30, speed: 30, damage: 15, homing: true, rotSpeed: 20},
}

func (k ProjectileKind) String() string {
	if int(k) < len(projectileTable) {
		return projectileTable[k].name
	}
	return fmt.Sprintf("projectile(%d)", uint8(k))
}

// HomingPolicy decides what a homing projectile does once its target is gone.
type HomingPolicy uint8

const (
	// HomingContinue keeps flying along the last heading.
	HomingContinue HomingPolicy = iota
	// HomingDestroy removes the projectile on the tick the target stops resolving.
	HomingDestroy
)

// ParseHomingPolicy accepts "continue" or "destroy".
func ParseHomingPolicy(s string) (HomingPolicy, error) {
	switch s {
	case "", "continue":
		return HomingContinue, nil
	case "destroy":
		return HomingDestroy, nil
	}
	return 0, fmt.Errorf("%w: unknown homing policy %q", ErrInvalidParam, s)
}

// Projectile is fired by a weapon and destroyed on its first resolved collision.
// TargetID is a lookup key into the world, zero when the projectile is not homing.
type Projectile struct {
	Body
	Type     ProjectileKind
	OwnerID  int
	Damage   int
	TargetID int
}

// Homing reports whether the projectile steers toward a target.
func (p *Projectile) Homing() bool {
	return projectileTable[p.Type].homing
}

func newProjectile(id int, kind ProjectileKind, owner int, pos geom.XY, angle float64, target int) *Projectile {
	st := projectileTable[kind]
	p := &Projectile{
		Body: Body{
			ID:       id,
			Kind:     KindProjectile,
			Position: pos,
			Angle:    angle,
			Radius:   st.radius,
			Speed:    st.speed,
		},
		Type:    kind,
		OwnerID: owner,
		Damage:  st.damage,
	}
	if st.homing {
		p.TargetID = target
	}
	return p
}

package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/mechevo/simulator/internal/geo"
	"github.com/mechevo/simulator/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

var (
	// ErrInvalidParam is returned when an action, condition or weapon cannot be
	// built from its parameters.
	ErrInvalidParam = errors.New("invalid parameter")
	// ErrMissingCatchAll is returned when an algorithm does not end with an
	// always-true idle entry.
	ErrMissingCatchAll = errors.New("algorithm must end with a catch-all entry")
	// ErrWeaponSlots is returned when a unit is not given exactly one weapon per slot.
	ErrWeaponSlots = errors.New("unit needs a weapon in every slot")
	// ErrNotCancelable guards the lifecycle against interrupting a committed action.
	ErrNotCancelable = errors.New("action is not cancelable")
)

// Sink receives every event raised during a run. Delivery is fire-and-forget.
type Sink interface {
	Emit(core.Event)
}

// Option configures a World.
type Option func(*World)

// WithHomingPolicy sets what homing projectiles do when their target is gone.
func WithHomingPolicy(p HomingPolicy) Option {
	return func(w *World) {
		w.homingPolicy = p
	}
}

// World owns every entity of a run and advances them one tick at a time.
// It is not safe for concurrent use.
type World struct {
	arena geo.Arena
	sink  Sink

	units       []*Unit
	obstacles   []*Obstacle
	sentries    []*Sentry
	projectiles []*Projectile

	nextID       int
	elapsed      float64
	ticks        int
	homingPolicy HomingPolicy
}

// NewWorld creates an empty world. Every event is delivered to sink.
func NewWorld(arena geo.Arena, sink Sink, opts ...Option) *World {
	w := &World{
		arena:  arena,
		sink:   sink,
		nextID: 1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) allocID() int {
	id := w.nextID
	w.nextID++
	return id
}

func (w *World) emit(e core.Event) {
	e.Time = w.elapsed
	w.sink.Emit(e)
}

func hpEvent(id, value int) core.Event {
	return core.NewEvent(core.TitleModifyHp).Int("id", id).Int("value", value)
}

// Arena returns the world bounds.
func (w *World) Arena() geo.Arena { return w.arena }

// Elapsed is the simulated time so far.
func (w *World) Elapsed() float64 { return w.elapsed }

// Ticks is the number of completed ticks.
func (w *World) Ticks() int { return w.ticks }

// Units returns the units in creation order.
func (w *World) Units() []*Unit { return w.units }

// Obstacles returns the obstacles in creation order.
func (w *World) Obstacles() []*Obstacle { return w.obstacles }

// Sentries returns the sentries in creation order.
func (w *World) Sentries() []*Sentry { return w.sentries }

// Projectiles returns projectiles in flight.
func (w *World) Projectiles() []*Projectile { return w.projectiles }

// Unit looks a unit up by id. Destroyed units still resolve until the tick ends.
func (w *World) Unit(id int) (*Unit, bool) {
	for _, u := range w.units {
		if u.ID == id {
			return u, true
		}
	}
	return nil, false
}

// TeamsAlive returns the number of live units per team.
func (w *World) TeamsAlive() map[int]int {
	alive := make(map[int]int)
	for _, u := range w.units {
		if !u.Destroyed {
			alive[u.TeamID]++
		}
	}
	return alive
}

// UnitConfig describes a unit to add. Weapons are in slot order left, right, center.
type UnitConfig struct {
	TeamID    int
	Color     string
	Position  geom.XY
	Angle     float64
	Weapons   []WeaponKind
	Algorithm *Algorithm
}

// AddUnit creates a unit at full health and raises createPlayer.
func (w *World) AddUnit(cfg UnitConfig) (*Unit, error) {
	if len(cfg.Weapons) != len(Slots) {
		return nil, fmt.Errorf("%w: got %d weapons", ErrWeaponSlots, len(cfg.Weapons))
	}
	if cfg.Algorithm == nil {
		return nil, ErrMissingCatchAll
	}
	entries := cfg.Algorithm.entries
	if len(entries) == 0 || !entries[len(entries)-1].IsCatchAll() {
		return nil, ErrMissingCatchAll
	}

	u := &Unit{
		Body: Body{
			ID:       w.allocID(),
			Kind:     KindUnit,
			Position: cfg.Position,
			Angle:    cfg.Angle,
			Radius:   UnitRadius,
			Speed:    MoveSpeed,
		},
		TeamID:    cfg.TeamID,
		Color:     cfg.Color,
		Health:    UnitHealth,
		algorithm: cfg.Algorithm,
	}
	for i, slot := range Slots {
		wp := NewWeapon(cfg.Weapons[i])
		wp.Slot = slot
		u.Weapons[i] = wp
	}
	u.markPose()
	w.units = append(w.units, u)

	w.emit(core.NewEvent(core.TitleCreatePlayer).
		Int("id", u.ID).
		Int("teamId", u.TeamID).
		Float("x", u.Position.X).
		Float("y", u.Position.Y).
		Float("angle", u.Angle).
		Str("color", u.Color).
		Str("weaponLeft", u.Weapons[SlotLeft].Kind.String()).
		Str("weaponRight", u.Weapons[SlotRight].Kind.String()).
		Str("weaponCenter", u.Weapons[SlotCenter].Kind.String()).
		Int("hp", u.Health))
	return u, nil
}

// AddObstacle creates a static obstacle and raises createObstacle.
func (w *World) AddObstacle(pos geom.XY, radius float64) (*Obstacle, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("%w: obstacle radius %v", ErrInvalidParam, radius)
	}
	o := &Obstacle{Body: Body{
		ID:       w.allocID(),
		Kind:     KindObstacle,
		Position: pos,
		Radius:   radius,
	}}
	w.obstacles = append(w.obstacles, o)
	w.emit(core.NewEvent(core.TitleCreateObstacle).
		Int("id", o.ID).
		Float("x", pos.X).
		Float("y", pos.Y).
		Float("radius", radius))
	return o, nil
}

// AddSentry creates a turret and raises createSentry.
func (w *World) AddSentry(teamID int, pos geom.XY, angle float64, gun WeaponKind) *Sentry {
	s := &Sentry{
		Body: Body{
			ID:       w.allocID(),
			Kind:     KindSentry,
			Position: pos,
			Angle:    angle,
			Radius:   SentryRadius,
		},
		TeamID: teamID,
		Health: SentryHealth,
		Gun:    NewWeapon(gun),
	}
	s.Gun.Slot = SlotCenter
	w.sentries = append(w.sentries, s)
	w.emit(core.NewEvent(core.TitleCreateSentry).
		Int("id", s.ID).
		Int("teamId", teamID).
		Float("x", pos.X).
		Float("y", pos.Y).
		Float("angle", angle).
		Int("hp", s.Health))
	return s
}

// Advance runs one full tick of length dt.
//
// Every live unit first cools down and decides against the previous tick's
// state. Then every unit executes its current step, sentries fire,
// projectiles fly, and overlaps are resolved. Bodies destroyed during the
// tick are removed only at its end.
func (w *World) Advance(dt float64) {
	for _, u := range w.units {
		u.markPose()
	}

	for _, u := range w.units {
		if u.Destroyed {
			continue
		}
		u.UpdateHeat(dt)
		for _, wp := range u.Weapons {
			wp.UpdateCooldown(dt)
		}
		if !u.Paralysed {
			w.decide(u)
		}
	}

	for _, u := range w.units {
		if u.Destroyed || u.Paralysed {
			continue
		}
		w.act(u, dt)
	}

	w.updateSentries(dt)
	w.updateProjectiles(dt)
	w.resolveCollisions()

	for _, u := range w.units {
		if !u.Destroyed && u.poseChanged() {
			w.emit(core.NewEvent(core.TitleMovePlayer).
				Int("id", u.ID).
				Float("x", u.Position.X).
				Float("y", u.Position.Y).
				Float("angle", u.Angle))
		}
	}

	w.sweep()
	w.elapsed += dt
	w.ticks++
}

// decide keeps or replaces the unit's order. A running order is replaced only
// when its current step is cancelable and a different entry is now best.
func (w *World) decide(u *Unit) {
	best := u.algorithm.Best(w, u)

	if cur := u.order; cur != nil && cur.action != nil && cur.action.Cancelable() && cur.entry != best {
		if err := cur.transition(eventCancel, w, u); err != nil {
			panic(fmt.Sprintf("sim: cancel order of unit %d: %v", u.ID, err))
		}
		u.order = nil
	}

	if u.order == nil || u.order.action == nil {
		targetID := 0
		if t := best.PreferredTarget(w, u); t != nil {
			targetID = t.ID
		}
		u.order = newSuggestion(best, best.Performable(w, u), targetID)
	}
}

// act runs the current step for one tick and moves to the next step once it
// has finished.
func (w *World) act(u *Unit, dt float64) {
	s := u.order
	if s == nil || s.action == nil {
		return
	}
	if !s.started() {
		if err := s.transition(eventBegin, w, u); err != nil {
			panic(fmt.Sprintf("sim: begin step of unit %d: %v", u.ID, err))
		}
	}
	s.action.update(w, u, dt)
	s.elapsed += dt

	if s.action.Finished(u, s.elapsed) {
		if err := s.transition(eventFinish, w, u); err != nil {
			panic(fmt.Sprintf("sim: finish step of unit %d: %v", u.ID, err))
		}
		s.advance(w, u)
	}
}

// fireUnitWeapon launches the projectile of the weapon in slot. Homing
// projectiles lock on to targetID, or the nearest enemy in the firing arc when
// that id no longer resolves.
func (w *World) fireUnitWeapon(u *Unit, slot Slot, targetID int) {
	wp := u.Weapon(slot)
	wp.trigger()
	u.IncreaseHeat(wp.HeatCost())

	if t, ok := w.Unit(targetID); !ok || t.Destroyed {
		targetID = 0
		if n := u.nearest(u.EnemiesInView(w, geo.FireHalfAngle)); n != nil {
			targetID = n.ID
		}
	}
	w.spawnProjectile(wp.Projectile(), u.ID, u.MountPosition(slot), u.Angle, targetID)
}

func (w *World) spawnProjectile(kind ProjectileKind, owner int, pos geom.XY, angle float64, target int) {
	p := newProjectile(w.allocID(), kind, owner, pos, angle, target)
	w.projectiles = append(w.projectiles, p)
	w.emit(core.NewEvent(core.TitleCreateProjectile).
		Int("id", p.ID).
		Int("ownerId", owner).
		Str("type", kind.String()).
		Float("x", pos.X).
		Float("y", pos.Y).
		Float("angle", angle))
}

// updateSentries turns each sentry toward the nearest enemy in range and
// fires when its gun is ready.
func (w *World) updateSentries(dt float64) {
	for _, s := range w.sentries {
		if s.Destroyed {
			continue
		}
		s.Gun.UpdateCooldown(dt)

		var target *Unit
		best := math.Inf(1)
		for _, u := range w.units {
			if u.Destroyed || u.TeamID == s.TeamID {
				continue
			}
			if d := geo.Distance(s.Position, u.Position); d <= SentryRange && d < best {
				target, best = u, d
			}
		}
		if target == nil {
			continue
		}
		s.Angle = geo.Bearing(s.Position, target.Position)
		if s.Gun.Ready() {
			s.Gun.trigger()
			w.spawnProjectile(s.Gun.Projectile(), s.ID, s.Position, s.Angle, target.ID)
		}
	}
}

// updateProjectiles steers homing projectiles, moves every projectile and
// destroys those that leave the arena.
func (w *World) updateProjectiles(dt float64) {
	for _, p := range w.projectiles {
		if p.Destroyed {
			continue
		}
		if p.Homing() {
			t, ok := w.Unit(p.TargetID)
			switch {
			case ok && !t.Destroyed:
				bearing := geo.Bearing(p.Position, t.Position)
				p.Angle = geo.TurnToward(p.Angle, bearing, projectileTable[p.Type].rotSpeed*dt)
			case p.TargetID != 0 && w.homingPolicy == HomingDestroy:
				p.Destroyed = true
				continue
			}
		}
		p.Move(p.Angle, p.Speed*dt)
		if !w.arena.Contains(p.Position) {
			p.Destroyed = true
			continue
		}
		if p.Homing() {
			w.emit(core.NewEvent(core.TitleMoveProjectile).
				Int("id", p.ID).
				Float("x", p.Position.X).
				Float("y", p.Position.Y).
				Float("angle", p.Angle))
		}
	}
}

// liveSolids lists every body taking part in collisions, in a fixed order.
func (w *World) liveSolids() []Solid {
	out := make([]Solid, 0, len(w.units)+len(w.obstacles)+len(w.sentries)+len(w.projectiles))
	for _, u := range w.units {
		if !u.Destroyed {
			out = append(out, u)
		}
	}
	for _, o := range w.obstacles {
		out = append(out, o)
	}
	for _, s := range w.sentries {
		if !s.Destroyed {
			out = append(out, s)
		}
	}
	for _, p := range w.projectiles {
		if !p.Destroyed {
			out = append(out, p)
		}
	}
	return out
}

// sweep removes bodies destroyed during the tick and raises their erase events.
// A destroyed unit's running step is ended first so its stop event precedes
// the erase.
func (w *World) sweep() {
	units := w.units[:0]
	for _, u := range w.units {
		if !u.Destroyed {
			units = append(units, u)
			continue
		}
		if s := u.order; s != nil && s.action != nil && s.lifecycle.Is(stateRunning) {
			if err := s.transition(eventFinish, w, u); err != nil {
				panic(fmt.Sprintf("sim: end step of unit %d: %v", u.ID, err))
			}
		}
		u.order = nil
		w.emit(core.NewEvent(core.TitleErasePlayer).Int("id", u.ID))
	}
	clear(w.units[len(units):])
	w.units = units

	sentries := w.sentries[:0]
	for _, s := range w.sentries {
		if !s.Destroyed {
			sentries = append(sentries, s)
			continue
		}
		w.emit(core.NewEvent(core.TitleEraseSentry).Int("id", s.ID))
	}
	clear(w.sentries[len(sentries):])
	w.sentries = sentries

	projectiles := w.projectiles[:0]
	for _, p := range w.projectiles {
		if !p.Destroyed {
			projectiles = append(projectiles, p)
			continue
		}
		w.emit(core.NewEvent(core.TitleEraseProjectile).
			Int("id", p.ID).
			Float("x", p.Position.X).
			Float("y", p.Position.Y))
	}
	clear(w.projectiles[len(projectiles):])
	w.projectiles = projectiles
}

package sim

import (
	"fmt"
	"strings"
)

// Slot is a weapon mount position on a unit.
type Slot uint8

const (
	SlotLeft Slot = iota
	SlotRight
	SlotCenter
)

// Slots lists mounts in equip order.
var Slots = [3]Slot{SlotLeft, SlotRight, SlotCenter}

func (s Slot) String() string {
	switch s {
	case SlotLeft:
		return "LEFT"
	case SlotRight:
		return "RIGHT"
	case SlotCenter:
		return "CENTER"
	default:
		return fmt.Sprintf("SLOT(%d)", uint8(s))
	}
}

// ParseSlot accepts LEFT, RIGHT or CENTER in any case.
func ParseSlot(s string) (Slot, error) {
	switch strings.ToUpper(s) {
	case "LEFT":
		return SlotLeft, nil
	case "RIGHT":
		return SlotRight, nil
	case "CENTER":
		return SlotCenter, nil
	}
	return 0, fmt.Errorf("%w: unknown slot %q", ErrInvalidParam, s)
}

// WeaponKind identifies a weapon model.
type WeaponKind uint8

const (
	WeaponMachineGun WeaponKind = iota
	WeaponCannon
	WeaponMissileLauncher
)

type weaponStats struct {
	name       string
	cooldown   float64
	heat       float64
	projectile ProjectileKind
}

var weaponTable = [...]weaponStats{
	WeaponMachineGun:      {name: "MachineGun", cooldown: 0.5, heat: 5, projectile: ProjectileBullet},
	WeaponCannon:          {name: "Cannon", cooldown: 2, heat: 20, projectile: ProjectileShell},
	WeaponMissileLauncher: {name: "MissileLauncher", cooldown: 3, heat: 15, projectile: ProjectileHomingMissile},
}

func (k WeaponKind) String() string {
	if int(k) < len(weaponTable) {
		return weaponTable[k].name
	}
	return fmt.Sprintf("weapon(%d)", uint8(k))
}

// Weapon belongs to one unit or sentry and tracks its remaining cooldown.
type Weapon struct {
	Kind     WeaponKind
	Slot     Slot
	cooldown float64
}

// NewWeapon returns a ready weapon.
func NewWeapon(kind WeaponKind) *Weapon {
	return &Weapon{Kind: kind}
}

// Ready reports whether the cooldown has elapsed.
func (w *Weapon) Ready() bool {
	return w.cooldown <= 0
}

// Cooldown returns the remaining cooldown in seconds.
func (w *Weapon) Cooldown() float64 {
	return w.cooldown
}

// HeatCost is the heat added to the owner per shot.
func (w *Weapon) HeatCost() float64 {
	return weaponTable[w.Kind].heat
}

// Projectile returns the kind of projectile this weapon launches.
func (w *Weapon) Projectile() ProjectileKind {
	return weaponTable[w.Kind].projectile
}

// UpdateCooldown counts the cooldown down, never below zero.
func (w *Weapon) UpdateCooldown(dt float64) {
	w.cooldown -= dt
	if w.cooldown < 0 {
		w.cooldown = 0
	}
}

func (w *Weapon) trigger() {
	w.cooldown = weaponTable[w.Kind].cooldown
}

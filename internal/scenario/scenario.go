// Package scenario reads scenario files and builds worlds from them.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mechevo/simulator/internal/geo"
	"github.com/mechevo/simulator/internal/registry"
	"github.com/mechevo/simulator/internal/sim"
	"github.com/mechevo/simulator/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is returned for structurally invalid scenarios.
var ErrInvalidScenario = errors.New("invalid scenario")

// Format is a scenario file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension. Unknown extensions are read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and parses a scenario file. The scenario name defaults to the file name.
func Load(path string) (core.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Scenario{}, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return core.Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Parse decodes a scenario.
func Parse(data []byte, format Format) (core.Scenario, error) {
	var sc core.Scenario
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &sc)
	case FormatJSON:
		err = json.Unmarshal(data, &sc)
	default:
		return sc, fmt.Errorf("%w: unsupported format %q", ErrInvalidScenario, format)
	}
	if err != nil {
		return sc, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return sc, nil
}

// Build creates a world from the scenario. Obstacles are added first, then
// sentries, then players, so ids follow that order. Every player algorithm
// gets an always-true idle entry appended.
func Build(sc core.Scenario, reg *registry.Registry, sink sim.Sink, opts ...sim.Option) (*sim.World, error) {
	arena, err := geo.NewArena(sc.Map.Width, sc.Map.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: map %vx%v: %v", ErrInvalidScenario, sc.Map.Width, sc.Map.Height, err)
	}
	w := sim.NewWorld(arena, sink, opts...)

	for i, o := range sc.Obstacles {
		if _, err := w.AddObstacle(geom.XY{X: o.X, Y: o.Y}, o.Radius); err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
	}

	for i, s := range sc.Sentries {
		gun := sim.WeaponMachineGun
		if s.Weapon != "" {
			if gun, err = reg.Weapon(s.Weapon); err != nil {
				return nil, fmt.Errorf("sentry %d: %w", i, err)
			}
		}
		w.AddSentry(s.TeamID, geom.XY{X: s.X, Y: s.Y}, s.Angle, gun)
	}

	for i, p := range sc.Players {
		cfg, err := unitConfig(p, reg)
		if err != nil {
			return nil, fmt.Errorf("player %d: %w", i, err)
		}
		if _, err := w.AddUnit(cfg); err != nil {
			return nil, fmt.Errorf("player %d: %w", i, err)
		}
	}
	return w, nil
}

func unitConfig(p core.PlayerSpec, reg *registry.Registry) (sim.UnitConfig, error) {
	if len(p.Weapons) != len(sim.Slots) {
		return sim.UnitConfig{}, fmt.Errorf("%w: need %d weapons, got %d", ErrInvalidScenario, len(sim.Slots), len(p.Weapons))
	}
	weapons := make([]sim.WeaponKind, len(p.Weapons))
	for i, name := range p.Weapons {
		k, err := reg.Weapon(name)
		if err != nil {
			return sim.UnitConfig{}, err
		}
		weapons[i] = k
	}

	entries := make([]*sim.Entry, 0, len(p.Algorithm)+1)
	for i, spec := range p.Algorithm {
		e, err := buildEntry(spec, reg)
		if err != nil {
			return sim.UnitConfig{}, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	entries = append(entries, sim.CatchAll())

	alg, err := sim.NewAlgorithm(entries...)
	if err != nil {
		return sim.UnitConfig{}, err
	}

	return sim.UnitConfig{
		TeamID:    p.TeamID,
		Color:     p.Color,
		Position:  geom.XY{X: p.X, Y: p.Y},
		Angle:     p.Angle,
		Weapons:   weapons,
		Algorithm: alg,
	}, nil
}

func buildEntry(spec core.EntrySpec, reg *registry.Registry) (*sim.Entry, error) {
	conds := make([]sim.Condition, 0, len(spec.Conditions))
	for _, c := range spec.Conditions {
		cond, err := reg.Condition(c.Name, c.Param)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	actions := make([]*sim.Action, 0, len(spec.Actions))
	for _, a := range spec.Actions {
		act, err := reg.Action(a.Name, a.Param)
		if err != nil {
			return nil, err
		}
		actions = append(actions, act)
	}
	return sim.NewEntry(conds, actions)
}

package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"machinearena.ai/internal/sim/geom"
)

type Tuning struct {
	WorldID string      `yaml:"world_id" json:"world_id"`
	Bounds  geom.Bounds `yaml:"world_bounds" json:"world_bounds"`

	DefaultRadius     float64 `yaml:"default_radius" json:"default_radius"`
	DefaultVisibility float64 `yaml:"default_visibility_radius" json:"default_visibility_radius"`
	DefaultLife       int     `yaml:"default_life" json:"default_life"`
	DefaultType       string  `yaml:"default_machine_type" json:"default_machine_type"`

	Attack Attack `yaml:"attack" json:"attack"`
	Carry  Carry  `yaml:"carry" json:"carry"`
	Layout Layout `yaml:"layout" json:"layout"`

	SnapshotEvery time.Duration `yaml:"snapshot_every" json:"snapshot_every"`
	ViewPoll      time.Duration `yaml:"view_poll" json:"view_poll"`
}

type Attack struct {
	Range          int           `yaml:"range" json:"range"`
	Damage         int           `yaml:"damage" json:"damage"`
	RevealDuration time.Duration `yaml:"reveal_duration" json:"reveal_duration"`
	RevealRadius   float64       `yaml:"reveal_radius" json:"reveal_radius"`
}

type Carry struct {
	Slots   int     `yaml:"slots" json:"slots"`
	Epsilon float64 `yaml:"pickup_epsilon" json:"pickup_epsilon"`
}

// Layout describes the obstacles installed in a fresh world.
type Layout struct {
	WallHalfSize int   `yaml:"wall_half_size" json:"wall_half_size"`
	InnerCount   int   `yaml:"inner_count" json:"inner_count"`
	Seed         int64 `yaml:"seed" json:"seed"`
}

func Defaults() Tuning {
	return Tuning{
		WorldID:           "arena_1",
		Bounds:            geom.Bounds{Min: -100, Max: 100},
		DefaultRadius:     1.0,
		DefaultVisibility: 3,
		DefaultLife:       10,
		DefaultType:       "worker",
		Attack: Attack{
			Range:          10,
			Damage:         1,
			RevealDuration: 3 * time.Second,
			RevealRadius:   1.0,
		},
		Carry: Carry{
			Slots:   4,
			Epsilon: 0.05,
		},
		Layout: Layout{
			WallHalfSize: 15,
			InnerCount:   20,
			Seed:         42,
		},
		SnapshotEvery: 30 * time.Second,
		ViewPoll:      200 * time.Millisecond,
	}
}

// Load reads a YAML file on top of Defaults(); keys missing from the file keep
// their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.Bounds.Min > t.Bounds.Max {
		errs = append(errs, fmt.Errorf("world_bounds: min %v > max %v", t.Bounds.Min, t.Bounds.Max))
	}
	if t.DefaultRadius < 0 {
		errs = append(errs, errors.New("default_radius must be >= 0"))
	}
	if t.DefaultVisibility < 0 {
		errs = append(errs, errors.New("default_visibility_radius must be >= 0"))
	}
	if t.DefaultLife <= 0 {
		errs = append(errs, errors.New("default_life must be > 0"))
	}
	if t.Attack.Range <= 0 {
		errs = append(errs, errors.New("attack.range must be > 0"))
	}
	if t.Attack.Damage <= 0 {
		errs = append(errs, errors.New("attack.damage must be > 0"))
	}
	if t.Attack.RevealDuration <= 0 {
		errs = append(errs, errors.New("attack.reveal_duration must be > 0"))
	}
	if t.Attack.RevealRadius < 0 {
		errs = append(errs, errors.New("attack.reveal_radius must be >= 0"))
	}
	if t.Carry.Slots < 0 {
		errs = append(errs, errors.New("carry.slots must be >= 0"))
	}
	if t.Carry.Epsilon < 0 {
		errs = append(errs, errors.New("carry.pickup_epsilon must be >= 0"))
	}
	return errors.Join(errs...)
}

package world

import (
	"fmt"
	"math/rand"
	"time"

	"machinearena.ai/internal/sim/geom"
	"machinearena.ai/internal/sim/tuning"
)

// LayoutRadius makes neighbouring wall cells touch without overlapping.
const LayoutRadius = 0.5

// Layout returns the default arena: a square wall at +-WallHalfSize and
// InnerCount obstacles drawn from a seeded RNG, kept out of the 7x7 area
// around the origin so spawns there stay free.
func Layout(cfg tuning.Layout) []Obstacle {
	w := cfg.WallHalfSize
	if w <= 0 {
		return nil
	}
	var out []Obstacle
	add := func(id string, x, y int) {
		out = append(out, Obstacle{ID: id, Pos: geom.V(float64(x), float64(y)), Radius: LayoutRadius, Type: ObstacleStatic})
	}
	for i := -w; i <= w; i++ {
		add(fmt.Sprintf("wall_top_%d", i), i, w)
		add(fmt.Sprintf("wall_bottom_%d", i), i, -w)
	}
	for i := -w + 1; i <= w-1; i++ {
		add(fmt.Sprintf("wall_left_%d", i), -w, i)
		add(fmt.Sprintf("wall_right_%d", i), w, i)
	}

	span := w - 3
	if span <= 3 {
		return out
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	used := map[Cell]bool{}
	for i := 0; i < cfg.InnerCount; i++ {
		for attempt := 0; attempt < 1000; attempt++ {
			x := rng.Intn(2*span+1) - span
			y := rng.Intn(2*span+1) - span
			c := Cell{X: x, Y: y}
			if (abs(x) <= 3 && abs(y) <= 3) || used[c] {
				continue
			}
			used[c] = true
			add(fmt.Sprintf("inner_%d", i), x, y)
			break
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// InstallLayout adds the default layout to the current world. Entries that do
// not validate against what is already there are skipped.
func (e *Engine) InstallLayout() int {
	n := 0
	_ = e.store.Update(func(tx *Tx) error {
		n = e.installLayout(tx)
		return nil
	})
	e.logf("layout installed: %d obstacles", n)
	return n
}

func (e *Engine) installLayout(tx *Tx) int {
	n := 0
	for _, o := range Layout(e.cfg.Layout) {
		if _, ok := tx.kindOf(o.ID); ok {
			continue
		}
		if e.validator.Validate(tx, Footprint{Pos: o.Pos, Radius: o.Radius}) != nil {
			continue
		}
		if tx.Insert(o) == nil {
			n++
		}
	}
	return n
}

// Reset clears machines, resources and reveal zones and reinstalls the
// default layout. Stamps keep increasing across a reset.
func (e *Engine) Reset() error {
	_, err := e.mutate(ActReset, "", ActionParams{}, func(tx *Tx, _ time.Time) (Machine, error) {
		tx.machines = map[string]*Machine{}
		tx.obstacles = map[string]*Obstacle{}
		tx.resources = map[string]*Resource{}
		tx.zones = nil
		tx.version++
		n := e.installLayout(tx)
		e.logf("world reset: %d layout obstacles", n)
		return Machine{}, nil
	})
	return err
}

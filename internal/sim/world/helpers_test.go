package world

import (
	"testing"
	"time"

	"machinearena.ai/internal/sim/geom"
	"machinearena.ai/internal/sim/tuning"
)

// testClock is a manually advanced clock.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testTuning(min, max float64) tuning.Tuning {
	cfg := tuning.Defaults()
	cfg.Bounds = geom.Bounds{Min: min, Max: max}
	return cfg
}

func newTestEngine(t *testing.T, min, max float64) (*Engine, *testClock) {
	t.Helper()
	e := New(testTuning(min, max))
	clk := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	e.SetClock(clk.Now)
	return e, clk
}

func ptr[T any](v T) *T { return &v }

func mustRegister(t *testing.T, e *Engine, spec MachineSpec) Machine {
	t.Helper()
	m, err := e.Register(spec)
	if err != nil {
		t.Fatalf("register %s: %v", spec.ID, err)
	}
	return m
}

func at(x, y float64) *geom.Vec3 { return ptr(geom.V(x, y)) }

func viewHas(v View, id string) bool {
	for _, m := range v.Machines {
		if m.ID == id {
			return true
		}
	}
	return false
}

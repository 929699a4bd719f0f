package world

import (
	"reflect"
	"testing"

	"machinearena.ai/internal/sim/tuning"
)

func TestLayout_DeterministicAndClear(t *testing.T) {
	cfg := tuning.Defaults().Layout
	a, b := Layout(cfg), Layout(cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("layout not deterministic for a fixed seed")
	}
	w := cfg.WallHalfSize
	walls, inner := 0, 0
	for _, o := range a {
		x, y := int(o.Pos.X), int(o.Pos.Y)
		if abs(x) == w || abs(y) == w {
			walls++
			continue
		}
		inner++
		if abs(x) <= 3 && abs(y) <= 3 {
			t.Fatalf("inner obstacle %s too close to origin: %+v", o.ID, o.Pos)
		}
	}
	if walls != 8*w {
		t.Fatalf("walls: %d want %d", walls, 8*w)
	}
	if inner != cfg.InnerCount {
		t.Fatalf("inner: %d want %d", inner, cfg.InnerCount)
	}
}

func TestInstallLayoutAndReset(t *testing.T) {
	e, _ := newTestEngine(t, -100, 100)
	n := e.InstallLayout()
	if n != len(Layout(e.Config().Layout)) {
		t.Fatalf("installed %d of %d", n, len(Layout(e.Config().Layout)))
	}
	m := mustRegister(t, e, MachineSpec{Owner: "alice"})
	if m.Pos.X != 0 || m.Pos.Y != 0 {
		t.Fatalf("origin should be free after layout: %+v", m.Pos)
	}
	if err := e.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := len(e.Store().List(KindMachine)); got != 0 {
		t.Fatalf("machines after reset: %d", got)
	}
	if got := len(e.Store().List(KindObstacle)); got != n {
		t.Fatalf("obstacles after reset: %d want %d", got, n)
	}
}

package main

import (
	"sync"
	"testing"
	"time"

	"machinearena.ai/internal/sim/geom"
	"machinearena.ai/internal/sim/tuning"
	"machinearena.ai/internal/sim/world"
)

type memLog struct {
	mu      sync.Mutex
	entries []world.ActionLogEntry
}

func (l *memLog) WriteAction(e world.ActionLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func TestReplay_ReproducesState(t *testing.T) {
	tune := tuning.Defaults()
	tune.Bounds = geom.Bounds{Min: -20, Max: 20}

	eng := world.New(tune)
	now := time.UnixMilli(1_700_000_000_000)
	eng.SetClock(func() time.Time { return now })
	step := func() { now = now.Add(7 * time.Millisecond) }

	log := &memLog{}
	eng.AddActionLogger(log)

	// Before the snapshot.
	if _, err := eng.Register(world.MachineSpec{ID: "m1", Owner: "alice", Pos: &geom.Vec3{}}); err != nil {
		t.Fatalf("register m1: %v", err)
	}
	step()
	snap := eng.Snapshot()
	step()

	// After the snapshot, including auto ids and failures.
	if _, err := eng.Register(world.MachineSpec{Owner: "bob", Pos: ptr(geom.V(0, 5))}); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	step()
	if _, err := eng.SpawnResource(world.ResourceSpec{Pos: geom.V(2, 0)}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	step()
	if _, err := eng.Move("m1", geom.V(0, 5)); err == nil {
		t.Fatalf("expected collision")
	}
	step()
	if _, err := eng.Turn("m1", geom.Dir{X: 0, Y: 1}); err != nil {
		t.Fatalf("turn: %v", err)
	}
	step()
	if _, err := eng.Attack("m1", world.AttackOpts{}); err != nil {
		t.Fatalf("attack: %v", err)
	}
	step()
	res := eng.Store().List(world.KindResource)
	if len(res) != 1 {
		t.Fatalf("resources = %d", len(res))
	}
	if _, err := eng.PickUp("m1", res[0].EntityID()); err != nil {
		t.Fatalf("pick up: %v", err)
	}

	rep, err := replay(tune, snap, log.entries)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rep.Skipped != 1 || rep.Replayed != len(log.entries)-1 {
		t.Fatalf("replayed=%d skipped=%d of %d", rep.Replayed, rep.Skipped, len(log.entries))
	}
	if len(rep.Mismatches) != 0 {
		t.Fatalf("mismatches: %v", rep.Mismatches)
	}
	if want := stateDigest(eng.Snapshot()); rep.Digest != want {
		t.Fatalf("digest = %s want %s", rep.Digest, want)
	}
}

func TestReplay_ReportsDivergence(t *testing.T) {
	tune := tuning.Defaults()
	eng := world.New(tune)
	now := time.UnixMilli(1_700_000_000_000)
	eng.SetClock(func() time.Time { return now })
	snap := eng.Snapshot()
	now = now.Add(time.Millisecond)

	entries := []world.ActionLogEntry{{
		ID: "x", Stamp: now.UnixMilli(), MachineID: "ghost", Action: world.ActTurn,
		Params: world.ActionParams{Direction: &geom.Dir{X: 1}}, OK: true,
	}}
	rep, err := replay(tune, snap, entries)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(rep.Mismatches) != 1 {
		t.Fatalf("mismatches = %v", rep.Mismatches)
	}
}

func ptr[T any](v T) *T { return &v }

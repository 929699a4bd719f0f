package world

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"machinearena.ai/internal/persistence/snapshot"
	"machinearena.ai/internal/sim/geom"
)

func populated(t *testing.T) (*Engine, *testClock) {
	t.Helper()
	e, clk := newTestEngine(t, -20, 20)
	mustRegister(t, e, MachineSpec{ID: "m1", Owner: "alice", Pos: at(0, 0)})
	mustRegister(t, e, MachineSpec{ID: "m2", Owner: "bob", Pos: at(5, 0), Facing: &geom.Dir{X: -1, Y: 0}})
	mustRegister(t, e, MachineSpec{ID: "m3", Owner: "bob", Pos: at(-8, 8)})
	_, _ = e.AddObstacle(ObstacleSpec{ID: "rock", Pos: geom.V(0, 4)})
	_, _ = e.SpawnResource(ResourceSpec{ID: "ore", Type: "ore", Pos: geom.V(-8, 10)})
	_, _ = e.SpawnResource(ResourceSpec{ID: "gem", Type: "gem", Pos: geom.V(2, -3)})
	if _, err := e.PickUp("m3", "ore"); err != nil {
		t.Fatalf("pick_up: %v", err)
	}
	if _, err := e.Attack("m2", AttackOpts{Range: 6}); err != nil {
		t.Fatalf("attack: %v", err)
	}
	return e, clk
}

func TestSnapshot_RestoreReproducesViews(t *testing.T) {
	e, clk := populated(t)
	snap := e.Snapshot()

	path := filepath.Join(t.TempDir(), snapshot.FileName(snap.Header.Stamp))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	e2 := New(e.Config())
	e2.SetClock(clk.Now)
	if err := e2.Restore(loaded); err != nil {
		t.Fatalf("restore: %v", err)
	}
	for _, owner := range []string{"alice", "bob", "nobody"} {
		a, b := e.BuildView(owner), e2.BuildView(owner)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("view for %s differs after restore:\n%+v\n%+v", owner, a, b)
		}
	}

	// Stamps stay monotonic across the restore.
	prev, _ := e.GetMachine("m2")
	moved, err := e2.Move("m2", geom.V(6, 0))
	if err != nil {
		t.Fatalf("move after restore: %v", err)
	}
	if moved.LastAction.Stamp <= prev.LastAction.Stamp {
		t.Fatalf("stamp went backwards: %d <= %d", moved.LastAction.Stamp, prev.LastAction.Stamp)
	}
}

func TestRestore_RejectsInconsistentSnapshots(t *testing.T) {
	e, _ := populated(t)
	base := e.Snapshot()

	clone := func() snapshot.WorldV1 {
		s := base
		s.Machines = append([]snapshot.MachineV1(nil), base.Machines...)
		s.Obstacles = append([]snapshot.ObstacleV1(nil), base.Obstacles...)
		s.Resources = append([]snapshot.ResourceV1(nil), base.Resources...)
		return s
	}

	overlap := clone()
	overlap.Obstacles = append(overlap.Obstacles, snapshot.ObstacleV1{ID: "dup_spot", Pos: [3]float64{0, 0, 0}, Radius: 1})

	dupID := clone()
	dupID.Obstacles = append(dupID.Obstacles, snapshot.ObstacleV1{ID: "m1", Pos: [3]float64{15, 15, 0}, Radius: 1})

	orphan := clone()
	orphan.Resources = append(orphan.Resources, snapshot.ResourceV1{ID: "lost", Holder: "ghost"})

	outside := clone()
	outside.Obstacles = append(outside.Obstacles, snapshot.ObstacleV1{ID: "moon", Pos: [3]float64{99, 0, 0}, Radius: 1})

	cases := []struct {
		name string
		snap snapshot.WorldV1
		want error
	}{
		{"overlap", overlap, ErrPositionCollision},
		{"duplicate id", dupID, ErrDuplicateID},
		{"orphan cargo", orphan, ErrBadRequest},
		{"out of bounds", outside, ErrOutOfBounds},
	}
	for _, c := range cases {
		target, _ := newTestEngine(t, -20, 20)
		mustRegister(t, target, MachineSpec{ID: "keep", Owner: "zed", Pos: at(12, 12)})
		err := target.Restore(c.snap)
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, err)
		}
		if _, err := target.GetMachine("keep"); err != nil {
			t.Fatalf("%s: failed restore replaced the world", c.name)
		}
	}
}

package world

import (
	"context"
	"errors"
	"testing"
	"time"

	"machinearena.ai/internal/persistence/snapshot"
	"machinearena.ai/internal/sim/geom"
)

func TestTick_SnapshotsOnlyWhenDirty(t *testing.T) {
	e, _ := newTestEngine(t, -10, 10)
	sink := make(chan snapshot.WorldV1, 4)
	e.SetSnapshotSink(sink)

	mustRegister(t, e, MachineSpec{ID: "m1", Owner: "alice", Pos: at(0, 0)})
	e.tick()
	select {
	case snap := <-sink:
		if len(snap.Machines) != 1 || snap.Header.WorldID != e.Config().WorldID {
			t.Fatalf("snapshot: %+v", snap)
		}
	default:
		t.Fatalf("expected a snapshot after a mutation")
	}

	e.tick()
	select {
	case <-sink:
		t.Fatalf("unchanged world snapshotted again")
	default:
	}

	if _, err := e.Move("m1", geom.V(1, 0)); err != nil {
		t.Fatalf("move: %v", err)
	}
	e.tick()
	if len(sink) != 1 {
		t.Fatalf("expected one snapshot after move, got %d", len(sink))
	}
}

func TestRequestSnapshot_Backpressure(t *testing.T) {
	e, _ := newTestEngine(t, -10, 10)
	if err := e.RequestSnapshot(); !errors.Is(err, ErrNoSnapshotSink) {
		t.Fatalf("expected ErrNoSnapshotSink, got %v", err)
	}
	e.SetSnapshotSink(make(chan snapshot.WorldV1))
	if err := e.RequestSnapshot(); !errors.Is(err, ErrSnapshotBackpressure) {
		t.Fatalf("expected ErrSnapshotBackpressure, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testTuning(-10, 10)
	cfg.SnapshotEvery = 5 * time.Millisecond
	e := New(cfg)
	sink := make(chan snapshot.WorldV1, 1)
	e.SetSnapshotSink(sink)
	if _, err := e.Register(MachineSpec{ID: "m1", Owner: "alice"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case <-sink:
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot from Run")
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

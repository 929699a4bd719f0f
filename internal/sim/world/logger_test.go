package world_test

import (
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"go.uber.org/mock/gomock"

	"machinearena.ai/internal/protocol"
	"machinearena.ai/internal/sim/geom"
	"machinearena.ai/internal/sim/tuning"
	"machinearena.ai/internal/sim/world"
	"machinearena.ai/internal/sim/world/mocks"
)

func TestActionLogger_ReceivesEveryOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := tuning.Defaults()
	cfg.Bounds = geom.Bounds{Min: -10, Max: 10}
	e := world.New(cfg)
	l := mocks.NewMockActionLogger(ctrl)
	e.AddActionLogger(l)

	var entries []world.ActionLogEntry
	l.EXPECT().WriteAction(gomock.Any()).DoAndReturn(func(entry world.ActionLogEntry) error {
		entries = append(entries, entry)
		return nil
	}).Times(3)

	pos := geom.V(0, 0)
	if _, err := e.Register(world.MachineSpec{ID: "m1", Owner: "alice", Pos: &pos}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.Move("m1", geom.V(3, 3)); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := e.Move("m1", geom.V(30, 3)); !errors.Is(err, world.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}

	if entries[0].Action != world.ActRegister || !entries[0].OK || entries[0].Owner != "alice" {
		t.Fatalf("register entry: %+v", entries[0])
	}
	if entries[1].Action != world.ActMove || !entries[1].OK || entries[1].LastAction == "" {
		t.Fatalf("move entry: %+v", entries[1])
	}
	if entries[2].OK || entries[2].Code != protocol.ErrOutOfBounds || entries[2].MachineID != "m1" {
		t.Fatalf("failed move entry: %+v", entries[2])
	}
	for _, en := range entries {
		if _, err := ulid.Parse(en.ID); err != nil {
			t.Fatalf("entry id %q: %v", en.ID, err)
		}
	}
}

func TestActionLogger_ErrorDoesNotFailAction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e := world.New(tuning.Defaults())
	l := mocks.NewMockActionLogger(ctrl)
	l.EXPECT().WriteAction(gomock.Any()).Return(errors.New("disk full"))
	e.AddActionLogger(l)

	if _, err := e.Register(world.MachineSpec{ID: "m1", Owner: "alice"}); err != nil {
		t.Fatalf("register failed because of logger: %v", err)
	}
}

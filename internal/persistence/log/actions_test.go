package log

import (
	"path/filepath"
	"testing"
	"time"

	"machinearena.ai/internal/sim/world"
)

func TestActionLogger_WriteRead(t *testing.T) {
	dir := t.TempDir()
	l := NewActionLogger(dir)
	for i, act := range []string{world.ActRegister, world.ActMove, world.ActAttack} {
		if err := l.WriteAction(world.ActionLogEntry{ID: act, Stamp: int64(i), MachineID: "m1", Action: act, OK: true}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	var got []string
	if err := ReadActions(ActionsDir(dir), func(e world.ActionLogEntry) error {
		got = append(got, e.Action)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[0] != world.ActRegister || got[2] != world.ActAttack {
		t.Fatalf("entries: %v", got)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(filepath.Join(dir, "actions"), "actions")
	now := time.Date(2026, 1, 2, 3, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	if err := w.Write(world.ActionLogEntry{Action: "a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(world.ActionLogEntry{Action: "b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()

	files, err := ActionFiles(filepath.Join(dir, "actions"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files: %v", files)
	}
	if filepath.Base(files[0]) != "actions-2026-01-02-03.jsonl.zst" {
		t.Fatalf("first file: %s", files[0])
	}

	var order []string
	_ = ReadActions(filepath.Join(dir, "actions"), func(e world.ActionLogEntry) error {
		order = append(order, e.Action)
		return nil
	})
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order: %v", order)
	}
}

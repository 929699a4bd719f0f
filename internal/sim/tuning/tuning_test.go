package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "world_bounds:\n  min: -10\n  max: 10\nattack:\n  range: 5\n  reveal_duration: 1500ms\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.Bounds.Min != -10 || tu.Bounds.Max != 10 {
		t.Fatalf("bounds: %+v", tu.Bounds)
	}
	if tu.Attack.Range != 5 || tu.Attack.Damage != 1 {
		t.Fatalf("attack: %+v", tu.Attack)
	}
	if tu.Attack.RevealDuration != 1500*time.Millisecond {
		t.Fatalf("reveal duration: %v", tu.Attack.RevealDuration)
	}
	if tu.DefaultLife != 10 || tu.Carry.Slots != 4 {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestLoadRejectsInvertedBounds(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("world_bounds: {min: 5, max: -5}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n got %+v\nwant %+v", tu, Defaults())
	}
}

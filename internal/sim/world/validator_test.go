package world

import (
	"errors"
	"reflect"
	"testing"

	"machinearena.ai/internal/sim/geom"
)

func TestScanValidator_CollectsAllBlockers(t *testing.T) {
	tx := newTx()
	_ = tx.Insert(Obstacle{ID: "b", Pos: geom.V(1, 0), Radius: 1})
	_ = tx.Insert(Obstacle{ID: "a", Pos: geom.V(-1, 0), Radius: 1})
	_ = tx.Insert(Obstacle{ID: "far", Pos: geom.V(8, 0), Radius: 1})
	v := ScanValidator{Bounds: geom.Bounds{Min: -10, Max: 10}}

	err := v.Validate(tx, Footprint{Pos: geom.V(0, 0), Radius: 0.5})
	if !errors.Is(err, ErrPositionCollision) {
		t.Fatalf("expected collision, got %v", err)
	}
	if got := Blockers(err); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("blockers: %v", got)
	}
	if err := v.Validate(tx, Footprint{Pos: geom.V(0, 0), Radius: 0.5}, "a", "b"); err != nil {
		t.Fatalf("excluded blockers still reported: %v", err)
	}
}

func TestScanValidator_TouchingIsAllowed(t *testing.T) {
	tx := newTx()
	_ = tx.Insert(Obstacle{ID: "o", Pos: geom.V(2, 0), Radius: 1})
	v := ScanValidator{Bounds: geom.Bounds{Min: -10, Max: 10}}
	if err := v.Validate(tx, Footprint{Pos: geom.V(0, 0), Radius: 1}); err != nil {
		t.Fatalf("touching discs rejected: %v", err)
	}
}

func TestScanValidator_Bounds(t *testing.T) {
	v := ScanValidator{Bounds: geom.Bounds{Min: -10, Max: 10}}
	tx := newTx()
	if err := v.Validate(tx, Footprint{Pos: geom.V(10, -10), Radius: 1}); err != nil {
		t.Fatalf("boundary position rejected: %v", err)
	}
	for _, p := range []geom.Vec3{geom.V(11, 0), geom.V(0, -10.5), {Z: 12}} {
		if err := v.Validate(tx, Footprint{Pos: p, Radius: 1}); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("%+v: expected ErrOutOfBounds, got %v", p, err)
		}
	}
}

func TestScanValidator_IgnoresCarriedResources(t *testing.T) {
	tx := newTx()
	_ = tx.Insert(Resource{ID: "r", Radius: 1, Holder: "m1"})
	v := ScanValidator{Bounds: geom.Bounds{Min: -10, Max: 10}}
	if err := v.Validate(tx, Footprint{Pos: geom.V(0, 0), Radius: 1}); err != nil {
		t.Fatalf("carried resource blocked placement: %v", err)
	}
}

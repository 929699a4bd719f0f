package geom

import "testing"

func TestDistances(t *testing.T) {
	a := V(0, 0)
	b := V(3, 4)
	if got := Euclidean(a, b); got != 5 {
		t.Fatalf("euclidean: got %v want 5", got)
	}
	if got := Chebyshev(a, b); got != 4 {
		t.Fatalf("chebyshev: got %v want 4", got)
	}
	// Z is ignored.
	if got := Euclidean(Vec3{Z: 10}, Vec3{}); got != 0 {
		t.Fatalf("z must not contribute: %v", got)
	}
}

func TestOverlapsIsStrict(t *testing.T) {
	if Overlaps(V(0, 0), 1, V(2, 0), 1) {
		t.Fatalf("touching discs must not overlap")
	}
	if !Overlaps(V(0, 0), 1, V(1.9, 0), 1) {
		t.Fatalf("expected overlap")
	}
}

func TestNormalize(t *testing.T) {
	d, ok := Dir{X: 0, Y: 5}.Normalize()
	if !ok || d.X != 0 || d.Y != 1 {
		t.Fatalf("normalize: %+v %v", d, ok)
	}
	if _, ok := (Dir{}).Normalize(); ok {
		t.Fatalf("zero direction must be rejected")
	}
}

func TestBoundsInclusive(t *testing.T) {
	b := Bounds{Min: -10, Max: 10}
	if !b.Contains(V(10, -10)) {
		t.Fatalf("boundary must be inside")
	}
	if b.Contains(V(11, 0)) {
		t.Fatalf("beyond boundary must be outside")
	}
}

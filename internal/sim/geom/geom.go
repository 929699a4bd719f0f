// Package geom holds the planar geometry shared by the arena simulation.
//
// Positions carry three components but only X and Y take part in distance
// math; Z is preserved for clients that render height.
package geom

import "math"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func V(x, y float64) Vec3 { return Vec3{X: x, Y: y} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func FromArray(a [3]float64) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

// Round snaps X and Y to the integer grid.
func (v Vec3) Round() Vec3 {
	return Vec3{X: math.Round(v.X), Y: math.Round(v.Y), Z: math.Round(v.Z)}
}

func (v Vec3) Finite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

// Dir is a 2D facing direction.
type Dir struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var East = Dir{X: 1, Y: 0}

// Normalize returns the unit vector of d; ok is false for zero or non-finite input.
func (d Dir) Normalize() (Dir, bool) {
	if !finite(d.X) || !finite(d.Y) {
		return Dir{}, false
	}
	l := math.Hypot(d.X, d.Y)
	if l == 0 {
		return Dir{}, false
	}
	return Dir{X: d.X / l, Y: d.Y / l}, true
}

func (d Dir) Scale(f float64) Vec3 { return Vec3{X: d.X * f, Y: d.Y * f} }

// Euclidean is the planar centre distance used for collision.
func Euclidean(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Chebyshev is max(|dx|, |dy|), used for visibility range.
func Chebyshev(a, b Vec3) float64 {
	return math.Max(math.Abs(a.X-b.X), math.Abs(a.Y-b.Y))
}

// Overlaps reports whether two discs intersect. Touching discs do not overlap.
func Overlaps(a Vec3, ra float64, b Vec3, rb float64) bool {
	return Euclidean(a, b) < ra+rb
}

type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains checks every coordinate of p against the inclusive range.
func (b Bounds) Contains(p Vec3) bool {
	in := func(c float64) bool { return c >= b.Min && c <= b.Max }
	return in(p.X) && in(p.Y) && in(p.Z)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

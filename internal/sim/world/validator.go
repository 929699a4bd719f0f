package world

import (
	"fmt"
	"sort"

	"machinearena.ai/internal/sim/geom"
)

// SpatialReader is the read surface a Validator needs.
type SpatialReader interface {
	EachFootprint(fn func(id string, kind Kind, fp Footprint) bool)
}

// Validator decides whether a footprint may be committed. It returns nil,
// an error wrapping ErrOutOfBounds, or a *CollisionError naming every blocker.
type Validator interface {
	Validate(r SpatialReader, fp Footprint, exclude ...string) error
}

// ScanValidator checks bounds and then scans every footprint. The entity
// population is small enough that a linear scan per call is fine.
type ScanValidator struct {
	Bounds geom.Bounds
}

func (v ScanValidator) Validate(r SpatialReader, fp Footprint, exclude ...string) error {
	if !fp.Pos.Finite() || fp.Radius < 0 {
		return fmt.Errorf("%w: bad footprint %+v", ErrBadRequest, fp)
	}
	if !v.Bounds.Contains(fp.Pos) {
		return fmt.Errorf("%w: (%g, %g, %g) outside [%g, %g]", ErrOutOfBounds, fp.Pos.X, fp.Pos.Y, fp.Pos.Z, v.Bounds.Min, v.Bounds.Max)
	}
	var blockers []string
	r.EachFootprint(func(id string, _ Kind, other Footprint) bool {
		for _, ex := range exclude {
			if id == ex {
				return true
			}
		}
		if overlaps(fp, other) {
			blockers = append(blockers, id)
		}
		return true
	})
	if len(blockers) > 0 {
		sort.Strings(blockers)
		return &CollisionError{Blockers: blockers}
	}
	return nil
}

func overlaps(a, b Footprint) bool {
	return geom.Overlaps(a.Pos, a.Radius, b.Pos, b.Radius)
}

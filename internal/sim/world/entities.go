package world

import (
	"machinearena.ai/internal/sim/geom"
)

type Kind int

const (
	KindMachine Kind = iota + 1
	KindObstacle
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindMachine:
		return "machine"
	case KindObstacle:
		return "obstacle"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

const (
	StatusActive = "active"

	ObstacleStatic = "static"
)

// Footprint is the disc an entity occupies.
type Footprint struct {
	Pos    geom.Vec3
	Radius float64
}

// Entity is implemented by Machine, Obstacle and Resource. Footprint reports
// false for entities that currently occupy no space (carried resources).
type Entity interface {
	EntityID() string
	Kind() Kind
	Footprint() (Footprint, bool)
}

type Machine struct {
	ID         string       `json:"machine_id"`
	Owner      string       `json:"owner"`
	Type       string       `json:"machine_type"`
	Pos        geom.Vec3    `json:"position"`
	Facing     geom.Dir     `json:"facing_direction"`
	Radius     float64      `json:"size"`
	Life       int          `json:"life_value"`
	Status     string       `json:"status"`
	Visibility float64      `json:"visibility_radius"`
	LastAction ActionRecord `json:"-"`
}

func (m Machine) EntityID() string { return m.ID }
func (m Machine) Kind() Kind       { return KindMachine }
func (m Machine) Footprint() (Footprint, bool) {
	return Footprint{Pos: m.Pos, Radius: m.Radius}, true
}

type Obstacle struct {
	ID     string    `json:"obstacle_id"`
	Pos    geom.Vec3 `json:"position"`
	Radius float64   `json:"size"`
	Type   string    `json:"obstacle_type"`
}

func (o Obstacle) EntityID() string { return o.ID }
func (o Obstacle) Kind() Kind       { return KindObstacle }
func (o Obstacle) Footprint() (Footprint, bool) {
	return Footprint{Pos: o.Pos, Radius: o.Radius}, true
}

// Resource is dropped when Holder is empty; otherwise it sits in Holder's Slot
// and has no position of its own.
type Resource struct {
	ID     string    `json:"resource_id"`
	Type   string    `json:"resource_type"`
	Radius float64   `json:"size"`
	Pos    geom.Vec3 `json:"position"`
	Holder string    `json:"holder_id,omitempty"`
	Slot   int       `json:"slot"`
}

func (r Resource) EntityID() string { return r.ID }
func (r Resource) Kind() Kind       { return KindResource }
func (r Resource) Carried() bool    { return r.Holder != "" }
func (r Resource) Footprint() (Footprint, bool) {
	if r.Carried() {
		return Footprint{}, false
	}
	return Footprint{Pos: r.Pos, Radius: r.Radius}, true
}

// slotOffsets are the drop directions for slot i%4: top, bottom, left, right.
var slotOffsets = [4]geom.Dir{
	{X: 0, Y: 1},
	{X: 0, Y: -1},
	{X: -1, Y: 0},
	{X: 1, Y: 0},
}

func slotOffset(slot int) geom.Dir {
	return slotOffsets[slot%len(slotOffsets)]
}

package world

import (
	"fmt"
	"math"
	"time"

	"machinearena.ai/internal/sim/geom"
)

// MachineSpec describes a machine to register. Nil pointers select the
// configured default; a nil Pos selects the nearest free cell to the origin.
type MachineSpec struct {
	ID         string     `json:"machine_id,omitempty"`
	Owner      string     `json:"owner"`
	Type       string     `json:"machine_type,omitempty"`
	Pos        *geom.Vec3 `json:"position,omitempty"`
	Facing     *geom.Dir  `json:"facing_direction,omitempty"`
	Radius     *float64   `json:"size,omitempty"`
	Life       int        `json:"life_value,omitempty"`
	Visibility *float64   `json:"visibility_radius,omitempty"`
}

type ObstacleSpec struct {
	ID     string    `json:"obstacle_id,omitempty"`
	Pos    geom.Vec3 `json:"position"`
	Radius *float64  `json:"size,omitempty"`
	Type   string    `json:"obstacle_type,omitempty"`
}

type ResourceSpec struct {
	ID     string    `json:"resource_id,omitempty"`
	Type   string    `json:"resource_type,omitempty"`
	Pos    geom.Vec3 `json:"position"`
	Radius *float64  `json:"size,omitempty"`
}

const DefaultResourceType = "generic"

func (e *Engine) Register(spec MachineSpec) (Machine, error) {
	id := spec.ID
	if id == "" {
		id = e.newID()
	}
	// Logged params carry the resolved id so the action log replays exactly.
	spec.ID = id
	return e.mutate(ActRegister, id, ActionParams{Spec: &spec}, func(tx *Tx, now time.Time) (Machine, error) {
		m, err := e.machineFromSpec(id, spec)
		if err != nil {
			return m, err
		}
		if _, ok := tx.kindOf(id); ok {
			return m, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		if spec.Pos == nil {
			pos, err := e.freePosition(tx, m.Radius)
			if err != nil {
				return m, err
			}
			m.Pos = pos
		}
		if err := e.validator.Validate(tx, Footprint{Pos: m.Pos, Radius: m.Radius}); err != nil {
			return m, err
		}
		m.LastAction = ActionRecord{Tag: ActRegister, Stamp: tx.stamp(now)}
		return m, tx.Insert(m)
	})
}

func (e *Engine) machineFromSpec(id string, spec MachineSpec) (Machine, error) {
	m := Machine{
		ID:         id,
		Owner:      spec.Owner,
		Type:       spec.Type,
		Facing:     geom.East,
		Radius:     e.cfg.DefaultRadius,
		Life:       e.cfg.DefaultLife,
		Status:     StatusActive,
		Visibility: e.cfg.DefaultVisibility,
	}
	if m.Owner == "" {
		return m, fmt.Errorf("%w: owner is required", ErrBadRequest)
	}
	if m.Type == "" {
		m.Type = e.cfg.DefaultType
	}
	if spec.Pos != nil {
		m.Pos = *spec.Pos
	}
	if spec.Facing != nil {
		d, ok := spec.Facing.Normalize()
		if !ok {
			return m, fmt.Errorf("%w: facing %+v", ErrInvalidDirection, *spec.Facing)
		}
		m.Facing = d
	}
	if spec.Radius != nil {
		if *spec.Radius < 0 || math.IsNaN(*spec.Radius) {
			return m, fmt.Errorf("%w: size must be >= 0", ErrBadRequest)
		}
		m.Radius = *spec.Radius
	}
	if spec.Visibility != nil {
		if *spec.Visibility < 0 || math.IsNaN(*spec.Visibility) {
			return m, fmt.Errorf("%w: visibility_radius must be >= 0", ErrBadRequest)
		}
		m.Visibility = *spec.Visibility
	}
	switch {
	case spec.Life < 0:
		return m, fmt.Errorf("%w: life_value must be >= 0", ErrBadRequest)
	case spec.Life > 0:
		m.Life = spec.Life
	}
	return m, nil
}

// freePosition walks square rings around the origin and returns the first
// integer cell where a disc of radius r validates.
func (e *Engine) freePosition(tx *Tx, r float64) (geom.Vec3, error) {
	b := e.cfg.Bounds
	z := math.Min(math.Max(0, b.Min), b.Max)
	maxRing := int(math.Ceil(math.Max(math.Abs(b.Min), math.Abs(b.Max))))
	for ring := 0; ring <= maxRing; ring++ {
		for _, c := range ringCells(ring) {
			p := geom.Vec3{X: float64(c.X), Y: float64(c.Y), Z: z}
			if !b.Contains(p) {
				continue
			}
			if e.validator.Validate(tx, Footprint{Pos: p, Radius: r}) == nil {
				return p, nil
			}
		}
	}
	return geom.Vec3{}, ErrNoFreePosition
}

// ringCells lists the cells at Chebyshev distance n from the origin, starting
// east and going counter-clockwise.
func ringCells(n int) []Cell {
	if n == 0 {
		return []Cell{{}}
	}
	out := make([]Cell, 0, 8*n)
	for y := -n + 1; y <= n; y++ {
		out = append(out, Cell{X: n, Y: y})
	}
	for x := n - 1; x >= -n; x-- {
		out = append(out, Cell{X: x, Y: n})
	}
	for y := n - 1; y >= -n; y-- {
		out = append(out, Cell{X: -n, Y: y})
	}
	for x := -n + 1; x <= n; x++ {
		out = append(out, Cell{X: x, Y: -n})
	}
	return out
}

// RemoveMachine deletes a machine; its cargo falls where it stood.
func (e *Engine) RemoveMachine(id string) error {
	_, err := e.mutate(ActRemove, id, ActionParams{}, func(tx *Tx, _ time.Time) (Machine, error) {
		m, err := tx.machine(id)
		if err != nil {
			return Machine{}, err
		}
		out := *m
		e.logf("machine %s removed", id)
		return out, tx.Remove(id)
	})
	return err
}

// Move places the machine at target if the footprint validates there.
// Nothing changes on failure.
func (e *Engine) Move(id string, target geom.Vec3) (Machine, error) {
	return e.mutate(ActMove, id, ActionParams{Target: &target}, func(tx *Tx, now time.Time) (Machine, error) {
		return e.place(tx, now, id, target, ActMove)
	})
}

// Reposition is the administrative form of Move.
func (e *Engine) Reposition(id string, target geom.Vec3) (Machine, error) {
	return e.mutate(ActReposition, id, ActionParams{Target: &target}, func(tx *Tx, now time.Time) (Machine, error) {
		return e.place(tx, now, id, target, ActReposition)
	})
}

func (e *Engine) place(tx *Tx, now time.Time, id string, target geom.Vec3, tag string) (Machine, error) {
	m, err := tx.machine(id)
	if err != nil {
		return Machine{}, err
	}
	if err := e.validator.Validate(tx, Footprint{Pos: target, Radius: m.Radius}, id); err != nil {
		return *m, err
	}
	next := *m
	next.Pos = target
	next.LastAction = ActionRecord{Tag: tag, Stamp: tx.stamp(now)}
	return next, tx.Upsert(next)
}

// MoveBy turns towards dir and moves distance units, landing on the nearest
// integer cell. A zero distance only turns.
func (e *Engine) MoveBy(id string, dir geom.Dir, distance float64) (Machine, error) {
	p := ActionParams{Direction: &dir, Distance: &distance}
	return e.mutate(ActMoveBy, id, p, func(tx *Tx, now time.Time) (Machine, error) {
		m, err := tx.machine(id)
		if err != nil {
			return Machine{}, err
		}
		d, ok := dir.Normalize()
		if !ok {
			return *m, fmt.Errorf("%w: %+v", ErrInvalidDirection, dir)
		}
		if distance < 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
			return *m, fmt.Errorf("%w: distance %v", ErrBadRequest, distance)
		}
		next := *m
		next.Facing = d
		if distance > 0 {
			target := m.Pos.Add(d.Scale(distance)).Round()
			target.Z = m.Pos.Z
			if err := e.validator.Validate(tx, Footprint{Pos: target, Radius: m.Radius}, id); err != nil {
				return *m, err
			}
			next.Pos = target
		}
		next.LastAction = ActionRecord{Tag: ActMoveBy, Stamp: tx.stamp(now)}
		return next, tx.Upsert(next)
	})
}

func (e *Engine) Turn(id string, dir geom.Dir) (Machine, error) {
	return e.mutate(ActTurn, id, ActionParams{Direction: &dir}, func(tx *Tx, now time.Time) (Machine, error) {
		m, err := tx.machine(id)
		if err != nil {
			return Machine{}, err
		}
		d, ok := dir.Normalize()
		if !ok {
			return *m, fmt.Errorf("%w: %+v", ErrInvalidDirection, dir)
		}
		next := *m
		next.Facing = d
		next.LastAction = ActionRecord{Tag: ActTurn, Stamp: tx.stamp(now)}
		return next, tx.Upsert(next)
	})
}

// PickUp moves a dropped resource within touching distance into the first
// free carry slot and returns that slot.
func (e *Engine) PickUp(id, resourceID string) (int, error) {
	slot := -1
	_, err := e.mutate(ActPickUp, id, ActionParams{ResourceID: resourceID}, func(tx *Tx, now time.Time) (Machine, error) {
		m, err := tx.machine(id)
		if err != nil {
			return Machine{}, err
		}
		r, ok := tx.resources[resourceID]
		if !ok {
			return *m, notFound(KindResource, resourceID)
		}
		if r.Carried() {
			return *m, fmt.Errorf("%w: %s is carried by %s", ErrResourceNotReachable, resourceID, r.Holder)
		}
		if d := geom.Euclidean(m.Pos, r.Pos); d > m.Radius+r.Radius+e.cfg.Carry.Epsilon {
			return *m, fmt.Errorf("%w: %s is %.2f away", ErrResourceNotReachable, resourceID, d)
		}
		free := e.freeSlot(tx, id)
		if free < 0 {
			return *m, fmt.Errorf("%w: %s carries %d", ErrNoFreeSlot, id, e.cfg.Carry.Slots)
		}
		res := *r
		res.Holder = id
		res.Slot = free
		res.Pos = geom.Vec3{}
		if err := tx.Upsert(res); err != nil {
			return *m, err
		}
		slot = free
		next := *m
		next.LastAction = ActionRecord{Tag: ActPickUp, Stamp: tx.stamp(now)}
		return next, tx.Upsert(next)
	})
	if err != nil {
		return -1, err
	}
	return slot, nil
}

func (e *Engine) freeSlot(tx *Tx, holder string) int {
	used := map[int]bool{}
	for _, r := range tx.carriedBy(holder) {
		used[r.Slot] = true
	}
	for i := 0; i < e.cfg.Carry.Slots; i++ {
		if !used[i] {
			return i
		}
	}
	return -1
}

// Drop places the resource in slot beside the holder, touching it on the
// slot's side. On failure the resource stays carried.
func (e *Engine) Drop(id string, slot int) (Resource, error) {
	var out Resource
	_, err := e.mutate(ActDrop, id, ActionParams{Slot: &slot}, func(tx *Tx, now time.Time) (Machine, error) {
		m, err := tx.machine(id)
		if err != nil {
			return Machine{}, err
		}
		if slot < 0 || slot >= e.cfg.Carry.Slots {
			return *m, fmt.Errorf("%w: slot %d outside 0..%d", ErrBadRequest, slot, e.cfg.Carry.Slots-1)
		}
		var res *Resource
		for _, r := range tx.carriedBy(id) {
			if r.Slot == slot {
				rr := r
				res = &rr
				break
			}
		}
		if res == nil {
			return *m, fmt.Errorf("%w: %s slot %d", ErrSlotEmpty, id, slot)
		}
		pos := m.Pos.Add(slotOffset(slot).Scale(m.Radius + res.Radius))
		pos.Z = m.Pos.Z
		if err := e.validator.Validate(tx, Footprint{Pos: pos, Radius: res.Radius}, res.ID); err != nil {
			return *m, err
		}
		res.Holder = ""
		res.Slot = 0
		res.Pos = pos
		if err := tx.Upsert(*res); err != nil {
			return *m, err
		}
		out = *res
		next := *m
		next.LastAction = ActionRecord{Tag: ActDrop, Stamp: tx.stamp(now)}
		return next, tx.Upsert(next)
	})
	return out, err
}

// SetLife overrides a machine's life. A value of zero destroys it.
func (e *Engine) SetLife(id string, life int) (Machine, error) {
	return e.mutate(ActSetLife, id, ActionParams{Life: &life}, func(tx *Tx, now time.Time) (Machine, error) {
		m, err := tx.machine(id)
		if err != nil {
			return Machine{}, err
		}
		if life < 0 {
			return *m, fmt.Errorf("%w: life_value must be >= 0", ErrBadRequest)
		}
		next := *m
		next.Life = life
		next.LastAction = ActionRecord{Tag: ActSetLife, Stamp: tx.stamp(now)}
		if life == 0 {
			e.logf("machine %s destroyed by admin", id)
		}
		return next, tx.Upsert(next)
	})
}

func (e *Engine) SetStatus(id, status string) (Machine, error) {
	return e.mutate(ActSetStatus, id, ActionParams{Status: status}, func(tx *Tx, now time.Time) (Machine, error) {
		m, err := tx.machine(id)
		if err != nil {
			return Machine{}, err
		}
		if status == "" {
			return *m, fmt.Errorf("%w: empty status", ErrBadRequest)
		}
		next := *m
		next.Status = status
		next.LastAction = ActionRecord{Tag: ActSetStatus, Stamp: tx.stamp(now)}
		return next, tx.Upsert(next)
	})
}

func (e *Engine) AddObstacle(spec ObstacleSpec) (Obstacle, error) {
	o := Obstacle{ID: spec.ID, Pos: spec.Pos, Radius: e.cfg.DefaultRadius, Type: spec.Type}
	if o.ID == "" {
		o.ID = e.newID()
	}
	spec.ID = o.ID
	if o.Type == "" {
		o.Type = ObstacleStatic
	}
	if spec.Radius != nil {
		o.Radius = *spec.Radius
	}
	_, err := e.mutate(ActAddObstacle, "", ActionParams{Obstacle: &spec}, func(tx *Tx, _ time.Time) (Machine, error) {
		return Machine{}, e.insertFootprint(tx, o, Footprint{Pos: o.Pos, Radius: o.Radius})
	})
	return o, err
}

func (e *Engine) RemoveObstacle(id string) error {
	_, err := e.mutate(ActRemoveObstacle, "", ActionParams{ObstacleID: id}, func(tx *Tx, _ time.Time) (Machine, error) {
		if _, ok := tx.obstacles[id]; !ok {
			return Machine{}, notFound(KindObstacle, id)
		}
		return Machine{}, tx.Remove(id)
	})
	return err
}

// SpawnResource drops a new resource into the world.
func (e *Engine) SpawnResource(spec ResourceSpec) (Resource, error) {
	r := Resource{ID: spec.ID, Type: spec.Type, Pos: spec.Pos, Radius: e.cfg.DefaultRadius}
	if r.ID == "" {
		r.ID = e.newID()
	}
	spec.ID = r.ID
	if r.Type == "" {
		r.Type = DefaultResourceType
	}
	if spec.Radius != nil {
		r.Radius = *spec.Radius
	}
	_, err := e.mutate(ActSpawnResource, "", ActionParams{Resource: &spec}, func(tx *Tx, _ time.Time) (Machine, error) {
		return Machine{}, e.insertFootprint(tx, r, Footprint{Pos: r.Pos, Radius: r.Radius})
	})
	return r, err
}

func (e *Engine) insertFootprint(tx *Tx, ent Entity, fp Footprint) error {
	if fp.Radius < 0 || math.IsNaN(fp.Radius) {
		return fmt.Errorf("%w: size must be >= 0", ErrBadRequest)
	}
	if _, ok := tx.kindOf(ent.EntityID()); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, ent.EntityID())
	}
	if err := e.validator.Validate(tx, fp); err != nil {
		return err
	}
	return tx.Insert(ent)
}

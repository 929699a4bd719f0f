package world

import (
	"fmt"
	"sort"
	"sync"

	"machinearena.ai/internal/sim/geom"
)

// Store is the authoritative entity table. Every read and write goes through
// its lock; callers only ever receive copies.
type Store struct {
	mu sync.RWMutex
	tx *Tx
}

func NewStore() *Store {
	return &Store{tx: newTx()}
}

// Update runs fn with exclusive access. Validation and commit of one action
// must happen inside a single Update call.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.tx)
}

// Read runs fn with shared access; any number of readers may run at once.
func (s *Store) Read(fn func(tx *Tx)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.tx)
}

func (s *Store) Get(id string) (Entity, error) {
	var (
		e   Entity
		err error
	)
	s.Read(func(tx *Tx) { e, err = tx.Get(id) })
	return e, err
}

func (s *Store) Upsert(e Entity) error {
	return s.Update(func(tx *Tx) error { return tx.Upsert(e) })
}

func (s *Store) Insert(e Entity) error {
	return s.Update(func(tx *Tx) error { return tx.Insert(e) })
}

func (s *Store) Remove(id string) error {
	return s.Update(func(tx *Tx) error { return tx.Remove(id) })
}

func (s *Store) List(kind Kind) []Entity {
	var out []Entity
	s.Read(func(tx *Tx) { out = tx.List(kind) })
	return out
}

// Version increases on every committed mutation.
func (s *Store) Version() uint64 {
	var v uint64
	s.Read(func(tx *Tx) { v = tx.version })
	return v
}

// replace swaps the whole state; used by Restore.
func (s *Store) replace(tx *Tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.version = s.tx.version + 1
	s.tx = tx
}

// Tx is the unlocked view of the store handed to Update and Read callbacks.
// It must not escape the callback.
type Tx struct {
	machines  map[string]*Machine
	obstacles map[string]*Obstacle
	resources map[string]*Resource
	zones     []RevealZone

	lastStamp int64
	version   uint64
}

func newTx() *Tx {
	return &Tx{
		machines:  map[string]*Machine{},
		obstacles: map[string]*Obstacle{},
		resources: map[string]*Resource{},
	}
}

func (tx *Tx) kindOf(id string) (Kind, bool) {
	if _, ok := tx.machines[id]; ok {
		return KindMachine, true
	}
	if _, ok := tx.obstacles[id]; ok {
		return KindObstacle, true
	}
	if _, ok := tx.resources[id]; ok {
		return KindResource, true
	}
	return 0, false
}

func (tx *Tx) Get(id string) (Entity, error) {
	if m, ok := tx.machines[id]; ok {
		return *m, nil
	}
	if o, ok := tx.obstacles[id]; ok {
		return *o, nil
	}
	if r, ok := tx.resources[id]; ok {
		return *r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Insert adds a new entity; ids are unique across all kinds.
func (tx *Tx) Insert(e Entity) error {
	if e == nil || e.EntityID() == "" {
		return fmt.Errorf("%w: empty id", ErrBadRequest)
	}
	if _, ok := tx.kindOf(e.EntityID()); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.EntityID())
	}
	return tx.Upsert(e)
}

// Upsert stores e. A machine whose life has reached zero is removed instead
// of stored.
func (tx *Tx) Upsert(e Entity) error {
	if e == nil || e.EntityID() == "" {
		return fmt.Errorf("%w: empty id", ErrBadRequest)
	}
	id := e.EntityID()
	if k, ok := tx.kindOf(id); ok && k != e.Kind() {
		return fmt.Errorf("%w: %s already used by a %s", ErrDuplicateID, id, k)
	}
	switch v := e.(type) {
	case Machine:
		return tx.upsertMachine(v)
	case *Machine:
		return tx.upsertMachine(*v)
	case Obstacle:
		tx.obstacles[id] = &v
	case *Obstacle:
		o := *v
		tx.obstacles[id] = &o
	case Resource:
		tx.resources[id] = &v
	case *Resource:
		r := *v
		tx.resources[id] = &r
	default:
		return fmt.Errorf("%w: unsupported entity %T", ErrBadRequest, e)
	}
	tx.version++
	return nil
}

func (tx *Tx) upsertMachine(m Machine) error {
	if m.Life <= 0 {
		if _, ok := tx.machines[m.ID]; ok {
			tx.destroy(m.ID, m.Pos)
		}
		return nil
	}
	tx.machines[m.ID] = &m
	tx.version++
	return nil
}

func (tx *Tx) Remove(id string) error {
	k, ok := tx.kindOf(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	switch k {
	case KindMachine:
		tx.destroy(id, tx.machines[id].Pos)
		return nil
	case KindObstacle:
		delete(tx.obstacles, id)
	case KindResource:
		delete(tx.resources, id)
	}
	tx.version++
	return nil
}

// destroy removes a machine and lets its cargo fall at pos in slot order.
// Cargo that would overlap something is discarded.
func (tx *Tx) destroy(id string, pos geom.Vec3) {
	delete(tx.machines, id)
	carried := tx.carriedBy(id)
	for _, r := range carried {
		delete(tx.resources, r.ID)
	}
	for _, r := range carried {
		r.Holder = ""
		r.Slot = 0
		r.Pos = pos
		if tx.overlapsAny(Footprint{Pos: pos, Radius: r.Radius}) {
			continue
		}
		rr := r
		tx.resources[r.ID] = &rr
	}
	tx.version++
}

func (tx *Tx) List(kind Kind) []Entity {
	var out []Entity
	switch kind {
	case KindMachine:
		for _, id := range sortedKeys(tx.machines) {
			out = append(out, *tx.machines[id])
		}
	case KindObstacle:
		for _, id := range sortedKeys(tx.obstacles) {
			out = append(out, *tx.obstacles[id])
		}
	case KindResource:
		for _, id := range sortedKeys(tx.resources) {
			out = append(out, *tx.resources[id])
		}
	}
	return out
}

func (tx *Tx) machine(id string) (*Machine, error) {
	m, ok := tx.machines[id]
	if !ok {
		return nil, notFound(KindMachine, id)
	}
	return m, nil
}

// Machines returns copies of all machines sorted by id.
func (tx *Tx) Machines() []Machine {
	out := make([]Machine, 0, len(tx.machines))
	for _, id := range sortedKeys(tx.machines) {
		out = append(out, *tx.machines[id])
	}
	return out
}

// carriedBy returns holder's cargo ordered by slot.
func (tx *Tx) carriedBy(holder string) []Resource {
	var out []Resource
	for _, r := range tx.resources {
		if r.Holder == holder {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// EachFootprint visits every entity that occupies space, in no particular
// order. Returning false stops the walk.
func (tx *Tx) EachFootprint(fn func(id string, kind Kind, fp Footprint) bool) {
	for id, m := range tx.machines {
		if !fn(id, KindMachine, Footprint{Pos: m.Pos, Radius: m.Radius}) {
			return
		}
	}
	for id, o := range tx.obstacles {
		if !fn(id, KindObstacle, Footprint{Pos: o.Pos, Radius: o.Radius}) {
			return
		}
	}
	for id, r := range tx.resources {
		if r.Carried() {
			continue
		}
		if !fn(id, KindResource, Footprint{Pos: r.Pos, Radius: r.Radius}) {
			return
		}
	}
}

func (tx *Tx) overlapsAny(fp Footprint) bool {
	hit := false
	tx.EachFootprint(func(_ string, _ Kind, other Footprint) bool {
		if overlaps(fp, other) {
			hit = true
			return false
		}
		return true
	})
	return hit
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

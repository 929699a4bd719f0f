package world

import (
	"fmt"
	"time"

	"machinearena.ai/internal/persistence/snapshot"
	"machinearena.ai/internal/sim/geom"
)

// Snapshot exports the whole world. It is taken under the read lock, so it
// never contains a half-applied action.
func (e *Engine) Snapshot() snapshot.WorldV1 {
	now := e.now()
	var snap snapshot.WorldV1
	e.store.Read(func(tx *Tx) { snap = exportTx(tx, e.cfg.WorldID, now) })
	return snap
}

func exportTx(tx *Tx, worldID string, now time.Time) snapshot.WorldV1 {
	snap := snapshot.WorldV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: worldID,
			Stamp:   now.UnixMilli(),
		},
		Machines:  []snapshot.MachineV1{},
		Obstacles: []snapshot.ObstacleV1{},
		Resources: []snapshot.ResourceV1{},
		LastStamp: tx.lastStamp,
	}
	for _, id := range sortedKeys(tx.machines) {
		m := tx.machines[id]
		snap.Machines = append(snap.Machines, snapshot.MachineV1{
			ID:         m.ID,
			Owner:      m.Owner,
			Type:       m.Type,
			Pos:        m.Pos.Array(),
			Facing:     [2]float64{m.Facing.X, m.Facing.Y},
			Radius:     m.Radius,
			Life:       m.Life,
			Status:     m.Status,
			Visibility: m.Visibility,
			LastAction: m.LastAction.Encode(),
		})
	}
	for _, id := range sortedKeys(tx.obstacles) {
		o := tx.obstacles[id]
		snap.Obstacles = append(snap.Obstacles, snapshot.ObstacleV1{ID: o.ID, Pos: o.Pos.Array(), Radius: o.Radius, Type: o.Type})
	}
	for _, id := range sortedKeys(tx.resources) {
		r := tx.resources[id]
		snap.Resources = append(snap.Resources, snapshot.ResourceV1{
			ID:     r.ID,
			Type:   r.Type,
			Radius: r.Radius,
			Pos:    r.Pos.Array(),
			Holder: r.Holder,
			Slot:   r.Slot,
		})
	}
	for _, z := range tx.zones {
		if !z.Active(now) {
			continue
		}
		snap.Zones = append(snap.Zones, snapshot.RevealZoneV1{
			Center:   z.Center.Array(),
			Radius:   z.Radius,
			Expires:  z.Expires.UnixMilli(),
			Attacker: z.Attacker,
		})
	}
	return snap
}

// Restore replaces the world with snap. The snapshot is checked as a whole
// first; on error the current world is left untouched.
func (e *Engine) Restore(snap snapshot.WorldV1) error {
	if snap.Header.Version != 0 && snap.Header.Version != snapshot.Version {
		return fmt.Errorf("%w: snapshot version %d", ErrBadRequest, snap.Header.Version)
	}
	tx, err := e.importSnapshot(snap)
	if err != nil {
		return err
	}
	e.store.replace(tx)
	e.mu.Lock()
	e.lastSnapshot = e.store.Version()
	e.mu.Unlock()
	e.logf("restored world %s: %d machines, %d obstacles, %d resources",
		snap.Header.WorldID, len(tx.machines), len(tx.obstacles), len(tx.resources))
	return nil
}

func (e *Engine) importSnapshot(snap snapshot.WorldV1) (*Tx, error) {
	tx := newTx()
	tx.lastStamp = snap.LastStamp
	place := func(ent Entity, fp Footprint) error {
		if ent.EntityID() == "" {
			return fmt.Errorf("%w: snapshot entity without id", ErrBadRequest)
		}
		if _, ok := tx.kindOf(ent.EntityID()); ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, ent.EntityID())
		}
		if fp.Radius < 0 {
			return fmt.Errorf("%w: %s has negative size", ErrBadRequest, ent.EntityID())
		}
		if err := e.validator.Validate(tx, fp); err != nil {
			return fmt.Errorf("restore %s: %w", ent.EntityID(), err)
		}
		return tx.Insert(ent)
	}

	for _, mv := range snap.Machines {
		rec, err := ParseActionRecord(mv.LastAction)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", mv.ID, err)
		}
		if mv.Life <= 0 {
			return nil, fmt.Errorf("%w: machine %s has life %d", ErrBadRequest, mv.ID, mv.Life)
		}
		m := Machine{
			ID:         mv.ID,
			Owner:      mv.Owner,
			Type:       mv.Type,
			Pos:        geom.FromArray(mv.Pos),
			Facing:     geom.Dir{X: mv.Facing[0], Y: mv.Facing[1]},
			Radius:     mv.Radius,
			Life:       mv.Life,
			Status:     mv.Status,
			Visibility: mv.Visibility,
			LastAction: rec,
		}
		if err := place(m, Footprint{Pos: m.Pos, Radius: m.Radius}); err != nil {
			return nil, err
		}
		if rec.Stamp > tx.lastStamp {
			tx.lastStamp = rec.Stamp
		}
	}
	for _, ov := range snap.Obstacles {
		o := Obstacle{ID: ov.ID, Pos: geom.FromArray(ov.Pos), Radius: ov.Radius, Type: ov.Type}
		if err := place(o, Footprint{Pos: o.Pos, Radius: o.Radius}); err != nil {
			return nil, err
		}
	}

	slots := map[string]map[int]bool{}
	for _, rv := range snap.Resources {
		r := Resource{ID: rv.ID, Type: rv.Type, Radius: rv.Radius, Pos: geom.FromArray(rv.Pos), Holder: rv.Holder, Slot: rv.Slot}
		if !r.Carried() {
			if err := place(r, Footprint{Pos: r.Pos, Radius: r.Radius}); err != nil {
				return nil, err
			}
			continue
		}
		if _, ok := tx.machines[r.Holder]; !ok {
			return nil, fmt.Errorf("%w: %s held by unknown machine %s", ErrBadRequest, r.ID, r.Holder)
		}
		if r.Slot < 0 || r.Slot >= e.cfg.Carry.Slots || slots[r.Holder][r.Slot] {
			return nil, fmt.Errorf("%w: %s has bad slot %d", ErrBadRequest, r.ID, r.Slot)
		}
		if _, ok := tx.kindOf(r.ID); ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		if slots[r.Holder] == nil {
			slots[r.Holder] = map[int]bool{}
		}
		slots[r.Holder][r.Slot] = true
		if err := tx.Insert(r); err != nil {
			return nil, err
		}
	}

	for _, zv := range snap.Zones {
		tx.zones = append(tx.zones, RevealZone{
			Center:   geom.FromArray(zv.Center),
			Radius:   zv.Radius,
			Expires:  time.UnixMilli(zv.Expires),
			Attacker: zv.Attacker,
		})
	}
	return tx, nil
}

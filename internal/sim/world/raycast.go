package world

import (
	"slices"
	"time"

	"machinearena.ai/internal/sim/geom"
)

// AttackOpts overrides the configured range and damage; zero keeps the default.
type AttackOpts struct {
	Range  int `json:"range,omitempty"`
	Damage int `json:"damage,omitempty"`
}

// Attack fires along the attacker's facing. The first machine or obstacle
// whose disc contains a path cell stops the ray. Every path cell becomes a
// reveal zone whether or not anything was hit.
func (e *Engine) Attack(id string, opts AttackOpts) (AttackResult, error) {
	rng, dmg := opts.Range, opts.Damage
	if rng <= 0 {
		rng = e.cfg.Attack.Range
	}
	if dmg <= 0 {
		dmg = e.cfg.Attack.Damage
	}
	var res AttackResult
	_, err := e.mutate(ActAttack, id, ActionParams{Range: opts.Range, Damage: opts.Damage}, func(tx *Tx, now time.Time) (Machine, error) {
		m, err := tx.machine(id)
		if err != nil {
			return Machine{}, err
		}
		attacker := *m
		res = castRay(tx, attacker, rng, e.cfg.Bounds)

		if res.Hit.Type == HitMachine {
			target := *tx.machines[res.Hit.ID]
			target.Life -= dmg
			if target.Life <= 0 {
				target.Life = 0
				res.Hit.Destroyed = true
				e.logf("machine %s destroyed by %s", target.ID, id)
			}
			res.Hit.Damage = dmg
			res.Hit.LifeAfter = target.Life
			if err := tx.Upsert(target); err != nil {
				return attacker, err
			}
		}

		// Millisecond precision so zones survive a snapshot unchanged.
		expires := time.UnixMilli(now.Add(e.cfg.Attack.RevealDuration).UnixMilli())
		for _, c := range res.Path {
			tx.zones = append(tx.zones, RevealZone{
				Center:   geom.Vec3{X: float64(c.X), Y: float64(c.Y), Z: res.Origin.Z},
				Radius:   e.cfg.Attack.RevealRadius,
				Expires:  expires,
				Attacker: id,
			})
		}

		rec := res
		rec.Path = slices.Clone(res.Path)
		attacker.LastAction = ActionRecord{Tag: ActAttack, Stamp: tx.stamp(now), Attack: &rec}
		return attacker, tx.Upsert(attacker)
	})
	if err != nil {
		return AttackResult{}, err
	}
	return res, nil
}

// castRay walks integer cells from the attacker's rounded position. The
// starting cell is the first path entry and is never tested for hits. The ray
// ends before the first cell outside the world bounds.
func castRay(tx *Tx, attacker Machine, rng int, b geom.Bounds) AttackResult {
	origin := attacker.Pos.Round()
	res := AttackResult{
		Attacker: attacker.ID,
		Origin:   origin,
		Facing:   attacker.Facing,
		Range:    rng,
		Hit:      Hit{Type: HitNone},
	}
	last := cellOf(origin)
	res.Path = append(res.Path, last)
	for i := 1; i <= rng; i++ {
		p := origin.Add(attacker.Facing.Scale(float64(i))).Round()
		p.Z = origin.Z
		if !b.Contains(p) {
			break
		}
		res.Stopped = i
		c := cellOf(p)
		if c == last {
			continue
		}
		last = c
		res.Path = append(res.Path, c)
		if id, kind, ok := hitAt(tx, p, attacker.ID); ok {
			res.Hit = Hit{Type: kind, ID: id}
			break
		}
	}
	return res
}

// hitAt returns the machine or obstacle whose disc contains p, preferring the
// nearest centre and then the smaller id.
func hitAt(tx *Tx, p geom.Vec3, exclude string) (string, HitType, bool) {
	var (
		bestID   string
		bestType HitType
		bestD    float64
		found    bool
	)
	consider := func(id string, kind HitType, center geom.Vec3, r float64) {
		d := geom.Euclidean(p, center)
		if !(d < r || d == 0) {
			return
		}
		if !found || d < bestD || (d == bestD && id < bestID) {
			bestID, bestType, bestD, found = id, kind, d, true
		}
	}
	for id, m := range tx.machines {
		if id == exclude {
			continue
		}
		consider(id, HitMachine, m.Pos, m.Radius)
	}
	for id, o := range tx.obstacles {
		consider(id, HitObstacle, o.Pos, o.Radius)
	}
	return bestID, bestType, found
}

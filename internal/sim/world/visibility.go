package world

import (
	"time"

	"machinearena.ai/internal/sim/geom"
)

// RevealZone is a short-lived, globally visible disc left behind by an attack.
type RevealZone struct {
	Center   geom.Vec3
	Radius   float64
	Expires  time.Time
	Attacker string
}

// Active reports whether the zone still reveals at now. A zone at exactly its
// expiry instant is expired.
func (z RevealZone) Active(now time.Time) bool { return now.Before(z.Expires) }

func (z RevealZone) Contains(p geom.Vec3) bool {
	return geom.Euclidean(z.Center, p) <= z.Radius
}

type MachineView struct {
	ID         string    `json:"machine_id"`
	Owner      string    `json:"owner"`
	Type       string    `json:"machine_type"`
	Pos        geom.Vec3 `json:"position"`
	Facing     geom.Dir  `json:"facing_direction"`
	Radius     float64   `json:"size"`
	Life       int       `json:"life_value"`
	Visibility float64   `json:"visibility_radius"`
	Status     string    `json:"status"`
	LastAction string    `json:"last_action"`
}

// ObstacleView also carries dropped resources, with Type "resource".
type ObstacleView struct {
	ID           string    `json:"obstacle_id"`
	Pos          geom.Vec3 `json:"position"`
	Radius       float64   `json:"size"`
	Type         string    `json:"obstacle_type"`
	ResourceType string    `json:"resource_type,omitempty"`
}

type CarriedView struct {
	HolderID     string    `json:"holder_id"`
	Slot         int       `json:"slot"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	Pos          geom.Vec3 `json:"position"`
}

type ZoneView struct {
	Center    geom.Vec3 `json:"center"`
	Radius    float64   `json:"radius"`
	ExpiresMs int64     `json:"expires_unix_ms"`
}

// View is what one principal may observe right now.
type View struct {
	Owner            string         `json:"owner"`
	OwnMachineIDs    []string       `json:"my_machine_ids"`
	Machines         []MachineView  `json:"machines"`
	Obstacles        []ObstacleView `json:"obstacles"`
	CarriedResources []CarriedView  `json:"carried_resources"`
	RevealZones      []ZoneView     `json:"reveal_zones"`
}

const ObstacleResource = "resource"

// viewer answers "may owner see p" for one view computation.
type viewer struct {
	own   []Machine
	zones []RevealZone
}

func (v viewer) sees(p geom.Vec3) bool {
	for _, m := range v.own {
		if geom.Chebyshev(m.Pos, p) <= m.Visibility {
			return true
		}
	}
	for _, z := range v.zones {
		if z.Contains(p) {
			return true
		}
	}
	return false
}

// buildView filters the store for owner. It is a pure function of tx and now.
func buildView(tx *Tx, owner string, now time.Time) View {
	view := View{
		Owner:            owner,
		OwnMachineIDs:    []string{},
		Machines:         []MachineView{},
		Obstacles:        []ObstacleView{},
		CarriedResources: []CarriedView{},
		RevealZones:      []ZoneView{},
	}

	var vw viewer
	for _, z := range tx.zones {
		if z.Active(now) {
			vw.zones = append(vw.zones, z)
			view.RevealZones = append(view.RevealZones, ZoneView{Center: z.Center, Radius: z.Radius, ExpiresMs: z.Expires.UnixMilli()})
		}
	}
	all := tx.Machines()
	for _, m := range all {
		if m.Owner == owner {
			vw.own = append(vw.own, m)
			view.OwnMachineIDs = append(view.OwnMachineIDs, m.ID)
		}
	}

	visibleHolder := map[string]geom.Vec3{}
	for _, m := range all {
		if m.Owner != owner && !vw.sees(m.Pos) {
			continue
		}
		visibleHolder[m.ID] = m.Pos
		view.Machines = append(view.Machines, m.View())
	}

	for _, id := range sortedKeys(tx.obstacles) {
		o := tx.obstacles[id]
		if vw.sees(o.Pos) {
			view.Obstacles = append(view.Obstacles, ObstacleView{ID: o.ID, Pos: o.Pos, Radius: o.Radius, Type: o.Type})
		}
	}
	for _, id := range sortedKeys(tx.resources) {
		r := tx.resources[id]
		if r.Carried() {
			pos, ok := visibleHolder[r.Holder]
			if !ok {
				continue
			}
			view.CarriedResources = append(view.CarriedResources, CarriedView{
				HolderID:     r.Holder,
				Slot:         r.Slot,
				ResourceID:   r.ID,
				ResourceType: r.Type,
				Pos:          pos,
			})
			continue
		}
		if vw.sees(r.Pos) {
			view.Obstacles = append(view.Obstacles, ObstacleView{
				ID:           r.ID,
				Pos:          r.Pos,
				Radius:       r.Radius,
				Type:         ObstacleResource,
				ResourceType: r.Type,
			})
		}
	}
	return view
}

// View renders m in its wire form, with last_action encoded.
func (m Machine) View() MachineView {
	return MachineView{
		ID:         m.ID,
		Owner:      m.Owner,
		Type:       m.Type,
		Pos:        m.Pos,
		Facing:     m.Facing,
		Radius:     m.Radius,
		Life:       m.Life,
		Visibility: m.Visibility,
		Status:     m.Status,
		LastAction: m.LastAction.Encode(),
	}
}

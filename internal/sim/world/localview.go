package world

import (
	"math"

	"machinearena.ai/internal/sim/geom"
)

const (
	TerrainEmpty    = "empty"
	TerrainObstacle = "obstacle"
	TerrainResource = "resource"
	TerrainSelf     = "self"
	TerrainMachine  = "machine"
	TerrainCarried  = "carried_resource"
)

// maxLocalHalf caps the grid for machines with very large visibility.
const maxLocalHalf = 32

type GridCell struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Terrain string `json:"terrain"`
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Holder  string `json:"holder_id,omitempty"`
}

// LocalView is the square grid around one machine. Rows run from the top
// (largest y) down; columns from left to right.
type LocalView struct {
	MachineID string       `json:"machine_id"`
	Center    Cell         `json:"center"`
	Half      int          `json:"half"`
	Cells     [][]GridCell `json:"cells"`
}

// MachineView renders the cells within the machine's visibility radius.
// Entities are matched by their rounded centre; a carried resource is drawn
// one cell from its holder on its slot's side.
func (e *Engine) MachineView(id string) (LocalView, error) {
	var (
		out LocalView
		err error
	)
	e.store.Read(func(tx *Tx) {
		var m *Machine
		m, err = tx.machine(id)
		if err != nil {
			return
		}
		out = localView(tx, *m)
	})
	return out, err
}

func localView(tx *Tx, m Machine) LocalView {
	center := cellOf(m.Pos.Round())
	half := int(math.Min(math.Ceil(m.Visibility), maxLocalHalf))

	occupied := map[Cell]GridCell{}
	put := func(c Cell, g GridCell) {
		if _, ok := occupied[c]; !ok {
			occupied[c] = g
		}
	}
	for _, oid := range sortedKeys(tx.obstacles) {
		o := tx.obstacles[oid]
		put(cellOf(o.Pos.Round()), GridCell{Terrain: TerrainObstacle, ID: o.ID, Type: o.Type})
	}
	for _, mid := range sortedKeys(tx.machines) {
		other := tx.machines[mid]
		g := GridCell{Terrain: TerrainMachine, ID: other.ID, Type: other.Type}
		if mid == m.ID {
			g.Terrain = TerrainSelf
		}
		put(cellOf(other.Pos.Round()), g)
	}
	for _, rid := range sortedKeys(tx.resources) {
		r := tx.resources[rid]
		if r.Carried() {
			continue
		}
		put(cellOf(r.Pos.Round()), GridCell{Terrain: TerrainResource, ID: r.ID, Type: r.Type})
	}
	for _, rid := range sortedKeys(tx.resources) {
		r := tx.resources[rid]
		holder, ok := tx.machines[r.Holder]
		if !r.Carried() || !ok {
			continue
		}
		off := slotOffset(r.Slot)
		p := holder.Pos.Round().Add(geom.V(off.X, off.Y))
		put(cellOf(p), GridCell{Terrain: TerrainCarried, ID: r.ID, Type: r.Type, Holder: r.Holder})
	}

	lv := LocalView{MachineID: m.ID, Center: center, Half: half}
	for dy := half; dy >= -half; dy-- {
		row := make([]GridCell, 0, 2*half+1)
		for dx := -half; dx <= half; dx++ {
			c := Cell{X: center.X + dx, Y: center.Y + dy}
			g, ok := occupied[c]
			if !ok {
				g = GridCell{Terrain: TerrainEmpty}
			}
			g.X, g.Y = c.X, c.Y
			row = append(row, g)
		}
		lv.Cells = append(lv.Cells, row)
	}
	return lv
}

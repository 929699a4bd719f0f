package world

import (
	"fmt"

	"machinearena.ai/internal/sim/geom"
)

// ActionParams carries the already-resolved arguments of one action. Only the
// fields relevant to the action are set.
type ActionParams struct {
	Target     *geom.Vec3    `json:"target,omitempty"`
	Direction  *geom.Dir     `json:"direction,omitempty"`
	Distance   *float64      `json:"distance,omitempty"`
	Range      int           `json:"range,omitempty"`
	Damage     int           `json:"damage,omitempty"`
	ResourceID string        `json:"resource_id,omitempty"`
	Slot       *int          `json:"slot,omitempty"`
	Life       *int          `json:"life,omitempty"`
	Status     string        `json:"status,omitempty"`
	ObstacleID string        `json:"obstacle_id,omitempty"`
	Spec       *MachineSpec  `json:"machine,omitempty"`
	Obstacle   *ObstacleSpec `json:"obstacle,omitempty"`
	Resource   *ResourceSpec `json:"resource,omitempty"`
}

// Command is one action addressed to the engine. The HTTP and MCP adapters
// and the replayer all go through Execute.
type Command struct {
	MachineID string       `json:"machine_id,omitempty"`
	Action    string       `json:"action"`
	Params    ActionParams `json:"params"`
}

// Result holds whichever outputs the action produced.
type Result struct {
	Machine  *MachineView  `json:"machine,omitempty"`
	Attack   *AttackResult `json:"attack,omitempty"`
	Slot     *int          `json:"slot,omitempty"`
	Resource *Resource     `json:"resource,omitempty"`
	Obstacle *Obstacle     `json:"obstacle,omitempty"`
}

func (e *Engine) Execute(cmd Command) (Result, error) {
	p := cmd.Params
	switch cmd.Action {
	case ActRegister:
		if p.Spec == nil {
			return Result{}, missing("machine")
		}
		return machineResult(e.Register(*p.Spec))
	case ActRemove:
		return Result{}, e.RemoveMachine(cmd.MachineID)
	case ActMove, ActReposition:
		if p.Target == nil {
			return Result{}, missing("target")
		}
		if cmd.Action == ActReposition {
			return machineResult(e.Reposition(cmd.MachineID, *p.Target))
		}
		return machineResult(e.Move(cmd.MachineID, *p.Target))
	case ActMoveBy:
		if p.Direction == nil || p.Distance == nil {
			return Result{}, missing("direction and distance")
		}
		return machineResult(e.MoveBy(cmd.MachineID, *p.Direction, *p.Distance))
	case ActTurn:
		if p.Direction == nil {
			return Result{}, missing("direction")
		}
		return machineResult(e.Turn(cmd.MachineID, *p.Direction))
	case ActAttack:
		res, err := e.Attack(cmd.MachineID, AttackOpts{Range: p.Range, Damage: p.Damage})
		if err != nil {
			return Result{}, err
		}
		return Result{Attack: &res}, nil
	case ActPickUp:
		if p.ResourceID == "" {
			return Result{}, missing("resource_id")
		}
		slot, err := e.PickUp(cmd.MachineID, p.ResourceID)
		if err != nil {
			return Result{}, err
		}
		return Result{Slot: &slot}, nil
	case ActDrop:
		if p.Slot == nil {
			return Result{}, missing("slot")
		}
		r, err := e.Drop(cmd.MachineID, *p.Slot)
		if err != nil {
			return Result{}, err
		}
		return Result{Resource: &r}, nil
	case ActSetLife:
		if p.Life == nil {
			return Result{}, missing("life")
		}
		return machineResult(e.SetLife(cmd.MachineID, *p.Life))
	case ActSetStatus:
		return machineResult(e.SetStatus(cmd.MachineID, p.Status))
	case ActAddObstacle:
		if p.Obstacle == nil {
			return Result{}, missing("obstacle")
		}
		o, err := e.AddObstacle(*p.Obstacle)
		if err != nil {
			return Result{}, err
		}
		return Result{Obstacle: &o}, nil
	case ActRemoveObstacle:
		return Result{}, e.RemoveObstacle(p.ObstacleID)
	case ActSpawnResource:
		if p.Resource == nil {
			return Result{}, missing("resource")
		}
		r, err := e.SpawnResource(*p.Resource)
		if err != nil {
			return Result{}, err
		}
		return Result{Resource: &r}, nil
	case ActReset:
		return Result{}, e.Reset()
	default:
		return Result{}, fmt.Errorf("%w: unknown action %q", ErrBadRequest, cmd.Action)
	}
}

func machineResult(m Machine, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	v := m.View()
	return Result{Machine: &v}, nil
}

func missing(what string) error {
	return fmt.Errorf("%w: missing %s", ErrBadRequest, what)
}

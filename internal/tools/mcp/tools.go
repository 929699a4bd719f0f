package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"machinearena.ai/internal/protocol"
	"machinearena.ai/internal/sim/geom"
	"machinearena.ai/internal/sim/world"
)

var errForbidden = errors.New("forbidden")

// toolArgs is the union of all tool inputs; each tool's schema rejects the
// fields it does not use.
type toolArgs struct {
	MachineID  string    `json:"machine_id"`
	Owner      string    `json:"owner"`
	Type       string    `json:"machine_type"`
	Position   []float64 `json:"position"`
	Facing     []float64 `json:"facing_direction"`
	Direction  []float64 `json:"direction"`
	Distance   *float64  `json:"distance"`
	Size       *float64  `json:"size"`
	Life       int       `json:"life_value"`
	Visibility *float64  `json:"visibility_radius"`
	Range      int       `json:"range"`
	Damage     int       `json:"damage"`
	ResourceID string    `json:"resource_id"`
	Slot       *int      `json:"slot"`
}

func (s *Server) callTool(ctx context.Context, caller, name string, raw json.RawMessage) (any, error) {
	_ = ctx
	var a toolArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", world.ErrBadRequest, err)
		}
	}

	switch name {
	case "register_machine":
		if caller != "" && a.Owner != caller {
			return nil, fmt.Errorf("%w: cannot register for owner %s", errForbidden, a.Owner)
		}
		spec := world.MachineSpec{
			ID:         a.MachineID,
			Owner:      a.Owner,
			Type:       a.Type,
			Pos:        vec(a.Position),
			Facing:     dir(a.Facing),
			Radius:     a.Size,
			Life:       a.Life,
			Visibility: a.Visibility,
		}
		return s.exec(world.Command{Action: world.ActRegister, Params: world.ActionParams{Spec: &spec}})

	case "get_view":
		if caller != "" && a.Owner != caller {
			return nil, fmt.Errorf("%w: cannot view as %s", errForbidden, a.Owner)
		}
		return s.engine.BuildView(a.Owner), nil
	}

	if err := s.authorize(caller, a.MachineID); err != nil {
		return nil, err
	}
	cmd := world.Command{MachineID: a.MachineID}
	switch name {
	case "move":
		cmd.Action = world.ActMove
		cmd.Params.Target = vec(a.Position)
	case "move_by":
		cmd.Action = world.ActMoveBy
		cmd.Params.Direction = dir(a.Direction)
		cmd.Params.Distance = a.Distance
	case "turn":
		cmd.Action = world.ActTurn
		cmd.Params.Direction = dir(a.Direction)
	case "attack":
		cmd.Action = world.ActAttack
		cmd.Params.Range = a.Range
		cmd.Params.Damage = a.Damage
	case "pick_up":
		cmd.Action = world.ActPickUp
		cmd.Params.ResourceID = a.ResourceID
	case "drop":
		cmd.Action = world.ActDrop
		cmd.Params.Slot = a.Slot
	case "get_machine":
		m, err := s.engine.GetMachine(a.MachineID)
		if err != nil {
			return nil, err
		}
		return m.View(), nil
	case "machine_view":
		return s.engine.MachineView(a.MachineID)
	default:
		return nil, fmt.Errorf("%w: unknown tool %s", world.ErrBadRequest, name)
	}
	return s.exec(cmd)
}

func (s *Server) exec(cmd world.Command) (any, error) {
	res, err := s.engine.Execute(cmd)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// authorize checks that caller owns the machine. Unauthenticated servers
// allow everything.
func (s *Server) authorize(caller, machineID string) error {
	if caller == "" {
		return nil
	}
	m, err := s.engine.GetMachine(machineID)
	if err != nil {
		return err
	}
	if m.Owner != caller {
		return fmt.Errorf("%w: machine %s is not owned by %s", errForbidden, machineID, caller)
	}
	return nil
}

func errorBody(err error) protocol.ErrorBody {
	code := world.ErrorCode(err)
	if errors.Is(err, errForbidden) {
		code = protocol.ErrForbidden
	}
	return protocol.ErrorBody{Code: code, Message: err.Error(), Blockers: world.Blockers(err)}
}

func vec(a []float64) *geom.Vec3 {
	switch len(a) {
	case 2:
		v := geom.V(a[0], a[1])
		return &v
	case 3:
		v := geom.Vec3{X: a[0], Y: a[1], Z: a[2]}
		return &v
	default:
		return nil
	}
}

func dir(a []float64) *geom.Dir {
	if len(a) != 2 {
		return nil
	}
	return &geom.Dir{X: a[0], Y: a[1]}
}

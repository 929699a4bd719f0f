package world

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"machinearena.ai/internal/sim/geom"
)

// Action tags recorded in last_action and in the action log.
const (
	ActRegister   = "register"
	ActMove       = "move"
	ActMoveBy     = "move_by"
	ActTurn       = "turn"
	ActAttack     = "attack"
	ActPickUp     = "pick_up"
	ActDrop       = "drop"
	ActRemove     = "remove"
	ActReposition = "reposition"
	ActSetLife    = "set_life"
	ActSetStatus  = "set_status"

	ActAddObstacle    = "add_obstacle"
	ActRemoveObstacle = "remove_obstacle"
	ActSpawnResource  = "spawn_resource"
	ActReset          = "reset"
)

const recordSep = "|"

// ActionRecord is the structured last action of a machine. Consumers
// deduplicate observations by (machine id, Stamp).
type ActionRecord struct {
	Tag    string
	Stamp  int64
	Attack *AttackResult
}

func (r ActionRecord) IsZero() bool { return r.Tag == "" }

// Encode renders the opaque wire form: "tag|stamp" or "attack|stamp|{json}".
func (r ActionRecord) Encode() string {
	if r.IsZero() {
		return ""
	}
	s := r.Tag + recordSep + strconv.FormatInt(r.Stamp, 10)
	if r.Attack != nil {
		b, _ := json.Marshal(r.Attack)
		s += recordSep + string(b)
	}
	return s
}

func ParseActionRecord(s string) (ActionRecord, error) {
	if s == "" {
		return ActionRecord{}, nil
	}
	parts := strings.SplitN(s, recordSep, 3)
	if len(parts) < 2 || parts[0] == "" {
		return ActionRecord{}, fmt.Errorf("%w: malformed action record %q", ErrBadRequest, s)
	}
	stamp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("%w: action record stamp: %v", ErrBadRequest, err)
	}
	r := ActionRecord{Tag: parts[0], Stamp: stamp}
	if len(parts) == 3 {
		var ar AttackResult
		if err := json.Unmarshal([]byte(parts[2]), &ar); err != nil {
			return ActionRecord{}, fmt.Errorf("%w: action record payload: %v", ErrBadRequest, err)
		}
		r.Attack = &ar
	}
	return r, nil
}

type HitType string

const (
	HitNone     HitType = "none"
	HitMachine  HitType = "machine"
	HitObstacle HitType = "obstacle"
)

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func cellOf(p geom.Vec3) Cell { return Cell{X: int(p.X), Y: int(p.Y)} }

// Hit has the same shape for every outcome; unused fields stay zero.
type Hit struct {
	Type      HitType `json:"hit_type"`
	ID        string  `json:"id"`
	Damage    int     `json:"damage"`
	LifeAfter int     `json:"life_after"`
	Destroyed bool    `json:"destroyed"`
}

type AttackResult struct {
	Attacker string    `json:"attacker"`
	Origin   geom.Vec3 `json:"origin"`
	Facing   geom.Dir  `json:"facing"`
	Path     []Cell    `json:"path"`
	Range    int       `json:"range"`
	Stopped  int       `json:"stopped_range"`
	Hit      Hit       `json:"hit"`
}

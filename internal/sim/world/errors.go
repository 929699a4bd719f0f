package world

import (
	"errors"
	"fmt"
	"strings"

	"machinearena.ai/internal/protocol"
)

var (
	ErrNotFound             = errors.New("world: not found")
	ErrDuplicateID          = errors.New("world: duplicate id")
	ErrOutOfBounds          = errors.New("world: out of bounds")
	ErrPositionCollision    = errors.New("world: position collision")
	ErrResourceNotReachable = errors.New("world: resource not reachable")
	ErrNoFreeSlot           = errors.New("world: no free slot")
	ErrSlotEmpty            = errors.New("world: slot empty")
	ErrInvalidDirection     = errors.New("world: invalid direction")
	ErrNoFreePosition       = errors.New("world: no free position")
	ErrBadRequest           = errors.New("world: bad request")
)

// CollisionError lists every entity the candidate footprint overlaps.
type CollisionError struct {
	Blockers []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%v: blocked by %s", ErrPositionCollision, strings.Join(e.Blockers, ", "))
}

func (e *CollisionError) Is(target error) bool { return target == ErrPositionCollision }

// Blockers returns the blocking ids carried by err, if any.
func Blockers(err error) []string {
	var ce *CollisionError
	if errors.As(err, &ce) {
		return ce.Blockers
	}
	return nil
}

// ErrorCode maps an engine error to its wire code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, ErrDuplicateID):
		return protocol.ErrDuplicateID
	case errors.Is(err, ErrOutOfBounds):
		return protocol.ErrOutOfBounds
	case errors.Is(err, ErrPositionCollision):
		return protocol.ErrPositionCollision
	case errors.Is(err, ErrResourceNotReachable):
		return protocol.ErrResourceNotReachable
	case errors.Is(err, ErrNoFreeSlot):
		return protocol.ErrNoFreeSlot
	case errors.Is(err, ErrSlotEmpty):
		return protocol.ErrSlotEmpty
	case errors.Is(err, ErrNoFreePosition):
		return protocol.ErrNoFreePosition
	case errors.Is(err, ErrInvalidDirection), errors.Is(err, ErrBadRequest):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func notFound(kind Kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

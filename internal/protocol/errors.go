package protocol

const (
	// Request validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Entity lookup/registration.
	ErrNotFound    = "E_NOT_FOUND"
	ErrDuplicateID = "E_DUPLICATE_ID"

	// Spatial rules.
	ErrOutOfBounds       = "E_OUT_OF_BOUNDS"
	ErrPositionCollision = "E_POSITION_COLLISION"
	ErrNoFreePosition    = "E_NO_FREE_POSITION"

	// Carrying.
	ErrResourceNotReachable = "E_RESOURCE_NOT_REACHABLE"
	ErrNoFreeSlot           = "E_NO_FREE_SLOT"
	ErrSlotEmpty            = "E_SLOT_EMPTY"

	// Caller is not the machine's owner.
	ErrForbidden = "E_FORBIDDEN"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:           {},
	ErrNotFound:             {},
	ErrDuplicateID:          {},
	ErrOutOfBounds:          {},
	ErrPositionCollision:    {},
	ErrNoFreePosition:       {},
	ErrResourceNotReachable: {},
	ErrNoFreeSlot:           {},
	ErrSlotEmpty:            {},
	ErrForbidden:            {},
	ErrInternal:             {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

package world

import (
	"errors"
	"fmt"
	"testing"

	"machinearena.ai/internal/protocol"
)

func TestActionRecord_Encode(t *testing.T) {
	if got := (ActionRecord{}).Encode(); got != "" {
		t.Fatalf("zero record: %q", got)
	}
	if got := (ActionRecord{Tag: ActMove, Stamp: 42}).Encode(); got != "move|42" {
		t.Fatalf("move record: %q", got)
	}

	rec := ActionRecord{Tag: ActAttack, Stamp: 7, Attack: &AttackResult{
		Attacker: "m1",
		Path:     []Cell{{0, 0}, {1, 0}},
		Range:    3,
		Stopped:  1,
		Hit:      Hit{Type: HitObstacle, ID: "wall"},
	}}
	back, err := ParseActionRecord(rec.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.Tag != ActAttack || back.Stamp != 7 || back.Attack == nil || back.Attack.Hit.ID != "wall" {
		t.Fatalf("parsed: %+v", back)
	}
	if back.Encode() != rec.Encode() {
		t.Fatalf("encoding not stable:\n%s\n%s", back.Encode(), rec.Encode())
	}
}

func TestParseActionRecord_Malformed(t *testing.T) {
	for _, s := range []string{"move", "|5", "move|x", "attack|1|{"} {
		if _, err := ParseActionRecord(s); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("%q: expected ErrBadRequest, got %v", s, err)
		}
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{fmt.Errorf("%w: m1", ErrNotFound), protocol.ErrNotFound},
		{&CollisionError{Blockers: []string{"a"}}, protocol.ErrPositionCollision},
		{fmt.Errorf("wrap: %w", &CollisionError{}), protocol.ErrPositionCollision},
		{ErrOutOfBounds, protocol.ErrOutOfBounds},
		{ErrNoFreeSlot, protocol.ErrNoFreeSlot},
		{ErrInvalidDirection, protocol.ErrBadRequest},
		{errors.New("boom"), protocol.ErrInternal},
	}
	for _, c := range cases {
		if got := ErrorCode(c.err); got != c.code {
			t.Fatalf("ErrorCode(%v) = %q, want %q", c.err, got, c.code)
		}
		if !protocol.IsKnownCode(ErrorCode(c.err)) {
			t.Fatalf("unknown code for %v", c.err)
		}
	}
}

package world

import (
	"context"
	"errors"
	"time"

	"machinearena.ai/internal/persistence/snapshot"
)

var (
	ErrNoSnapshotSink       = errors.New("world: snapshot sink not configured")
	ErrSnapshotBackpressure = errors.New("world: snapshot sink backpressure")
)

// Run drives the periodic housekeeping: expired reveal zones are pruned and,
// if the world changed since the last snapshot, a new one is offered to the
// sink. Actions do not depend on Run; it only returns when ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	every := e.cfg.SnapshotEvery
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	now := e.now()
	_ = e.store.Update(func(tx *Tx) error {
		tx.pruneZones(now)
		return nil
	})
	e.mu.Lock()
	dirty := e.store.Version() != e.lastSnapshot
	e.mu.Unlock()
	if !dirty {
		return
	}
	if err := e.RequestSnapshot(); err != nil && !errors.Is(err, ErrNoSnapshotSink) {
		e.logf("snapshot: %v", err)
	}
}

// RequestSnapshot offers a snapshot to the sink without blocking.
func (e *Engine) RequestSnapshot() error {
	e.mu.Lock()
	sink := e.snapshotSink
	e.mu.Unlock()
	if sink == nil {
		return ErrNoSnapshotSink
	}

	var (
		snap    snapshot.WorldV1
		version uint64
	)
	now := e.now()
	e.store.Read(func(tx *Tx) {
		snap = exportTx(tx, e.cfg.WorldID, now)
		version = tx.version
	})

	select {
	case sink <- snap:
		e.mu.Lock()
		e.lastSnapshot = version
		e.mu.Unlock()
		return nil
	default:
		return ErrSnapshotBackpressure
	}
}

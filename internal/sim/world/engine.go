package world

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"machinearena.ai/internal/persistence/snapshot"
	"machinearena.ai/internal/sim/tuning"
)

//go:generate go tool mockgen -destination=./mocks/action_logger_mock.go -package=mocks . ActionLogger

// ActionLogger receives one entry per resolved action, success or failure.
// Entries are delivered after the store lock has been released.
type ActionLogger interface {
	WriteAction(entry ActionLogEntry) error
}

type ActionLogEntry struct {
	ID         string       `json:"id"`
	Stamp      int64        `json:"stamp"`
	WorldID    string       `json:"world_id"`
	MachineID  string       `json:"machine_id,omitempty"`
	Owner      string       `json:"owner,omitempty"`
	Action     string       `json:"action"`
	Params     ActionParams `json:"params"`
	OK         bool         `json:"ok"`
	Code       string       `json:"code,omitempty"`
	Message    string       `json:"message,omitempty"`
	LastAction string       `json:"last_action,omitempty"`
}

// Engine resolves actions against one arena. All methods are safe for
// concurrent use.
type Engine struct {
	cfg       tuning.Tuning
	store     *Store
	validator Validator

	logger *log.Logger
	clock  func() time.Time
	newID  func() string

	mu           sync.Mutex
	loggers      []ActionLogger
	snapshotSink chan<- snapshot.WorldV1
	lastSnapshot uint64
}

func New(cfg tuning.Tuning) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     NewStore(),
		validator: ScanValidator{Bounds: cfg.Bounds},
		clock:     time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

func (e *Engine) Config() tuning.Tuning { return e.cfg }

// Store exposes the underlying store for read-only inspection in tools and tests.
func (e *Engine) Store() *Store { return e.store }

func (e *Engine) SetLogger(l *log.Logger)        { e.logger = l }
func (e *Engine) SetClock(now func() time.Time)  { e.clock = now }
func (e *Engine) SetValidator(v Validator)       { e.validator = v }
func (e *Engine) SetIDGenerator(f func() string) { e.newID = f }

func (e *Engine) AddActionLogger(l ActionLogger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loggers = append(e.loggers, l)
}

func (e *Engine) SetSnapshotSink(ch chan<- snapshot.WorldV1) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshotSink = ch
}

func (e *Engine) Version() uint64 { return e.store.Version() }

func (e *Engine) now() time.Time { return e.clock() }

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// stamp returns a unix-ms timestamp strictly greater than any issued before.
func (tx *Tx) stamp(now time.Time) int64 {
	s := now.UnixMilli()
	if s <= tx.lastStamp {
		s = tx.lastStamp + 1
	}
	tx.lastStamp = s
	return s
}

// pruneZones drops reveal zones that are no longer active at now.
func (tx *Tx) pruneZones(now time.Time) {
	kept := tx.zones[:0]
	for _, z := range tx.zones {
		if z.Active(now) {
			kept = append(kept, z)
		}
	}
	for i := len(kept); i < len(tx.zones); i++ {
		tx.zones[i] = RevealZone{}
	}
	tx.zones = kept
}

// mutate runs fn as one atomic action and reports it to the action loggers.
// fn returns the acting machine (possibly zero) so the entry can name its owner.
func (e *Engine) mutate(act, machineID string, p ActionParams, fn func(tx *Tx, now time.Time) (Machine, error)) (Machine, error) {
	now := e.now()
	var m Machine
	err := e.store.Update(func(tx *Tx) error {
		tx.pruneZones(now)
		var err error
		m, err = fn(tx, now)
		return err
	})
	e.emit(act, machineID, m, p, now, err)
	return m, err
}

func (e *Engine) emit(act, machineID string, m Machine, p ActionParams, now time.Time, err error) {
	e.mu.Lock()
	loggers := e.loggers
	e.mu.Unlock()
	if len(loggers) == 0 {
		return
	}
	entry := ActionLogEntry{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Stamp:     now.UnixMilli(),
		WorldID:   e.cfg.WorldID,
		MachineID: machineID,
		Owner:     m.Owner,
		Action:    act,
		Params:    p,
		OK:        err == nil,
	}
	if entry.MachineID == "" {
		entry.MachineID = m.ID
	}
	if err != nil {
		entry.Code = ErrorCode(err)
		entry.Message = err.Error()
	} else if !m.LastAction.IsZero() {
		entry.LastAction = m.LastAction.Encode()
	}
	for _, l := range loggers {
		if werr := l.WriteAction(entry); werr != nil {
			e.logf("action log: %v", werr)
		}
	}
}

// BuildView returns what owner may observe right now.
func (e *Engine) BuildView(owner string) View {
	now := e.now()
	var v View
	e.store.Read(func(tx *Tx) { v = buildView(tx, owner, now) })
	return v
}

func (e *Engine) GetMachine(id string) (Machine, error) {
	var (
		m   Machine
		err error
	)
	e.store.Read(func(tx *Tx) {
		var p *Machine
		p, err = tx.machine(id)
		if err == nil {
			m = *p
		}
	})
	return m, err
}

// Carried lists the resources held by id, ordered by slot.
func (e *Engine) Carried(id string) []Resource {
	var out []Resource
	e.store.Read(func(tx *Tx) { out = tx.carriedBy(id) })
	return out
}

// Stats is a point-in-time population count.
type Stats struct {
	Version   uint64 `json:"version"`
	Machines  int    `json:"machines"`
	Obstacles int    `json:"obstacles"`
	Dropped   int    `json:"dropped_resources"`
	Carried   int    `json:"carried_resources"`
	Zones     int    `json:"reveal_zones"`
}

func (e *Engine) Stats() Stats {
	now := e.now()
	var st Stats
	e.store.Read(func(tx *Tx) {
		st.Version = tx.version
		st.Machines = len(tx.machines)
		st.Obstacles = len(tx.obstacles)
		for _, r := range tx.resources {
			if r.Carried() {
				st.Carried++
			} else {
				st.Dropped++
			}
		}
		for _, z := range tx.zones {
			if z.Active(now) {
				st.Zones++
			}
		}
	})
	return st
}

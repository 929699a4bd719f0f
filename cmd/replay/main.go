package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	persistlog "machinearena.ai/internal/persistence/log"
	"machinearena.ai/internal/persistence/snapshot"
	"machinearena.ai/internal/sim/tuning"
	"machinearena.ai/internal/sim/world"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		worldID    = flag.String("world", "", "world id (used to locate the latest snapshot and the action log)")
		snapPath   = flag.String("snapshot", "", "path to .snap.zst (default: latest for -world)")
		actionsDir = flag.String("actions", "", "dir containing actions-*.jsonl.zst (default: <world>/actions)")
		tuningPath = flag.String("tuning", "", "tuning.yaml the world ran with (default: built-in defaults)")
		maxReport  = flag.Int("max_report", 20, "mismatches to print")
	)
	flag.Parse()

	worldDir := ""
	if *worldID != "" {
		worldDir = filepath.Join(*dataDir, "worlds", *worldID)
	}
	path := strings.TrimSpace(*snapPath)
	if path == "" && worldDir != "" {
		path = snapshot.LatestSnapshot(filepath.Join(worldDir, "snapshots"))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot (or -world with snapshots)")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d world=%s stamp=%d machines=%d obstacles=%d resources=%d zones=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Stamp,
		len(snap.Machines), len(snap.Obstacles), len(snap.Resources), len(snap.Zones))

	dir := strings.TrimSpace(*actionsDir)
	if dir == "" && worldDir != "" {
		dir = persistlog.ActionsDir(worldDir)
	}
	if dir == "" {
		return
	}

	tune := tuning.Defaults()
	if *tuningPath != "" {
		if tune, err = tuning.Load(*tuningPath); err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
	}
	tune.WorldID = snap.Header.WorldID

	var entries []world.ActionLogEntry
	if err := persistlog.ReadActions(dir, func(e world.ActionLogEntry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		fmt.Fprintln(os.Stderr, "read actions:", err)
		os.Exit(1)
	}

	rep, err := replay(tune, snap, entries)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	for i, m := range rep.Mismatches {
		if i >= *maxReport {
			fmt.Printf("... %d more\n", len(rep.Mismatches)-i)
			break
		}
		fmt.Println("mismatch:", m)
	}
	fmt.Printf("replayed=%d skipped=%d mismatches=%d digest=%s\n", rep.Replayed, rep.Skipped, len(rep.Mismatches), rep.Digest)
	if len(rep.Mismatches) > 0 {
		os.Exit(1)
	}
}

type report struct {
	Replayed   int
	Skipped    int
	Mismatches []string
	Digest     string
}

// replay restores snap and re-executes every logged action taken after it,
// with the clock pinned to each entry's stamp. Entries must be in log order.
func replay(tune tuning.Tuning, snap snapshot.WorldV1, entries []world.ActionLogEntry) (report, error) {
	var rep report

	eng := world.New(tune)
	clock := time.UnixMilli(snap.Header.Stamp)
	eng.SetClock(func() time.Time { return clock })
	if err := eng.Restore(snap); err != nil {
		return rep, fmt.Errorf("restore: %w", err)
	}

	for _, e := range entries {
		if !afterSnapshot(e, snap) {
			rep.Skipped++
			continue
		}
		rep.Replayed++
		clock = time.UnixMilli(e.Stamp)

		_, err := eng.Execute(world.Command{MachineID: e.MachineID, Action: e.Action, Params: e.Params})
		ok := err == nil
		if ok != e.OK || world.ErrorCode(err) != e.Code {
			rep.Mismatches = append(rep.Mismatches, fmt.Sprintf("%s %s %s: logged ok=%v code=%s, replayed ok=%v code=%s",
				e.ID, e.Action, e.MachineID, e.OK, e.Code, ok, world.ErrorCode(err)))
			continue
		}
		if e.LastAction == "" {
			continue
		}
		m, err := eng.GetMachine(e.MachineID)
		if err != nil {
			// Destroyed by its own action; nothing left to compare.
			continue
		}
		if got := m.LastAction.Encode(); got != e.LastAction {
			rep.Mismatches = append(rep.Mismatches, fmt.Sprintf("%s %s %s: last_action logged=%s replayed=%s",
				e.ID, e.Action, e.MachineID, e.LastAction, got))
		}
	}

	rep.Digest = stateDigest(eng.Snapshot())
	return rep, nil
}

// afterSnapshot reports whether e was resolved after snap was taken. Entries
// in the snapshot's own millisecond are disambiguated by their action stamp.
func afterSnapshot(e world.ActionLogEntry, snap snapshot.WorldV1) bool {
	switch {
	case e.Stamp > snap.Header.Stamp:
		return true
	case e.Stamp < snap.Header.Stamp:
		return false
	}
	if e.LastAction == "" {
		return true
	}
	rec, err := world.ParseActionRecord(e.LastAction)
	return err != nil || rec.Stamp > snap.LastStamp
}

// stateDigest hashes the world state, ignoring when the snapshot was taken.
func stateDigest(snap snapshot.WorldV1) string {
	snap.Header.Stamp = 0
	b, _ := json.Marshal(snap)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "machinearena.ai/internal/persistence/log"
	"machinearena.ai/internal/persistence/snapshot"
	"machinearena.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "actions":
			actionsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "reset":
			resetCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

type snapshotSummary struct {
	Path      string          `json:"path"`
	Header    snapshot.Header `json:"header"`
	LastStamp int64           `json:"last_stamp"`
	Machines  int             `json:"machines"`
	Obstacles int             `json:"obstacles"`
	Dropped   int             `json:"dropped_resources"`
	Carried   int             `json:"carried_resources"`
	Zones     int             `json:"reveal_zones"`
	Owners    map[string]int  `json:"machines_by_owner"`
	Destroyed []string        `json:"zero_life,omitempty"`
}

// inspectCmd prints a summary of a snapshot file (default: latest).
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -snapshot)")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	full := fs.Bool("full", false, "print the whole snapshot instead of a summary")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		path = snapshot.LatestSnapshot(filepath.Join(*dataDir, "worlds", *worldID, "snapshots"))
		if path == "" {
			fmt.Fprintln(os.Stderr, "no snapshots")
			os.Exit(1)
		}
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if *full {
		printJSON(snap)
		return
	}

	sum := snapshotSummary{
		Path:      path,
		Header:    snap.Header,
		LastStamp: snap.LastStamp,
		Machines:  len(snap.Machines),
		Obstacles: len(snap.Obstacles),
		Zones:     len(snap.Zones),
		Owners:    map[string]int{},
	}
	for _, m := range snap.Machines {
		sum.Owners[m.Owner]++
		if m.Life <= 0 {
			sum.Destroyed = append(sum.Destroyed, m.ID)
		}
	}
	for _, r := range snap.Resources {
		if r.Holder != "" {
			sum.Carried++
		} else {
			sum.Dropped++
		}
	}
	sort.Strings(sum.Destroyed)
	printJSON(sum)
}

// actionsCmd prints action log entries, oldest first.
func actionsCmd(args []string) {
	fs := flag.NewFlagSet("actions", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required)")
	machineID := fs.String("machine", "", "machine id filter")
	failed := fs.Bool("failed", false, "only failed actions")
	limit := fs.Int("limit", 0, "print at most the last N matches (0 = all)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	dir := persistlog.ActionsDir(filepath.Join(*dataDir, "worlds", *worldID))

	var out []world.ActionLogEntry
	err := persistlog.ReadActions(dir, func(e world.ActionLogEntry) error {
		if *machineID != "" && e.MachineID != *machineID {
			return nil
		}
		if *failed && e.OK {
			return nil
		}
		out = append(out, e)
		if *limit > 0 && len(out) > *limit {
			out = out[1:]
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read actions:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range out {
		_ = enc.Encode(e)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

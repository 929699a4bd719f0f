package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"machinearena.ai/internal/persistence/indexdb"
	"machinearena.ai/internal/persistence/snapshot"
	"machinearena.ai/internal/sim/world"
	"machinearena.ai/internal/transport/httpapi"
)

func openRuntimeIndex(worldDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("ARENA_INDEX_BACKEND")))
	switch backend {
	case "", "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	case "none", "off", "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported ARENA_INDEX_BACKEND: %s", backend)
	}
}

// indexOrNil avoids handing a typed nil to an interface field.
func indexOrNil(idx *indexdb.SQLiteIndex) httpapi.ActionIndex {
	if idx == nil {
		return nil
	}
	return idx
}

// writeSnapshots persists snapshots offered by the engine until ctx ends.
func writeSnapshots(ctx context.Context, ch <-chan snapshot.WorldV1, dir string, idx *indexdb.SQLiteIndex, logger *log.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-ch:
			path, err := persistSnapshot(dir, snap, idx)
			if err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			logger.Printf("snapshot %s machines=%d", filepath.Base(path), len(snap.Machines))
		}
	}
}

func persistSnapshot(dir string, snap snapshot.WorldV1, idx *indexdb.SQLiteIndex) (string, error) {
	path := filepath.Join(dir, snapshot.FileName(snap.Header.Stamp))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
	return path, nil
}

func writeFinalSnapshot(eng *world.Engine, dir string, idx *indexdb.SQLiteIndex) error {
	_, err := persistSnapshot(dir, eng.Snapshot(), idx)
	return err
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

const Ext = ".snap.zst"

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Stamp   int64  `json:"stamp"`
}

// WorldV1 is the full serializable state of an arena.
type WorldV1 struct {
	Header Header `json:"header"`

	Machines  []MachineV1    `json:"machines"`
	Obstacles []ObstacleV1   `json:"obstacles"`
	Resources []ResourceV1   `json:"resources"`
	Zones     []RevealZoneV1 `json:"zones,omitempty"`

	// LastStamp keeps last-action timestamps monotonic across restarts.
	LastStamp int64 `json:"last_stamp"`
}

type MachineV1 struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	Type       string     `json:"type"`
	Pos        [3]float64 `json:"pos"`
	Facing     [2]float64 `json:"facing"`
	Radius     float64    `json:"radius"`
	Life       int        `json:"life"`
	Status     string     `json:"status"`
	Visibility float64    `json:"visibility"`
	LastAction string     `json:"last_action,omitempty"`
}

type ObstacleV1 struct {
	ID     string     `json:"id"`
	Pos    [3]float64 `json:"pos"`
	Radius float64    `json:"radius"`
	Type   string     `json:"type"`
}

// ResourceV1 is either dropped (Holder empty, Pos valid) or carried.
type ResourceV1 struct {
	ID     string     `json:"id"`
	Type   string     `json:"type"`
	Radius float64    `json:"radius"`
	Pos    [3]float64 `json:"pos"`
	Holder string     `json:"holder,omitempty"`
	Slot   int        `json:"slot"`
}

type RevealZoneV1 struct {
	Center   [3]float64 `json:"center"`
	Radius   float64    `json:"radius"`
	Expires  int64      `json:"expires_unix_ms"`
	Attacker string     `json:"attacker,omitempty"`
}

// FileName is the canonical file name for a snapshot taken at stamp; names sort
// in stamp order.
func FileName(stamp int64) string {
	return fmt.Sprintf("%016d%s", stamp, Ext)
}

func WriteSnapshot(path string, snap WorldV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap WorldV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (WorldV1, error) {
	var snap WorldV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hl, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hl, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the newest snapshot file in dir, or "" if none.
func LatestSnapshot(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}

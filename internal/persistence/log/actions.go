package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"machinearena.ai/internal/sim/world"
)

const actionsPrefix = "actions"

// ActionLogger writes one JSONL entry per resolved action (compressed).
type ActionLogger struct{ w *JSONLZstdWriter }

func NewActionLogger(worldDir string) *ActionLogger {
	return &ActionLogger{w: NewJSONLZstdWriter(ActionsDir(worldDir), actionsPrefix)}
}

func ActionsDir(worldDir string) string { return filepath.Join(worldDir, "actions") }

func (l *ActionLogger) WriteAction(e world.ActionLogEntry) error { return l.w.Write(e) }
func (l *ActionLogger) Close() error                             { return l.w.Close() }

// ActionFiles lists the action log files in dir in write order.
func ActionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), actionsPrefix+"-") || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// ReadActions streams every entry in dir to fn, oldest file first. A
// truncated tail (a writer that was killed mid-frame) ends the file quietly.
func ReadActions(dir string, fn func(world.ActionLogEntry) error) error {
	files, err := ActionFiles(dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := readActionFile(path, fn); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func readActionFile(path string, fn func(world.ActionLogEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			var e world.ActionLogEntry
			if jerr := json.Unmarshal(line, &e); jerr != nil {
				return jerr
			}
			if ferr := fn(e); ferr != nil {
				return ferr
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return err
	}
}

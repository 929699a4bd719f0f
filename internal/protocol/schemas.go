package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json schemas/tools/*.json
var schemaFS embed.FS

const schemaBase = "https://machinearena.ai/schemas/"

// Schema names for wire payloads.
const (
	SchemaError     = "error.schema.json"
	SchemaView      = "view.schema.json"
	SchemaActionLog = "action_log.schema.json"
)

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

// Schema compiles (once) the embedded schema with the given name. Tool input
// schemas live under "tools/".
func Schema(name string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	raw, err := schemaFS.ReadFile(path.Join("schemas", name))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := schemaBase + name
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	schemaCache[name] = s
	return s, nil
}

// RawSchema returns the schema document as decoded JSON, for embedding in
// tool descriptors.
func RawSchema(name string) (map[string]any, error) {
	raw, err := schemaFS.ReadFile(path.Join("schemas", name))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return out, nil
}

// ToolSchemaName maps a tool's short name ("move") to its schema file.
func ToolSchemaName(tool string) string {
	return "tools/" + tool + ".schema.json"
}

// ToolNames lists the tools that have an input schema, sorted.
func ToolNames() []string {
	entries, _ := fs.ReadDir(schemaFS, "schemas/tools")
	var out []string
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".schema.json"); ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// ValidateJSON checks raw JSON against the named schema.
func ValidateJSON(name string, raw []byte) error {
	s, err := Schema(name)
	if err != nil {
		return err
	}
	var v any
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

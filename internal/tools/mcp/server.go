package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"machinearena.ai/internal/protocol"
	"machinearena.ai/internal/sim/world"
)

// Engine is the subset of *world.Engine the tools call.
type Engine interface {
	Execute(cmd world.Command) (world.Result, error)
	GetMachine(id string) (world.Machine, error)
	BuildView(owner string) world.View
	MachineView(id string) (world.LocalView, error)
}

type Config struct {
	Engine Engine
	// HMACSecret enables signed requests; the signed x-owner becomes the
	// caller and tools may only touch that owner's machines.
	HMACSecret string
	Logger     *log.Logger
}

type Server struct {
	engine Engine
	secret []byte
	nonces *nonceCache
	log    *log.Logger
	now    func() time.Time

	tools []toolDescriptor
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

const toolPrefix = "arena."

var toolDescriptions = map[string]string{
	"register_machine": "Register a machine for an owner. Position is auto-selected when omitted.",
	"move":             "Move a machine to a target position if the footprint is free and in bounds.",
	"move_by":          "Face a direction and move a distance along it, snapped to the grid.",
	"turn":             "Set a machine's facing direction.",
	"attack":           "Cast a ray along the machine's facing and damage the first entity hit.",
	"pick_up":          "Pick up a dropped resource within reach into the first free slot.",
	"drop":             "Drop the resource held in a slot next to the machine.",
	"get_machine":      "Get one machine's current state.",
	"get_view":         "Get everything an owner can currently see.",
	"machine_view":     "Get the local grid around one machine.",
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("nil engine")
	}
	s := &Server{
		engine: cfg.Engine,
		log:    cfg.Logger,
		now:    time.Now,
	}
	if strings.TrimSpace(cfg.HMACSecret) != "" {
		s.secret = []byte(cfg.HMACSecret)
		s.nonces = newNonceCache(0)
	}
	for _, name := range protocol.ToolNames() {
		schema, err := protocol.RawSchema(protocol.ToolSchemaName(name))
		if err != nil {
			return nil, err
		}
		// Compile up front so a broken schema fails at startup.
		if _, err := protocol.Schema(protocol.ToolSchemaName(name)); err != nil {
			return nil, err
		}
		s.tools = append(s.tools, toolDescriptor{
			Name:        toolPrefix + name,
			Description: toolDescriptions[name],
			InputSchema: schema,
		})
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/mcp", s.HandleMCP)
	return mux
}

func (s *Server) HandleMCP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad body"))
		return
	}
	_ = r.Body.Close()

	caller := ""
	if len(s.secret) > 0 {
		ar := verifyRequest(r, body, s.secret, s.nonces, s.now())
		if !ar.ok() {
			rw.WriteHeader(ar.Status)
			_, _ = rw.Write([]byte(ar.Message))
			return
		}
		caller = ar.Owner
	}

	var resp rpcResponse
	req, err := parseRPCRequest(body)
	if err != nil {
		resp = rpcErr(nil, codeParseError, "bad jsonrpc request", err.Error())
	} else {
		resp = s.dispatch(r.Context(), caller, req)
	}
	rw.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (s *Server) dispatch(ctx context.Context, caller string, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcOK(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": "machinearena", "version": protocol.Version},
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
		})

	case "list_tools":
		return rpcOK(req.ID, map[string]any{"tools": s.tools})

	case "call_tool":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if len(req.Params) == 0 {
			return rpcErr(req.ID, codeInvalidParams, "missing params", nil)
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "bad params", err.Error())
		}
		short, ok := strings.CutPrefix(p.Name, toolPrefix)
		if !ok || toolDescriptions[short] == "" {
			return rpcErr(req.ID, codeMethodNotFound, "tool not found", map[string]any{"name": p.Name})
		}
		if err := protocol.ValidateJSON(protocol.ToolSchemaName(short), p.Arguments); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "invalid arguments", err.Error())
		}
		out, err := s.callTool(ctx, caller, short, p.Arguments)
		if err != nil {
			if s.log != nil {
				s.log.Printf("tool %s: %v", p.Name, err)
			}
			return rpcErr(req.ID, codeToolFailed, err.Error(), errorBody(err))
		}
		return rpcOK(req.ID, out)

	default:
		return rpcErr(req.ID, codeMethodNotFound, "method not found", nil)
	}
}

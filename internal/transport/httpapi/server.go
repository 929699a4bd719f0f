// Package httpapi exposes the engine as JSON over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"machinearena.ai/internal/persistence/indexdb"
	"machinearena.ai/internal/protocol"
	"machinearena.ai/internal/sim/world"
)

// Engine is the subset of *world.Engine served over HTTP.
type Engine interface {
	Execute(cmd world.Command) (world.Result, error)
	GetMachine(id string) (world.Machine, error)
	BuildView(owner string) world.View
	MachineView(id string) (world.LocalView, error)
	RequestSnapshot() error
	Stats() world.Stats
}

// ActionIndex answers action history queries; usually *indexdb.SQLiteIndex.
type ActionIndex interface {
	RecentActions(ctx context.Context, machineID string, limit int) ([]indexdb.ActionRow, error)
}

type Config struct {
	Engine Engine
	Index  ActionIndex
	Logger *log.Logger
	// AdminLocalOnly restricts world-shaping endpoints to loopback clients.
	AdminLocalOnly bool
}

type Server struct {
	engine    Engine
	index     ActionIndex
	log       *log.Logger
	localOnly bool
}

func NewServer(cfg Config) *Server {
	return &Server{
		engine:    cfg.Engine,
		index:     cfg.Index,
		log:       cfg.Logger,
		localOnly: cfg.AdminLocalOnly,
	}
}

// Register mounts the routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/machines", s.handleRegister)
	mux.HandleFunc("GET /v1/machines/{id}", s.handleGetMachine)
	mux.HandleFunc("DELETE /v1/machines/{id}", s.handleRemoveMachine)
	mux.HandleFunc("POST /v1/machines/{id}/action", s.handleAction)
	mux.HandleFunc("GET /v1/machines/{id}/view", s.handleMachineView)
	mux.HandleFunc("GET /v1/machines/{id}/actions", s.handleActions)
	mux.HandleFunc("GET /v1/view", s.handleView)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	mux.HandleFunc("POST /v1/machines/{id}/admin", s.admin(s.handleAdminMachine))
	mux.HandleFunc("POST /v1/obstacles", s.admin(s.handleAddObstacle))
	mux.HandleFunc("DELETE /v1/obstacles/{id}", s.admin(s.handleRemoveObstacle))
	mux.HandleFunc("POST /v1/resources", s.admin(s.handleSpawnResource))
	mux.HandleFunc("POST /v1/snapshot", s.admin(s.handleSnapshot))
	mux.HandleFunc("POST /v1/reset", s.admin(s.handleReset))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// playerActions are the actions accepted on /v1/machines/{id}/action.
var playerActions = map[string]bool{
	world.ActMove:   true,
	world.ActMoveBy: true,
	world.ActTurn:   true,
	world.ActAttack: true,
	world.ActPickUp: true,
	world.ActDrop:   true,
}

var adminActions = map[string]bool{
	world.ActReposition: true,
	world.ActSetLife:    true,
	world.ActSetStatus:  true,
}

func (s *Server) handleRegister(rw http.ResponseWriter, r *http.Request) {
	var spec world.MachineSpec
	if !decodeBody(rw, r, &spec) {
		return
	}
	s.execute(rw, http.StatusCreated, world.Command{Action: world.ActRegister, Params: world.ActionParams{Spec: &spec}})
}

func (s *Server) handleGetMachine(rw http.ResponseWriter, r *http.Request) {
	m, err := s.engine.GetMachine(r.PathValue("id"))
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, m.View())
}

func (s *Server) handleRemoveMachine(rw http.ResponseWriter, r *http.Request) {
	s.execute(rw, http.StatusOK, world.Command{MachineID: r.PathValue("id"), Action: world.ActRemove})
}

func (s *Server) handleAction(rw http.ResponseWriter, r *http.Request) {
	s.machineCommand(rw, r, playerActions)
}

func (s *Server) handleAdminMachine(rw http.ResponseWriter, r *http.Request) {
	s.machineCommand(rw, r, adminActions)
}

func (s *Server) machineCommand(rw http.ResponseWriter, r *http.Request, allowed map[string]bool) {
	var cmd world.Command
	if !decodeBody(rw, r, &cmd) {
		return
	}
	if !allowed[cmd.Action] {
		writeError(rw, fmt.Errorf("%w: action %q not allowed here", world.ErrBadRequest, cmd.Action))
		return
	}
	cmd.MachineID = r.PathValue("id")
	s.execute(rw, http.StatusOK, cmd)
}

func (s *Server) handleMachineView(rw http.ResponseWriter, r *http.Request) {
	v, err := s.engine.MachineView(r.PathValue("id"))
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, v)
}

func (s *Server) handleActions(rw http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeJSON(rw, http.StatusServiceUnavailable, protocol.ErrorBody{Code: protocol.ErrInternal, Message: "action index disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.index.RecentActions(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(rw, err)
		return
	}
	if rows == nil {
		rows = []indexdb.ActionRow{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"actions": rows})
}

func (s *Server) handleView(rw http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		writeError(rw, fmt.Errorf("%w: missing owner", world.ErrBadRequest))
		return
	}
	writeJSON(rw, http.StatusOK, s.engine.BuildView(owner))
}

func (s *Server) handleStats(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleAddObstacle(rw http.ResponseWriter, r *http.Request) {
	var spec world.ObstacleSpec
	if !decodeBody(rw, r, &spec) {
		return
	}
	s.execute(rw, http.StatusCreated, world.Command{Action: world.ActAddObstacle, Params: world.ActionParams{Obstacle: &spec}})
}

func (s *Server) handleRemoveObstacle(rw http.ResponseWriter, r *http.Request) {
	s.execute(rw, http.StatusOK, world.Command{Action: world.ActRemoveObstacle, Params: world.ActionParams{ObstacleID: r.PathValue("id")}})
}

func (s *Server) handleSpawnResource(rw http.ResponseWriter, r *http.Request) {
	var spec world.ResourceSpec
	if !decodeBody(rw, r, &spec) {
		return
	}
	s.execute(rw, http.StatusCreated, world.Command{Action: world.ActSpawnResource, Params: world.ActionParams{Resource: &spec}})
}

func (s *Server) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	if err := s.engine.RequestSnapshot(); err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleReset(rw http.ResponseWriter, r *http.Request) {
	s.execute(rw, http.StatusOK, world.Command{Action: world.ActReset})
}

func (s *Server) execute(rw http.ResponseWriter, status int, cmd world.Command) {
	res, err := s.engine.Execute(cmd)
	if err != nil {
		if s.log != nil && world.ErrorCode(err) == protocol.ErrInternal {
			s.log.Printf("%s %s: %v", cmd.Action, cmd.MachineID, err)
		}
		writeError(rw, err)
		return
	}
	writeJSON(rw, status, res)
}

func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.localOnly && !isLoopbackRemote(r.RemoteAddr) {
			writeJSON(rw, http.StatusForbidden, protocol.ErrorBody{Code: protocol.ErrForbidden, Message: "admin endpoints are loopback only"})
			return
		}
		h(rw, r)
	}
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(rw, http.StatusBadRequest, protocol.ErrorBody{Code: protocol.ErrBadRequest, Message: "bad body: " + err.Error()})
		return false
	}
	return true
}

func writeError(rw http.ResponseWriter, err error) {
	code := world.ErrorCode(err)
	writeJSON(rw, statusFor(code), protocol.ErrorBody{Code: code, Message: err.Error(), Blockers: world.Blockers(err)})
}

func statusFor(code string) int {
	switch code {
	case protocol.ErrBadRequest:
		return http.StatusBadRequest
	case protocol.ErrNotFound:
		return http.StatusNotFound
	case protocol.ErrForbidden:
		return http.StatusForbidden
	case protocol.ErrDuplicateID, protocol.ErrPositionCollision, protocol.ErrNoFreePosition,
		protocol.ErrNoFreeSlot, protocol.ErrSlotEmpty:
		return http.StatusConflict
	case protocol.ErrOutOfBounds, protocol.ErrResourceNotReachable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

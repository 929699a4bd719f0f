package ws

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"machinearena.ai/internal/protocol"
	"machinearena.ai/internal/sim/world"
)

// ViewSource builds owner views; usually *world.Engine.
type ViewSource interface {
	BuildView(owner string) world.View
}

// Server streams one owner's view to render clients. A frame is pushed when
// the view's digest changes, polled every Poll.
type Server struct {
	src  ViewSource
	log  *log.Logger
	poll time.Duration

	upgrader websocket.Upgrader
}

func NewServer(src ViewSource, poll time.Duration, logger *log.Logger) *Server {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	return &Server{
		src:  src,
		log:  logger,
		poll: poll,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.URL.Query().Get("owner"))
		if owner == "" {
			http.Error(rw, "missing owner", http.StatusBadRequest)
			return
		}
		encoding := r.URL.Query().Get("encoding")
		switch encoding {
		case "":
			encoding = protocol.EncodingJSON
		case protocol.EncodingJSON, protocol.EncodingMsgpack:
		default:
			http.Error(rw, "unknown encoding", http.StatusBadRequest)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		session := uuid.NewString()
		s.logf("session %s open owner=%s encoding=%s", session, owner, encoding)
		defer s.logf("session %s closed", session)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		resync := make(chan struct{}, 1)
		go s.readLoop(conn, cancel, resync)

		st := &stream{conn: conn, owner: owner, encoding: encoding}
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		force := true
		for {
			if err := st.push(s.src.BuildView(owner), force); err != nil {
				return
			}
			force = false
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-resync:
				force = true
			}
		}
	}
}

// readLoop drains client frames; it only reacts to RESYNC and to the
// connection going away.
func (s *Server) readLoop(conn *websocket.Conn, cancel context.CancelFunc, resync chan<- struct{}) {
	defer cancel()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeResync {
			continue
		}
		select {
		case resync <- struct{}{}:
		default:
		}
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

type stream struct {
	conn     *websocket.Conn
	owner    string
	encoding string

	seq    uint64
	digest string
}

func (st *stream) push(v world.View, force bool) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])
	if digest == st.digest && !force {
		return nil
	}
	st.seq++
	st.digest = digest

	msg := protocol.ViewMsg{
		Type:            protocol.TypeView,
		ProtocolVersion: protocol.Version,
		Seq:             st.seq,
		Owner:           st.owner,
		Digest:          digest,
		View:            v,
	}
	typ, b, err := encodeFrame(st.encoding, msg)
	if err != nil {
		return err
	}
	_ = st.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return st.conn.WriteMessage(typ, b)
}

func encodeFrame(encoding string, v any) (int, []byte, error) {
	if encoding == protocol.EncodingMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return 0, nil, err
		}
		return websocket.BinaryMessage, buf.Bytes(), nil
	}
	b, err := json.Marshal(v)
	return websocket.TextMessage, b, err
}

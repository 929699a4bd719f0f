package ws

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"machinearena.ai/internal/protocol"
	"machinearena.ai/internal/sim/geom"
	"machinearena.ai/internal/sim/tuning"
	"machinearena.ai/internal/sim/world"
)

type viewFrame struct {
	Type   string     `json:"type"`
	Seq    uint64     `json:"seq"`
	Owner  string     `json:"owner"`
	Digest string     `json:"digest"`
	View   world.View `json:"view"`
}

func newStream(t *testing.T, query string) (*websocket.Conn, *world.Engine) {
	t.Helper()
	tune := tuning.Defaults()
	tune.Bounds = geom.Bounds{Min: -10, Max: 10}
	e := world.New(tune)
	if _, err := e.Register(world.MachineSpec{ID: "m1", Owner: "alice", Pos: &geom.Vec3{}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	srv := httptest.NewServer(NewServer(e, 10*time.Millisecond, nil).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, e
}

func readJSONFrame(t *testing.T, conn *websocket.Conn) viewFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	typ, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.TextMessage {
		t.Fatalf("frame type = %d", typ)
	}
	var f viewFrame
	if err := json.Unmarshal(b, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

func TestStream_PushesOnChangeOnly(t *testing.T) {
	conn, e := newStream(t, "owner=alice")

	first := readJSONFrame(t, conn)
	if first.Type != protocol.TypeView || first.Seq != 1 || first.Owner != "alice" {
		t.Fatalf("first frame = %+v", first)
	}
	if len(first.View.Machines) != 1 || first.View.Machines[0].Pos != (geom.Vec3{}) {
		t.Fatalf("first view = %+v", first.View.Machines)
	}

	if _, err := e.Move("m1", geom.V(2, 0)); err != nil {
		t.Fatalf("move: %v", err)
	}
	second := readJSONFrame(t, conn)
	if second.Seq != 2 || second.Digest == first.Digest {
		t.Fatalf("second frame seq=%d digest same=%v", second.Seq, second.Digest == first.Digest)
	}
	if second.View.Machines[0].Pos != geom.V(2, 0) {
		t.Fatalf("second view pos = %+v", second.View.Machines[0].Pos)
	}

	// Nothing changed: a RESYNC is the only way to get the next frame.
	if err := conn.WriteJSON(map[string]any{"type": protocol.TypeResync}); err != nil {
		t.Fatalf("write: %v", err)
	}
	third := readJSONFrame(t, conn)
	if third.Seq != 3 || third.Digest != second.Digest {
		t.Fatalf("resync frame = seq %d", third.Seq)
	}
}

func TestStream_Msgpack(t *testing.T) {
	conn, _ := newStream(t, "owner=alice&encoding=msgpack")

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	typ, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.BinaryMessage {
		t.Fatalf("frame type = %d", typ)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	var f viewFrame
	if err := dec.Decode(&f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Type != protocol.TypeView || f.Owner != "alice" || len(f.View.OwnMachineIDs) != 1 {
		t.Fatalf("frame = %+v", f)
	}
}

func TestStream_RejectsBadQuery(t *testing.T) {
	e := world.New(tuning.Defaults())
	srv := httptest.NewServer(NewServer(e, 0, nil).Handler())
	defer srv.Close()

	for _, q := range []string{"", "owner=alice&encoding=xml"} {
		res, err := http.Get(srv.URL + "/?" + q)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: status %d", q, res.StatusCode)
		}
	}
}

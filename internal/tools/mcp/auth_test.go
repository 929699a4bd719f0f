package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func signedHeaders(secret, owner, nonce string, ts int64, body []byte) map[string]string {
	tsStr := strconv.FormatInt(ts, 10)
	return map[string]string{
		headerOwner:     owner,
		headerTS:        tsStr,
		headerNonce:     nonce,
		headerSignature: signRequest([]byte(secret), canonicalRequest(tsStr, "POST", "/mcp", owner, nonce, body)),
	}
}

func TestVerifyRequest(t *testing.T) {
	secret := []byte("topsecret")
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"list_tools"}`)
	now := time.UnixMilli(1_700_000_000_000)

	newReq := func(h map[string]string) *http.Request {
		r, _ := http.NewRequest("POST", "http://example.invalid/mcp", bytes.NewReader(body))
		for k, v := range h {
			r.Header.Set(k, v)
		}
		return r
	}

	nonces := newNonceCache(0)
	h := signedHeaders(string(secret), "alice", "n1", now.UnixMilli(), body)
	if ar := verifyRequest(newReq(h), body, secret, nonces, now); !ar.ok() || ar.Owner != "alice" {
		t.Fatalf("expected ok for alice, got %+v", ar)
	}
	if ar := verifyRequest(newReq(h), body, secret, nonces, now); ar.ok() || ar.Message != "replayed nonce" {
		t.Fatalf("expected replay rejection, got %+v", ar)
	}

	stale := signedHeaders(string(secret), "alice", "n2", now.UnixMilli()-6*60*1000, body)
	if ar := verifyRequest(newReq(stale), body, secret, nonces, now); ar.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale ts, got %+v", ar)
	}

	forged := signedHeaders("other", "alice", "n3", now.UnixMilli(), body)
	if ar := verifyRequest(newReq(forged), body, secret, nonces, now); ar.Message != "bad signature" {
		t.Fatalf("expected bad signature, got %+v", ar)
	}

	noNonce := signedHeaders(string(secret), "alice", "", now.UnixMilli(), body)
	delete(noNonce, headerNonce)
	if ar := verifyRequest(newReq(noNonce), body, secret, nonces, now); ar.Message != "missing x-nonce" {
		t.Fatalf("expected missing nonce, got %+v", ar)
	}
}

func TestMCP_SignedCallerOwnsMachines(t *testing.T) {
	const secret = "topsecret"
	ts, _ := newTestServer(t, secret)
	now := int64(1_700_000_000_000)

	post := func(owner, nonce string, payload any) (int, rpcResponse) {
		b, _ := json.Marshal(payload)
		req, _ := http.NewRequest("POST", ts.URL+"/mcp", bytes.NewReader(b))
		for k, v := range signedHeaders(secret, owner, nonce, now, b) {
			req.Header.Set(k, v)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer res.Body.Close()
		var out rpcResponse
		if res.StatusCode == http.StatusOK {
			_ = json.NewDecoder(res.Body).Decode(&out)
		}
		return res.StatusCode, out
	}
	tool := func(name string, args any) map[string]any {
		return map[string]any{"jsonrpc": "2.0", "id": 1, "method": "call_tool", "params": map[string]any{"name": name, "arguments": args}}
	}

	status, r := post("alice", "a1", tool("arena.register_machine", map[string]any{"machine_id": "m1", "owner": "alice"}))
	if status != http.StatusOK || r.Error != nil {
		t.Fatalf("register: status=%d err=%+v", status, r.Error)
	}

	_, r = post("bob", "b1", tool("arena.turn", map[string]any{"machine_id": "m1", "direction": []float64{0, 1}}))
	if code := errCode(t, r); code != "E_FORBIDDEN" {
		t.Fatalf("bob turning alice's machine: code=%q", code)
	}
	_, r = post("bob", "b2", tool("arena.register_machine", map[string]any{"owner": "alice"}))
	if code := errCode(t, r); code != "E_FORBIDDEN" {
		t.Fatalf("bob registering for alice: code=%q", code)
	}

	// Unsigned requests never reach dispatch.
	b, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": "list_tools"})
	res, err := http.Post(ts.URL+"/mcp", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unsigned status = %d", res.StatusCode)
	}
}

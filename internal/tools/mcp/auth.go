package mcp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	headerOwner     = "x-owner"
	headerTS        = "x-ts"
	headerNonce     = "x-nonce"
	headerSignature = "x-signature"

	signatureWindow = 5 * time.Minute
)

// canonicalRequest is the string a client signs:
// ts, method, path, owner, nonce and body, newline separated.
func canonicalRequest(ts, method, pathname, owner, nonce string, body []byte) string {
	return ts + "\n" + strings.ToUpper(method) + "\n" + pathname + "\n" + owner + "\n" + nonce + "\n" + string(body)
}

func signRequest(secret []byte, canonical string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

type authResult struct {
	Owner   string
	Status  int
	Message string
}

func (a authResult) ok() bool { return a.Status == 0 }

func deny(msg string) authResult {
	return authResult{Status: http.StatusUnauthorized, Message: msg}
}

// verifyRequest checks the signature headers and returns the authenticated
// owner. A nonce is accepted once per owner within the signature window.
func verifyRequest(r *http.Request, body []byte, secret []byte, nonces *nonceCache, now time.Time) authResult {
	owner := strings.TrimSpace(r.Header.Get(headerOwner))
	if owner == "" {
		return deny("missing x-owner")
	}
	ts := strings.TrimSpace(r.Header.Get(headerTS))
	if ts == "" {
		return deny("missing x-ts")
	}
	nonce := strings.TrimSpace(r.Header.Get(headerNonce))
	if nonce == "" {
		return deny("missing x-nonce")
	}
	sig := strings.ToLower(strings.TrimSpace(r.Header.Get(headerSignature)))
	if sig == "" {
		return deny("missing x-signature")
	}

	tsMS, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return deny("bad x-ts")
	}
	if d := now.UnixMilli() - tsMS; d > signatureWindow.Milliseconds() || d < -signatureWindow.Milliseconds() {
		return deny("x-ts outside window")
	}

	want := signRequest(secret, canonicalRequest(ts, r.Method, r.URL.Path, owner, nonce, body))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return deny("bad signature")
	}
	if !nonces.use(owner, nonce, now) {
		return deny("replayed nonce")
	}
	return authResult{Owner: owner}
}

// nonceCache remembers recently used nonces per owner.
type nonceCache struct {
	mu        sync.Mutex
	seen      map[string]int64
	ttl       time.Duration
	lastPrune int64
}

const maxNonces = 65536

func newNonceCache(ttl time.Duration) *nonceCache {
	if ttl <= 0 {
		ttl = 2 * signatureWindow
	}
	return &nonceCache{seen: map[string]int64{}, ttl: ttl}
}

func (c *nonceCache) use(owner, nonce string, now time.Time) bool {
	if c == nil {
		return true
	}
	key := owner + "|" + nonce
	nowMS := now.UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.seen) > 4096 || nowMS-c.lastPrune > c.ttl.Milliseconds()/2 {
		for k, exp := range c.seen {
			if exp <= nowMS {
				delete(c.seen, k)
			}
		}
		c.lastPrune = nowMS
	}
	if exp, ok := c.seen[key]; ok && exp > nowMS {
		return false
	}
	if len(c.seen) >= maxNonces {
		c.seen = map[string]int64{}
	}
	c.seen[key] = nowMS + c.ttl.Milliseconds()
	return true
}

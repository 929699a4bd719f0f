package protocol

import "encoding/json"

const Version = "1.0"

// Message types on the view stream. VIEW and ERROR are pushed by the server;
// a client may send RESYNC to get the current view even if unchanged.
const (
	TypeView   = "VIEW"
	TypeError  = "ERROR"
	TypeResync = "RESYNC"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

package protocol

// ErrorBody is returned by every HTTP endpoint on failure. Blockers is only
// set for E_POSITION_COLLISION.
type ErrorBody struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Blockers []string `json:"blockers,omitempty"`
}

// ErrorMsg is pushed on the view stream when a subscription cannot be served.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// ViewMsg wraps one owner view. View is the engine's view value; it is kept
// as any so this package stays free of engine imports.
type ViewMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	Owner           string `json:"owner"`
	Digest          string `json:"digest"`
	View            any    `json:"view"`
}

// Encodings accepted by the view stream.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

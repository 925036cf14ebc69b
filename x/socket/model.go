package socket

import "encoding/json"

// Close codes carried on the websocket close frame when a connection
// is refused during the handshake.
const (
	CloseUnauthenticated = 4401
	CloseForbidden       = 4403
	CloseNotFound        = 4404
)

// inboundFrame is a client-to-server frame. Action and Type are
// aliases; either key selects the frame kind.
type inboundFrame struct {
	Action      string          `json:"action"`
	Type        string          `json:"type"`
	Text        string          `json:"text"`
	Attachments json.RawMessage `json:"attachments"`
}

func (f inboundFrame) kind() string {
	if f.Action != "" {
		return f.Action
	}
	return f.Type
}

// outboundFrame is a server-to-client frame
type outboundFrame struct {
	Type    string          `json:"type"`
	GroupID string          `json:"groupId,omitempty"`
	Error   string          `json:"error,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

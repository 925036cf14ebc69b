package core

import "encoding/json"

// Event types fanned out on a group's topic
const (
	EventMessageCreated = "message.created"
	EventMessageUpdated = "message.updated"
	EventMessageDeleted = "message.deleted"
)

// ChatEvent is a realtime event on a group's broadcast topic.
// Both payloads are projected at publish time; connections forward one
// of them verbatim depending on their viewer class and never
// re-project on receipt.
type ChatEvent struct {
	GroupID  string `json:"groupId"`
	Type     string `json:"type"`
	AuthorID uint   `json:"authorId"`

	// Payload is redacted for ordinary viewers.
	Payload json.RawMessage `json:"payload"`
	// ModeratorPayload carries unredacted content for moderators and
	// the message author.
	ModeratorPayload json.RawMessage `json:"moderatorPayload"`
}

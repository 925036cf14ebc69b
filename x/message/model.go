package message

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// WireAuthor is the author sub-object of a projected message
type WireAuthor struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// WireAttachment is the projected form of a message attachment
type WireAttachment struct {
	FileURL  string `json:"file_url"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// WireModeration is the moderation sub-object of a projected message.
// Note is only present for moderators and the author.
type WireModeration struct {
	Status      string     `json:"status"`
	Note        string     `json:"note,omitempty"`
	ModeratedAt *time.Time `json:"moderatedAt,omitempty"`
	ModeratedBy *uint      `json:"moderatedBy,omitempty"`
}

// WireMessage is the viewer-specific wire representation of a message
type WireMessage struct {
	ID          uint             `json:"id"`
	Author      WireAuthor       `json:"author"`
	Text        string           `json:"text"`
	Timestamp   time.Time        `json:"timestamp"`
	Attachments []WireAttachment `json:"attachments"`
	IsDeleted   bool             `json:"isDeleted"`
	DeletedAt   *time.Time       `json:"deletedAt,omitempty"`
	DeletedBy   *uint            `json:"deletedBy,omitempty"`
	Moderation  WireModeration   `json:"moderation"`
}

// Size is an attachment byte size. Clients send it as a JSON number or
// a numeric string; range and format checking happens at validation
// time, not during decoding.
type Size string

func (s *Size) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Size(strings.TrimSpace(str))
		return nil
	}
	*s = Size(strings.TrimSpace(string(data)))
	return nil
}

// Int64 parses the size, treating absence as zero
func (s Size) Int64() (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(string(s), 10, 64)
}

// AttachmentSpec is a client-supplied attachment. Snake-case aliases
// are accepted alongside the primary field names.
type AttachmentSpec struct {
	URL           string `json:"url"`
	FileURL       string `json:"file_url"`
	Filename      string `json:"filename"`
	Size          Size   `json:"size"`
	FileSize      Size   `json:"file_size"`
	MimeType      string `json:"mimeType"`
	MimeTypeSnake string `json:"mime_type"`
}

// PostRequest is the body of a send-message request. The same shape is
// accepted over HTTP and over the socket's send_message frame.
type PostRequest struct {
	Text        string           `json:"text"`
	Attachments []AttachmentSpec `json:"attachments"`
}

// ModerationRequest is the body of a moderation update. At least one
// field must be present.
type ModerationRequest struct {
	Status  *string `json:"moderationStatus"`
	Note    *string `json:"moderationNote"`
	Restore bool    `json:"restore"`
}

type listResponse struct {
	Messages []WireMessage `json:"messages"`
	HasMore  bool          `json:"hasMore"`
}

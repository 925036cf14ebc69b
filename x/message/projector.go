package message

import (
	"github.com/btfhub/groupchat/core"
	"github.com/btfhub/groupchat/x/policy"
)

// ContentUnavailable replaces the text of messages the viewer may not see
const ContentUnavailable = "This message is no longer available."

// CanViewContent reports whether a viewer may see the message's text
// and attachments. Hidden content (soft-deleted or rejected) stays
// visible to the author and to group moderators; a nil viewer is the
// unprivileged broadcast context and sees hidden content never.
func CanViewContent(message core.Message, viewer *core.Identity, group core.Group) bool {
	if !message.Hidden() {
		return true
	}
	if viewer == nil {
		return false
	}
	if viewer.IsAuthenticated && viewer.UserID == message.AuthorID {
		return true
	}
	return policy.CanModerateGroup(*viewer, group)
}

// Project maps a stored message into its wire form for a viewer.
// Deterministic and side-effect free; visibility is re-evaluated from
// the message's current state on every call.
func Project(message core.Message, viewer *core.Identity, group core.Group) WireMessage {
	includeNote := false
	if viewer != nil {
		if viewer.IsAuthenticated && viewer.UserID == message.AuthorID {
			includeNote = true
		} else if policy.CanModerateGroup(*viewer, group) {
			includeNote = true
		}
	}
	return project(message, CanViewContent(message, viewer, group), includeNote)
}

// ProjectForModerator is the unredacted projection used for the
// privileged class of broadcast payloads.
func ProjectForModerator(message core.Message) WireMessage {
	return project(message, true, true)
}

func project(message core.Message, includeContent bool, includeNote bool) WireMessage {
	wire := WireMessage{
		ID:          message.ID,
		Author:      WireAuthor{ID: message.AuthorID, Name: message.Author.DisplayName()},
		Text:        message.Text,
		Timestamp:   message.CDate,
		Attachments: []WireAttachment{},
		IsDeleted:   message.Hidden(),
		DeletedAt:   message.DeletedAt,
		DeletedBy:   message.DeletedByID,
		Moderation: WireModeration{
			Status:      string(message.ModerationStatus),
			ModeratedAt: message.ModeratedAt,
			ModeratedBy: message.ModeratedByID,
		},
	}

	if includeContent {
		for _, attachment := range message.Attachments {
			wire.Attachments = append(wire.Attachments, WireAttachment{
				FileURL:  attachment.FileURL,
				Filename: attachment.Filename,
				FileSize: attachment.FileSize,
				MimeType: attachment.MimeType,
			})
		}
	} else {
		wire.Text = ContentUnavailable
	}

	if includeNote && message.ModerationNote != "" {
		wire.Moderation.Note = message.ModerationNote
	}

	return wire
}

package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/btfhub/groupchat/core"
)

var mentorID uint = 10

func projGroup() core.Group {
	return core.Group{
		ID:       "team-7",
		MentorID: &mentorID,
		Members: []core.GroupMember{
			{GroupID: "team-7", UserID: 20},
			{GroupID: "team-7", UserID: 21},
		},
	}
}

func visibleMessage() core.Message {
	return core.Message{
		ID:       1,
		GroupID:  "team-7",
		AuthorID: 20,
		Author:   core.User{ID: 20, Email: "ayo@example.com", FirstName: "Ayo", LastName: "Bello"},
		Text:     "hello world",
		CDate:    time.Now(),
		Attachments: []core.MessageAttachment{
			{FileURL: "https://files.example.com/a.pdf", Filename: "a.pdf", FileSize: 1024, MimeType: "application/pdf"},
		},
		ModerationStatus: core.ModerationApproved,
	}
}

func TestProjectVisible(t *testing.T) {
	member := core.Identity{UserID: 21, Role: core.RoleStudent, IsAuthenticated: true}

	wire := Project(visibleMessage(), &member, projGroup())

	assert.Equal(t, "hello world", wire.Text)
	assert.Equal(t, "Ayo Bello", wire.Author.Name)
	assert.Len(t, wire.Attachments, 1)
	assert.False(t, wire.IsDeleted)
	assert.Empty(t, wire.Moderation.Note)
}

func TestProjectRedactsHiddenContent(t *testing.T) {
	msg := visibleMessage()
	msg.IsDeleted = true
	now := time.Now()
	msg.DeletedAt = &now

	member := core.Identity{UserID: 21, Role: core.RoleStudent, IsAuthenticated: true}
	wire := Project(msg, &member, projGroup())

	assert.Equal(t, ContentUnavailable, wire.Text)
	assert.Empty(t, wire.Attachments)
	assert.True(t, wire.IsDeleted)
}

func TestProjectRejectedCountsAsDeleted(t *testing.T) {
	msg := visibleMessage()
	msg.ModerationStatus = core.ModerationRejected

	member := core.Identity{UserID: 21, Role: core.RoleStudent, IsAuthenticated: true}
	wire := Project(msg, &member, projGroup())

	assert.True(t, wire.IsDeleted)
	assert.Equal(t, ContentUnavailable, wire.Text)
}

func TestProjectAuthorSeesOwnHiddenMessage(t *testing.T) {
	msg := visibleMessage()
	msg.IsDeleted = true
	msg.ModerationNote = "off topic"

	author := core.Identity{UserID: 20, Role: core.RoleStudent, IsAuthenticated: true}
	wire := Project(msg, &author, projGroup())

	assert.Equal(t, "hello world", wire.Text)
	assert.Len(t, wire.Attachments, 1)
	assert.True(t, wire.IsDeleted)
	assert.Equal(t, "off topic", wire.Moderation.Note)
}

func TestProjectMentorSeesHiddenContentAndNote(t *testing.T) {
	msg := visibleMessage()
	msg.ModerationStatus = core.ModerationRejected
	msg.ModerationNote = "spam"

	mentor := core.Identity{UserID: 10, Role: core.RoleMentor, IsAuthenticated: true}
	wire := Project(msg, &mentor, projGroup())

	assert.Equal(t, "hello world", wire.Text)
	assert.Equal(t, "spam", wire.Moderation.Note)
}

func TestProjectNoteHiddenFromOtherMembers(t *testing.T) {
	msg := visibleMessage()
	msg.ModerationNote = "watch this user"

	member := core.Identity{UserID: 21, Role: core.RoleStudent, IsAuthenticated: true}
	wire := Project(msg, &member, projGroup())

	assert.Empty(t, wire.Moderation.Note)
}

func TestProjectNilViewerAlwaysRedacted(t *testing.T) {
	msg := visibleMessage()
	msg.IsDeleted = true

	wire := Project(msg, nil, projGroup())

	assert.Equal(t, ContentUnavailable, wire.Text)
	assert.Empty(t, wire.Moderation.Note)
}

func TestProjectForModerator(t *testing.T) {
	msg := visibleMessage()
	msg.IsDeleted = true
	msg.ModerationNote = "escalated"

	wire := ProjectForModerator(msg)

	assert.Equal(t, "hello world", wire.Text)
	assert.Equal(t, "escalated", wire.Moderation.Note)
	assert.True(t, wire.IsDeleted)
}

func TestProjectAuthorFallsBackToEmail(t *testing.T) {
	msg := visibleMessage()
	msg.Author = core.User{ID: 20, Email: "ayo@example.com"}

	member := core.Identity{UserID: 21, Role: core.RoleStudent, IsAuthenticated: true}
	wire := Project(msg, &member, projGroup())

	assert.Equal(t, "ayo@example.com", wire.Author.Name)
}

package message

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/btfhub/groupchat/core"
	"github.com/btfhub/groupchat/x/group"
	"github.com/btfhub/groupchat/x/policy"
)

var tracer = otel.Tracer("message")

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Publisher fans a chat event out to every live subscriber of a group.
// Delivery is best effort; implementations must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, groupID string, eventType string, authorID uint, payload json.RawMessage, moderatorPayload json.RawMessage)
}

// Service is the message service interface
type Service interface {
	List(ctx context.Context, requester core.Identity, groupID string, before *time.Time, limit int) ([]WireMessage, bool, error)
	Create(ctx context.Context, requester core.Identity, groupID string, request PostRequest) (WireMessage, error)
	Moderate(ctx context.Context, requester core.Identity, groupID string, messageID uint, request ModerationRequest) (WireMessage, error)
	Delete(ctx context.Context, requester core.Identity, groupID string, messageID uint) (WireMessage, error)
	Count(ctx context.Context) (int64, error)
}

type service struct {
	repository Repository
	group      group.Service
	publisher  Publisher
}

// NewService creates a new message service
func NewService(repository Repository, group group.Service, publisher Publisher) Service {
	return &service{
		repository: repository,
		group:      group,
		publisher:  publisher,
	}
}

// List returns one page of a group's history, newest first, projected
// for the requester. The second return reports whether older messages
// remain beyond the page.
func (s *service) List(ctx context.Context, requester core.Identity, groupID string, before *time.Time, limit int) ([]WireMessage, bool, error) {
	ctx, span := tracer.Start(ctx, "Message.Service.List")
	defer span.End()

	grp, err := s.group.Get(ctx, groupID)
	if err != nil {
		return nil, false, err
	}
	if !policy.CanReadGroup(requester, grp) {
		return nil, false, core.NewErrorPermissionDenied()
	}

	if limit < 1 {
		limit = 1
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	includeHidden := policy.CanModerateGroup(requester, grp)
	messages, err := s.repository.ListByGroup(ctx, groupID, before, limit+1, includeHidden)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	projected := make([]WireMessage, 0, len(messages))
	for _, m := range messages {
		projected = append(projected, Project(m, &requester, grp))
	}

	return projected, hasMore, nil
}

// Create validates and stores a new message, then broadcasts a
// message.created event to the group's subscribers.
func (s *service) Create(ctx context.Context, requester core.Identity, groupID string, request PostRequest) (WireMessage, error) {
	ctx, span := tracer.Start(ctx, "Message.Service.Create")
	defer span.End()

	grp, err := s.group.Get(ctx, groupID)
	if err != nil {
		return WireMessage{}, err
	}
	if !policy.CanReadGroup(requester, grp) {
		return WireMessage{}, core.NewErrorPermissionDenied()
	}

	text := strings.TrimSpace(request.Text)
	if text == "" && len(request.Attachments) == 0 {
		return WireMessage{}, core.NewErrorValidation("text", "Message text or attachments are required.")
	}

	attachments := make([]core.MessageAttachment, 0, len(request.Attachments))
	for _, spec := range request.Attachments {
		attachment, err := buildAttachment(spec)
		if err != nil {
			return WireMessage{}, err
		}
		attachments = append(attachments, attachment)
	}

	created, err := s.repository.Create(ctx, core.Message{
		GroupID:     groupID,
		AuthorID:    requester.UserID,
		Text:        text,
		Attachments: attachments,
	})
	if err != nil {
		span.RecordError(err)
		return WireMessage{}, err
	}

	s.broadcast(ctx, created, grp, core.EventMessageCreated)

	return Project(created, &requester, grp), nil
}

// Moderate applies a moderation update to a message. Only group
// moderators may call it; at least one field must be supplied.
func (s *service) Moderate(ctx context.Context, requester core.Identity, groupID string, messageID uint, request ModerationRequest) (WireMessage, error) {
	ctx, span := tracer.Start(ctx, "Message.Service.Moderate")
	defer span.End()

	grp, err := s.group.Get(ctx, groupID)
	if err != nil {
		return WireMessage{}, err
	}
	if !policy.CanModerateGroup(requester, grp) {
		return WireMessage{}, core.NewErrorPermissionDenied()
	}

	if _, err := s.repository.GetByGroup(ctx, groupID, messageID); err != nil {
		return WireMessage{}, err
	}

	if request.Status == nil && request.Note == nil && !request.Restore {
		return WireMessage{}, core.NewErrorValidation("", "No valid fields provided for update.")
	}

	var note *string
	if request.Note != nil {
		trimmed := strings.TrimSpace(*request.Note)
		note = &trimmed
	}

	var updated core.Message
	if request.Status != nil {
		status := core.ModerationStatus(*request.Status)
		if !core.ValidModerationStatus(status) {
			return WireMessage{}, core.NewErrorValidation("moderationStatus", "Invalid moderation status.")
		}
		updated, err = s.repository.SetModeration(ctx, messageID, status, note, requester.UserID)
	} else if note != nil {
		updated, err = s.repository.SetNote(ctx, messageID, *note)
	} else {
		updated, err = s.repository.Get(ctx, messageID)
	}
	if err != nil {
		span.RecordError(err)
		return WireMessage{}, err
	}

	if request.Restore {
		updated, err = s.repository.Restore(ctx, messageID)
		if err != nil {
			span.RecordError(err)
			return WireMessage{}, err
		}
	}

	s.broadcast(ctx, updated, grp, core.EventMessageUpdated)

	return Project(updated, &requester, grp), nil
}

// Delete soft-deletes a message. Moderators only; deleting an already
// deleted message succeeds without changing it.
func (s *service) Delete(ctx context.Context, requester core.Identity, groupID string, messageID uint) (WireMessage, error) {
	ctx, span := tracer.Start(ctx, "Message.Service.Delete")
	defer span.End()

	grp, err := s.group.Get(ctx, groupID)
	if err != nil {
		return WireMessage{}, err
	}
	if !policy.CanModerateGroup(requester, grp) {
		return WireMessage{}, core.NewErrorPermissionDenied()
	}

	if _, err := s.repository.GetByGroup(ctx, groupID, messageID); err != nil {
		return WireMessage{}, err
	}

	deleted, err := s.repository.SoftDelete(ctx, messageID, requester.UserID)
	if err != nil {
		span.RecordError(err)
		return WireMessage{}, err
	}

	s.broadcast(ctx, deleted, grp, core.EventMessageDeleted)

	return Project(deleted, &requester, grp), nil
}

// Count returns the total number of stored messages
func (s *service) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Message.Service.Count")
	defer span.End()

	return s.repository.Count(ctx)
}

// broadcast publishes both payload classes for an event: the redacted
// public projection and the unredacted one for moderators and the
// author. The connection layer picks which to forward per socket.
func (s *service) broadcast(ctx context.Context, message core.Message, grp core.Group, eventType string) {
	public, err := json.Marshal(Project(message, nil, grp))
	if err != nil {
		return
	}
	privileged, err := json.Marshal(ProjectForModerator(message))
	if err != nil {
		return
	}
	s.publisher.Publish(ctx, grp.ID, eventType, message.AuthorID, public, privileged)
}

func buildAttachment(spec AttachmentSpec) (core.MessageAttachment, error) {
	url := strings.TrimSpace(spec.URL)
	if url == "" {
		url = strings.TrimSpace(spec.FileURL)
	}
	if url == "" {
		return core.MessageAttachment{}, core.NewErrorValidation("attachments", "Attachment url is required.")
	}

	filename := strings.TrimSpace(spec.Filename)
	if filename == "" {
		return core.MessageAttachment{}, core.NewErrorValidation("attachments", "Attachment filename is required.")
	}

	size := spec.Size
	if size == "" {
		size = spec.FileSize
	}
	bytes, err := size.Int64()
	if err != nil {
		return core.MessageAttachment{}, core.NewErrorValidation("attachments", "Attachment size must be an integer.")
	}
	if bytes < 0 {
		return core.MessageAttachment{}, core.NewErrorValidation("attachments", "Attachment size must not be negative.")
	}

	mimeType := strings.TrimSpace(spec.MimeType)
	if mimeType == "" {
		mimeType = strings.TrimSpace(spec.MimeTypeSnake)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return core.MessageAttachment{
		FileURL:  url,
		Filename: filename,
		FileSize: bytes,
		MimeType: mimeType,
	}, nil
}

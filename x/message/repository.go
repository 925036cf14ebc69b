package message

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/btfhub/groupchat/core"
)

// Repository is the message repository interface
type Repository interface {
	Create(ctx context.Context, message core.Message) (core.Message, error)
	Get(ctx context.Context, id uint) (core.Message, error)
	GetByGroup(ctx context.Context, groupID string, id uint) (core.Message, error)
	ListByGroup(ctx context.Context, groupID string, before *time.Time, limit int, includeHidden bool) ([]core.Message, error)
	SetModeration(ctx context.Context, id uint, status core.ModerationStatus, note *string, moderator uint) (core.Message, error)
	SetNote(ctx context.Context, id uint, note string) (core.Message, error)
	SoftDelete(ctx context.Context, id uint, actor uint) (core.Message, error)
	Restore(ctx context.Context, id uint) (core.Message, error)
	Count(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new message repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create persists a message together with its attachment rows in one
// transaction; readers never observe the message without them.
func (r *repository) Create(ctx context.Context, message core.Message) (core.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.Create")
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&message).Error
	})
	if err != nil {
		span.RecordError(err)
		return core.Message{}, errors.Wrap(err, "failed to create message")
	}

	return r.Get(ctx, message.ID)
}

// Get returns a message with its relations loaded
func (r *repository) Get(ctx context.Context, id uint) (core.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.Get")
	defer span.End()

	var message core.Message
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Attachments").
		First(&message, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Message{}, core.NewErrorNotFound()
		}
		span.RecordError(err)
		return core.Message{}, errors.Wrap(err, "failed to get message")
	}

	return message, nil
}

// GetByGroup returns a message only if it belongs to the given group
func (r *repository) GetByGroup(ctx context.Context, groupID string, id uint) (core.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.GetByGroup")
	defer span.End()

	var message core.Message
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Attachments").
		First(&message, "id = ? AND group_id = ?", id, groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Message{}, core.NewErrorNotFound()
		}
		span.RecordError(err)
		return core.Message{}, errors.Wrap(err, "failed to get message")
	}

	return message, nil
}

// ListByGroup returns up to limit messages ordered newest first by
// (cdate, id). Hidden rows are filtered out unless includeHidden.
func (r *repository) ListByGroup(ctx context.Context, groupID string, before *time.Time, limit int, includeHidden bool) ([]core.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.ListByGroup")
	defer span.End()

	query := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Attachments").
		Where("group_id = ?", groupID).
		Order("cdate DESC, id DESC").
		Limit(limit)

	if !includeHidden {
		query = query.
			Where("is_deleted = ?", false).
			Where("moderation_status <> ?", core.ModerationRejected)
	}

	if before != nil {
		query = query.Where("cdate < ?", *before)
	}

	var messages []core.Message
	err := query.Find(&messages).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list messages")
	}

	return messages, nil
}

// SetModeration applies a moderation transition. Status, moderated_at
// and moderated_by always change together; the note only when given.
func (r *repository) SetModeration(ctx context.Context, id uint, status core.ModerationStatus, note *string, moderator uint) (core.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.SetModeration")
	defer span.End()

	updates := map[string]interface{}{
		"moderation_status": status,
		"moderated_at":      time.Now(),
		"moderated_by_id":   moderator,
	}
	if note != nil {
		updates["moderation_note"] = *note
	}

	err := r.db.WithContext(ctx).Model(&core.Message{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		span.RecordError(err)
		return core.Message{}, errors.Wrap(err, "failed to set moderation")
	}

	return r.Get(ctx, id)
}

// SetNote updates only the moderation note
func (r *repository) SetNote(ctx context.Context, id uint, note string) (core.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.SetNote")
	defer span.End()

	err := r.db.WithContext(ctx).Model(&core.Message{}).Where("id = ?", id).
		Update("moderation_note", note).Error
	if err != nil {
		span.RecordError(err)
		return core.Message{}, errors.Wrap(err, "failed to set note")
	}

	return r.Get(ctx, id)
}

// SoftDelete marks a message deleted. Idempotent: deleting an already
// deleted message is a no-op and returns the current state.
func (r *repository) SoftDelete(ctx context.Context, id uint, actor uint) (core.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.SoftDelete")
	defer span.End()

	message, err := r.Get(ctx, id)
	if err != nil {
		return core.Message{}, err
	}
	if message.IsDeleted {
		return message, nil
	}

	err = r.db.WithContext(ctx).Model(&core.Message{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_deleted":    true,
		"deleted_at":    time.Now(),
		"deleted_by_id": actor,
	}).Error
	if err != nil {
		span.RecordError(err)
		return core.Message{}, errors.Wrap(err, "failed to soft delete message")
	}

	return r.Get(ctx, id)
}

// Restore clears the soft-delete fields
func (r *repository) Restore(ctx context.Context, id uint) (core.Message, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.Restore")
	defer span.End()

	err := r.db.WithContext(ctx).Model(&core.Message{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_deleted":    false,
		"deleted_at":    nil,
		"deleted_by_id": nil,
	}).Error
	if err != nil {
		span.RecordError(err)
		return core.Message{}, errors.Wrap(err, "failed to restore message")
	}

	return r.Get(ctx, id)
}

// Count returns the total number of messages
func (r *repository) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Message.Repository.Count")
	defer span.End()

	var count int64
	err := r.db.WithContext(ctx).Model(&core.Message{}).Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(err, "failed to count messages")
	}

	return count, nil
}

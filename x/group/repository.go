// Package group is the lookup boundary for the platform's group entity
package group

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/btfhub/groupchat/core"
)

// Repository is the group repository interface
type Repository interface {
	Get(ctx context.Context, id string) (core.Group, error)
	Upsert(ctx context.Context, group core.Group) (core.Group, error)
	Count(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new group repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Get returns a group with its mentor and members preloaded
func (r *repository) Get(ctx context.Context, id string) (core.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.Repository.Get")
	defer span.End()

	var group core.Group
	err := r.db.WithContext(ctx).
		Preload("Mentor").
		Preload("Members").
		First(&group, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Group{}, core.NewErrorNotFound()
		}
		span.RecordError(err)
		return core.Group{}, errors.Wrap(err, "failed to get group")
	}

	return group, nil
}

// Upsert saves a group row
func (r *repository) Upsert(ctx context.Context, group core.Group) (core.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.Repository.Upsert")
	defer span.End()

	err := r.db.WithContext(ctx).Save(&group).Error
	if err != nil {
		span.RecordError(err)
		return core.Group{}, errors.Wrap(err, "failed to upsert group")
	}

	return group, nil
}

// Count returns the number of groups
func (r *repository) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Group.Repository.Count")
	defer span.End()

	var count int64
	err := r.db.WithContext(ctx).Model(&core.Group{}).Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(err, "failed to count groups")
	}

	return count, nil
}

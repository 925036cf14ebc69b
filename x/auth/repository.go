package auth

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/btfhub/groupchat/core"
)

// Repository resolves user rows for token subjects
type Repository interface {
	GetUser(ctx context.Context, id uint) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new auth repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetUser(ctx context.Context, id uint) (core.User, error) {
	ctx, span := tracer.Start(ctx, "Auth.Repository.GetUser")
	defer span.End()

	var user core.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.User{}, core.NewErrorNotFound()
		}
		span.RecordError(err)
		return core.User{}, errors.Wrap(err, "failed to get user")
	}

	return user, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	ctx, span := tracer.Start(ctx, "Auth.Repository.GetUserByEmail")
	defer span.End()

	var user core.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.User{}, core.NewErrorNotFound()
		}
		span.RecordError(err)
		return core.User{}, errors.Wrap(err, "failed to get user")
	}

	return user, nil
}

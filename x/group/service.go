package group

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/btfhub/groupchat/core"
)

var tracer = otel.Tracer("group")

// Service is the interface for the group service
type Service interface {
	Get(ctx context.Context, id string) (core.Group, error)
	Upsert(ctx context.Context, group core.Group) (core.Group, error)
	Count(ctx context.Context) (int64, error)
}

type service struct {
	repository Repository
}

// NewService creates a new group service
func NewService(repository Repository) Service {
	return &service{repository: repository}
}

// Get returns a group snapshot with mentor and membership loaded.
// Callers must fetch a fresh snapshot per authorization decision.
func (s *service) Get(ctx context.Context, id string) (core.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.Service.Get")
	defer span.End()

	return s.repository.Get(ctx, id)
}

// Upsert saves a group
func (s *service) Upsert(ctx context.Context, group core.Group) (core.Group, error) {
	ctx, span := tracer.Start(ctx, "Group.Service.Upsert")
	defer span.End()

	return s.repository.Upsert(ctx, group)
}

// Count returns the number of groups
func (s *service) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Group.Service.Count")
	defer span.End()

	return s.repository.Count(ctx)
}

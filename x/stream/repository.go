// Package stream fans chat events out to live subscribers through
// redis pub/sub.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/btfhub/groupchat/core"
)

// Repository is the stream repository interface
type Repository interface {
	PublishEvent(ctx context.Context, channel string, event core.ChatEvent) error
	Subscribe(ctx context.Context, channels []string, event chan<- core.ChatEvent) error
}

type repository struct {
	rdb *redis.Client
}

// NewRepository creates a new stream repository
func NewRepository(rdb *redis.Client) Repository {
	return &repository{rdb: rdb}
}

// PublishEvent sends an event to a group channel. Publish failures are
// logged and swallowed; a broken fan-out must not fail the write that
// triggered it.
func (r *repository) PublishEvent(ctx context.Context, channel string, event core.ChatEvent) error {
	ctx, span := tracer.Start(ctx, "Stream.Repository.PublishEvent")
	defer span.End()

	jsonstr, _ := json.Marshal(event)

	err := r.rdb.Publish(context.Background(), channel, jsonstr).Err()
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(
			ctx, "fail to publish event to Redis",
			slog.String("error", err.Error()),
			slog.String("module", "stream"),
		)
	}

	return nil
}

// Subscribe forwards events from the given channels until ctx is done.
// Events from a single channel arrive in publish order.
func (r *repository) Subscribe(ctx context.Context, channels []string, event chan<- core.ChatEvent) error {

	if len(channels) == 0 {
		return nil
	}

	pubsub := r.rdb.Subscribe(ctx, channels...)
	defer pubsub.Close()

	psch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-psch:
			if msg == nil {
				// the pub/sub channel closes when the connection drops
				return nil
			}
			var item core.ChatEvent
			err := json.Unmarshal([]byte(msg.Payload), &item)
			if err != nil {
				slog.Error(
					"failed to unmarshal event",
					slog.String("error", err.Error()),
					slog.String("module", "stream"),
				)
				continue
			}
			select {
			case event <- item:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

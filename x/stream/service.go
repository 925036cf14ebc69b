package stream

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/btfhub/groupchat/core"
)

var tracer = otel.Tracer("stream")

// ChannelPrefix is prepended to a group ID to form its pub/sub channel
const ChannelPrefix = "group_chat_"

// ChannelName returns the pub/sub channel for a group
func ChannelName(groupID string) string {
	return ChannelPrefix + groupID
}

// Service is the stream service interface
type Service interface {
	Publish(ctx context.Context, groupID string, eventType string, authorID uint, payload json.RawMessage, moderatorPayload json.RawMessage)
	Realtime(ctx context.Context, request <-chan []string, response chan<- core.ChatEvent)
	UpdateMetrics()
}

type service struct {
	repository    Repository
	socketCounter int64
}

// NewService creates a new stream service
func NewService(repository Repository) Service {
	return &service{repository: repository}
}

// Publish broadcasts a chat event to a group's channel. Both payload
// classes ride in one event so each connection can pick the projection
// its viewer is entitled to.
func (s *service) Publish(ctx context.Context, groupID string, eventType string, authorID uint, payload json.RawMessage, moderatorPayload json.RawMessage) {
	ctx, span := tracer.Start(ctx, "Stream.Service.Publish")
	defer span.End()

	s.repository.PublishEvent(ctx, ChannelName(groupID), core.ChatEvent{
		GroupID:          groupID,
		Type:             eventType,
		AuthorID:         authorID,
		Payload:          payload,
		ModeratorPayload: moderatorPayload,
	})
}

// Realtime serves one socket connection. Each slice received on
// request replaces the active subscription set; matching events are
// forwarded to response until ctx is done.
func (s *service) Realtime(ctx context.Context, request <-chan []string, response chan<- core.ChatEvent) {

	atomic.AddInt64(&s.socketCounter, 1)
	defer atomic.AddInt64(&s.socketCounter, -1)

	var cancel context.CancelFunc
	events := make(chan core.ChatEvent)

	for {
		select {
		case groups := <-request:
			if cancel != nil {
				cancel()
			}

			channels := make([]string, 0, len(groups))
			for _, groupID := range groups {
				channels = append(channels, ChannelName(groupID))
			}

			var subctx context.Context
			subctx, cancel = context.WithCancel(ctx)
			go s.repository.Subscribe(subctx, channels, events)
		case event := <-events:
			select {
			case response <- event:
			case <-ctx.Done():
				if cancel != nil {
					cancel()
				}
				return
			}
		case <-ctx.Done():
			if cancel != nil {
				cancel()
			}
			return
		}
	}
}

var realtimeConnectionMetrics prometheus.Gauge

// UpdateMetrics refreshes the realtime connection gauge
func (s *service) UpdateMetrics() {

	if realtimeConnectionMetrics == nil {
		realtimeConnectionMetrics = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "groupchat_realtime_connections",
				Help: "Number of realtime connections",
			},
		)
		prometheus.MustRegister(realtimeConnectionMetrics)
	}

	realtimeConnectionMetrics.Set(float64(atomic.LoadInt64(&s.socketCounter)))
}

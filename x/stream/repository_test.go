package stream

import (
	"context"
	"encoding/json"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/btfhub/groupchat/core"
	"github.com/btfhub/groupchat/internal/testutil"
)

var ctx = context.Background()

func TestRepository(t *testing.T) {

	log.Println("Test Start")

	var cleanup_rdb func()
	rdb, cleanup_rdb := testutil.CreateRDB()
	defer cleanup_rdb()

	repo := NewRepository(rdb)

	subctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan core.ChatEvent, 16)
	go repo.Subscribe(subctx, []string{ChannelName("team-1")}, events)

	// the subscriber needs a moment to register before we publish
	time.Sleep(100 * time.Millisecond)

	payload, _ := json.Marshal(map[string]any{"id": 1, "text": "first"})
	for i := 0; i < 5; i++ {
		body, _ := json.Marshal(map[string]any{"seq": i})
		err := repo.PublishEvent(ctx, ChannelName("team-1"), core.ChatEvent{
			GroupID:          "team-1",
			Type:             core.EventMessageCreated,
			AuthorID:         2,
			Payload:          body,
			ModeratorPayload: body,
		})
		assert.NoError(t, err)
	}

	// events arrive in publish order
	for i := 0; i < 5; i++ {
		select {
		case event := <-events:
			assert.Equal(t, "team-1", event.GroupID)
			assert.Equal(t, core.EventMessageCreated, event.Type)
			var body map[string]any
			assert.NoError(t, json.Unmarshal(event.Payload, &body))
			assert.Equal(t, float64(i), body["seq"])
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	// events on other channels are not delivered
	err := repo.PublishEvent(ctx, ChannelName("team-2"), core.ChatEvent{
		GroupID:  "team-2",
		Type:     core.EventMessageCreated,
		AuthorID: 2,
		Payload:  payload,
	})
	assert.NoError(t, err)

	select {
	case event := <-events:
		t.Fatalf("unexpected event from channel %s", event.GroupID)
	case <-time.After(500 * time.Millisecond):
	}

	// publishing to a channel nobody subscribes to still succeeds
	err = repo.PublishEvent(ctx, ChannelName("team-3"), core.ChatEvent{
		GroupID: "team-3",
		Type:    core.EventMessageDeleted,
	})
	assert.NoError(t, err)
}

func TestRealtimeForwarding(t *testing.T) {

	var cleanup_rdb func()
	rdb, cleanup_rdb := testutil.CreateRDB()
	defer cleanup_rdb()

	repo := NewRepository(rdb)
	svc := NewService(repo)

	subctx, cancel := context.WithCancel(ctx)
	defer cancel()

	request := make(chan []string)
	response := make(chan core.ChatEvent, 16)
	go svc.Realtime(subctx, request, response)

	request <- []string{"team-9"}
	time.Sleep(100 * time.Millisecond)

	body, _ := json.Marshal(map[string]any{"text": "hi"})
	svc.Publish(ctx, "team-9", core.EventMessageCreated, 7, body, body)

	select {
	case event := <-response:
		assert.Equal(t, "team-9", event.GroupID)
		assert.Equal(t, uint(7), event.AuthorID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}
}

package socket

import (
	"context"
	"encoding/json"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/btfhub/groupchat/core"
	"github.com/btfhub/groupchat/internal/testutil"
	"github.com/btfhub/groupchat/x/auth"
	"github.com/btfhub/groupchat/x/group"
	"github.com/btfhub/groupchat/x/message"
	"github.com/btfhub/groupchat/x/stream"
)

var ctx = context.Background()
var db *gorm.DB
var server *httptest.Server
var authService auth.Service
var messageService message.Service

var config = core.Config{
	Auth: core.Auth{
		Secret:        "unittest-secret",
		Issuer:        "groupchat",
		ExpireMinutes: 60,
	},
}

func TestMain(m *testing.M) {
	log.Println("Test Start")

	var cleanup_db func()
	db, cleanup_db = testutil.CreateDB()
	defer cleanup_db()

	var cleanup_rdb func()
	rdb, cleanup_rdb := testutil.CreateRDB()
	defer cleanup_rdb()

	db.Create(&core.User{ID: 1, Email: "mentor@example.com", FirstName: "Mary", LastName: "Mentor", Role: core.RoleMentor})
	db.Create(&core.User{ID: 2, Email: "alice@example.com", FirstName: "Alice", LastName: "Adams"})
	db.Create(&core.User{ID: 3, Email: "bob@example.com", FirstName: "Bob", LastName: "Brown"})
	db.Create(&core.User{ID: 4, Email: "eve@example.com", FirstName: "Eve", LastName: "Evans"})

	mentorID := uint(1)
	db.Create(&core.Group{ID: "team-1", Name: "Team One", MentorID: &mentorID})
	db.Create(&core.GroupMember{GroupID: "team-1", UserID: 2})
	db.Create(&core.GroupMember{GroupID: "team-1", UserID: 3})

	authService = auth.NewService(auth.NewRepository(db), config)
	groupService := group.NewService(group.NewRepository(db))
	streamService := stream.NewService(stream.NewRepository(rdb))
	messageService = message.NewService(message.NewRepository(db), groupService, streamService)

	handler := NewHandler(authService, groupService, messageService, streamService)

	e := echo.New()
	e.GET("/groups/:id/socket", handler.Connect)
	server = httptest.NewServer(e)
	defer server.Close()

	m.Run()

	log.Println("Test End")
}

func wsURL(path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func tokenFor(t *testing.T, userID uint) string {
	token, err := authService.IssueToken(ctx, core.User{ID: userID})
	assert.NoError(t, err)
	return token
}

func dial(t *testing.T, userID uint, groupID string) *websocket.Conn {
	ws, _, err := websocket.DefaultDialer.Dial(
		wsURL("/groups/"+groupID+"/socket?token="+tokenFor(t, userID)), nil)
	assert.NoError(t, err)

	frame := readFrame(t, ws)
	assert.Equal(t, "connection.established", frame.Type)
	assert.Equal(t, groupID, frame.GroupID)

	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) outboundFrame {
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame outboundFrame
	err := ws.ReadJSON(&frame)
	assert.NoError(t, err)
	return frame
}

func readCloseCode(t *testing.T, ws *websocket.Conn) int {
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := ws.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected close error, got %v", err)
	}
	return closeErr.Code
}

func TestHandshakeRejections(t *testing.T) {
	// no token
	ws, _, err := websocket.DefaultDialer.Dial(wsURL("/groups/team-1/socket"), nil)
	assert.NoError(t, err)
	assert.Equal(t, CloseUnauthenticated, readCloseCode(t, ws))
	ws.Close()

	// garbage token
	ws, _, err = websocket.DefaultDialer.Dial(wsURL("/groups/team-1/socket?token=garbage"), nil)
	assert.NoError(t, err)
	assert.Equal(t, CloseUnauthenticated, readCloseCode(t, ws))
	ws.Close()

	// unknown group
	ws, _, err = websocket.DefaultDialer.Dial(wsURL("/groups/no-such-team/socket?token=" + tokenFor(t, 2)), nil)
	assert.NoError(t, err)
	assert.Equal(t, CloseNotFound, readCloseCode(t, ws))
	ws.Close()

	// authenticated non-member
	ws, _, err = websocket.DefaultDialer.Dial(wsURL("/groups/team-1/socket?token=" + tokenFor(t, 4)), nil)
	assert.NoError(t, err)
	assert.Equal(t, CloseForbidden, readCloseCode(t, ws))
	ws.Close()
}

func TestSendMessageBroadcast(t *testing.T) {
	alice := dial(t, 2, "team-1")
	defer alice.Close()
	bob := dial(t, 3, "team-1")
	defer bob.Close()

	// subscriptions take a moment to register on the broker
	time.Sleep(200 * time.Millisecond)

	err := alice.WriteJSON(map[string]any{"action": "send_message", "text": "hello over the wire"})
	assert.NoError(t, err)

	for _, ws := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, ws)
		assert.Equal(t, core.EventMessageCreated, frame.Type)
		assert.Equal(t, "team-1", frame.GroupID)

		var wire map[string]any
		assert.NoError(t, json.Unmarshal(frame.Payload, &wire))
		assert.Equal(t, "hello over the wire", wire["text"])
	}

	// exactly once per connection
	bob.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var extra outboundFrame
	assert.Error(t, bob.ReadJSON(&extra))
}

func TestPingPongNotBroadcast(t *testing.T) {
	alice := dial(t, 2, "team-1")
	defer alice.Close()
	bob := dial(t, 3, "team-1")
	defer bob.Close()

	time.Sleep(200 * time.Millisecond)

	err := alice.WriteJSON(map[string]any{"action": "ping"})
	assert.NoError(t, err)

	frame := readFrame(t, alice)
	assert.Equal(t, "pong", frame.Type)

	bob.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var extra outboundFrame
	assert.Error(t, bob.ReadJSON(&extra))
}

func TestUnknownActionErrorFrameKeepsSessionAlive(t *testing.T) {
	alice := dial(t, 2, "team-1")
	defer alice.Close()

	err := alice.WriteJSON(map[string]any{"action": "dance"})
	assert.NoError(t, err)

	frame := readFrame(t, alice)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "unknown action", frame.Error)

	// session still usable afterwards
	err = alice.WriteJSON(map[string]any{"action": "ping"})
	assert.NoError(t, err)
	frame = readFrame(t, alice)
	assert.Equal(t, "pong", frame.Type)
}

func TestEmptyMessageErrorFrame(t *testing.T) {
	alice := dial(t, 2, "team-1")
	defer alice.Close()

	err := alice.WriteJSON(map[string]any{"action": "send_message", "text": "   "})
	assert.NoError(t, err)

	frame := readFrame(t, alice)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "Message text or attachments are required.", frame.Error)
}

func TestModerationEventRedactedPerViewerClass(t *testing.T) {
	mentor := dial(t, 1, "team-1")
	defer mentor.Close()
	bob := dial(t, 3, "team-1")
	defer bob.Close()

	time.Sleep(200 * time.Millisecond)

	created, err := messageService.Create(ctx,
		core.Identity{UserID: 2, Role: core.RoleStudent, IsAuthenticated: true},
		"team-1", message.PostRequest{Text: "soon to be rejected"})
	assert.NoError(t, err)

	for _, ws := range []*websocket.Conn{mentor, bob} {
		frame := readFrame(t, ws)
		assert.Equal(t, core.EventMessageCreated, frame.Type)
	}

	status := string(core.ModerationRejected)
	_, err = messageService.Moderate(ctx,
		core.Identity{UserID: 1, Role: core.RoleMentor, IsAuthenticated: true},
		"team-1", created.ID, message.ModerationRequest{Status: &status})
	assert.NoError(t, err)

	// the mentor's connection carries the unredacted projection
	frame := readFrame(t, mentor)
	assert.Equal(t, core.EventMessageUpdated, frame.Type)
	var mentorWire map[string]any
	assert.NoError(t, json.Unmarshal(frame.Payload, &mentorWire))
	assert.Equal(t, "soon to be rejected", mentorWire["text"])
	assert.Equal(t, true, mentorWire["isDeleted"])

	// bob is neither moderator nor author and gets the placeholder
	frame = readFrame(t, bob)
	assert.Equal(t, core.EventMessageUpdated, frame.Type)
	var bobWire map[string]any
	assert.NoError(t, json.Unmarshal(frame.Payload, &bobWire))
	assert.Equal(t, message.ContentUnavailable, bobWire["text"])
	assert.Equal(t, true, bobWire["isDeleted"])
}

// Package socket handles the websocket connection surface for group
// chat: handshake authorization, inbound frames and event fan-out.
package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel"

	"github.com/btfhub/groupchat/core"
	"github.com/btfhub/groupchat/x/auth"
	"github.com/btfhub/groupchat/x/group"
	"github.com/btfhub/groupchat/x/message"
	"github.com/btfhub/groupchat/x/policy"
	"github.com/btfhub/groupchat/x/stream"
)

var tracer = otel.Tracer("socket")

// Handler handles websocket connections
type Handler interface {
	Connect(c echo.Context) error
}

type handler struct {
	auth    auth.Service
	group   group.Service
	message message.Service
	stream  stream.Service
}

// NewHandler creates a new handler
func NewHandler(auth auth.Service, group group.Service, message message.Service, stream stream.Service) Handler {
	return &handler{
		auth:    auth,
		group:   group,
		message: message,
		stream:  stream,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// connection is the per-socket state. The write mutex serializes the
// event forwarder and the read loop's direct replies onto one socket.
type connection struct {
	id        string
	ws        *websocket.Conn
	mutex     sync.Mutex
	token     string
	identity  core.Identity
	groupID   string
	moderator bool
}

func (conn *connection) send(frame outboundFrame) error {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	return conn.ws.WriteJSON(frame)
}

func (conn *connection) sendError(message string, detail string) {
	conn.send(outboundFrame{Type: "error", Error: message, Detail: detail})
}

// Connect authorizes and serves one websocket connection to a group.
// Refused handshakes close with 4401 (unauthenticated), 4404 (group
// not found) or 4403 (not a member).
func (h handler) Connect(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Socket.Handler.Connect")
	defer span.End()

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer ws.Close()

	conn := &connection{
		id: xid.New().String(),
		ws: ws,
	}

	conn.token = auth.TokenFromRequest(c.Request())
	identity, err := h.auth.ValidateToken(ctx, conn.token)
	if err != nil || !identity.IsAuthenticated {
		closeWith(ws, CloseUnauthenticated, "authentication required")
		return nil
	}
	conn.identity = identity
	conn.groupID = c.Param("id")

	grp, err := h.group.Get(ctx, conn.groupID)
	if err != nil {
		closeWith(ws, CloseNotFound, "group not found")
		return nil
	}
	if !policy.CanReadGroup(identity, grp) {
		closeWith(ws, CloseForbidden, "not a member of this group")
		return nil
	}

	// Moderator standing is fixed for the connection's lifetime; a
	// role change takes effect on reconnect.
	conn.moderator = policy.CanModerateGroup(identity, grp)

	slog.InfoContext(
		ctx, "socket connected",
		slog.String("connection", conn.id),
		slog.String("group", conn.groupID),
		slog.String("module", "socket"),
	)

	connctx, cancel := context.WithCancel(context.Background())
	var teardown sync.Once
	shutdown := func() {
		teardown.Do(func() {
			cancel()
			ws.Close()
		})
	}
	defer shutdown()

	request := make(chan []string)
	response := make(chan core.ChatEvent)
	go h.stream.Realtime(connctx, request, response)

	go func() {
		for {
			select {
			case <-connctx.Done():
				return
			case event := <-response:
				if err := conn.forward(event); err != nil {
					shutdown()
					return
				}
			}
		}
	}()

	select {
	case request <- []string{conn.groupID}:
	case <-connctx.Done():
		return nil
	}

	conn.send(outboundFrame{Type: "connection.established", GroupID: conn.groupID})

	h.readLoop(connctx, conn)

	slog.InfoContext(
		ctx, "socket disconnected",
		slog.String("connection", conn.id),
		slog.String("group", conn.groupID),
		slog.String("module", "socket"),
	)

	return nil
}

// forward relays one event, picking the payload class the viewer is
// entitled to. Moderators and the event's author get the unredacted
// projection; everyone else the public one.
func (conn *connection) forward(event core.ChatEvent) error {
	payload := event.Payload
	if conn.moderator || event.AuthorID == conn.identity.UserID {
		payload = event.ModeratorPayload
	}
	return conn.send(outboundFrame{
		Type:    event.Type,
		GroupID: event.GroupID,
		Payload: payload,
	})
}

// readLoop consumes inbound frames until the socket closes. Frame
// errors are reported as error frames; only a transport failure ends
// the connection.
func (h handler) readLoop(ctx context.Context, conn *connection) {
	for {
		var frame inboundFrame
		if err := conn.ws.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.kind() {
		case "send_message":
			h.handleSend(ctx, conn, frame)
		case "ping":
			conn.send(outboundFrame{Type: "pong"})
		default:
			conn.sendError("unknown action", frame.kind())
		}
	}
}

// handleSend revalidates the connection's token before every write so
// an expired session cannot keep posting through a live socket.
func (h handler) handleSend(ctx context.Context, conn *connection, frame inboundFrame) {
	ctx, span := tracer.Start(ctx, "Socket.Handler.HandleSend")
	defer span.End()

	identity, err := h.auth.ValidateToken(ctx, conn.token)
	if err != nil || !identity.IsAuthenticated {
		conn.sendError("authentication expired", "")
		return
	}

	request := message.PostRequest{Text: frame.Text}
	if len(frame.Attachments) > 0 {
		if err := json.Unmarshal(frame.Attachments, &request.Attachments); err != nil {
			conn.sendError("invalid attachments", "")
			return
		}
	}

	_, err = h.message.Create(ctx, identity, conn.groupID, request)
	if err != nil {
		span.RecordError(err)
		conn.sendError(errorMessage(err), "")
		return
	}
}

func errorMessage(err error) string {
	switch typed := err.(type) {
	case core.ErrorValidation:
		return typed.FirstMessage()
	case core.ErrorPermissionDenied:
		return "You do not have access to this group."
	case core.ErrorNotFound:
		return "Not found."
	case core.ErrorUnauthenticated:
		return "Authentication required."
	default:
		return "Internal error."
	}
}

func closeWith(ws *websocket.Conn, code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	ws.WriteMessage(websocket.CloseMessage, message)
	ws.Close()
}

// Package message implements group chat message storage, projection
// and the synchronous HTTP surface.
package message

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/btfhub/groupchat/core"
	"github.com/btfhub/groupchat/x/auth"
)

// Handler is the interface for handling HTTP requests
type Handler interface {
	List(c echo.Context) error
	Post(c echo.Context) error
	Moderate(c echo.Context) error
	Delete(c echo.Context) error
}

type handler struct {
	service Service
}

// NewHandler creates a new handler
func NewHandler(service Service) Handler {
	return &handler{service: service}
}

// List returns one page of a group's message history
func (h handler) List(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Message.Handler.List")
	defer span.End()

	requester := auth.IdentityFromContext(c)
	groupID := c.Param("id")

	var before *time.Time
	if raw := c.QueryParam("before"); raw != "" {
		parsed, err := parseTimestamp(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid before timestamp."})
		}
		before = &parsed
	}

	limit := defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Limit must be an integer."})
		}
		limit = parsed
	}

	messages, hasMore, err := h.service.List(ctx, requester, groupID, before, limit)
	if err != nil {
		span.RecordError(err)
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, listResponse{Messages: messages, HasMore: hasMore})
}

// Post creates a new message in a group
func (h handler) Post(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Message.Handler.Post")
	defer span.End()

	requester := auth.IdentityFromContext(c)
	groupID := c.Param("id")

	var request PostRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid payload."})
	}

	created, err := h.service.Create(ctx, requester, groupID, request)
	if err != nil {
		span.RecordError(err)
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, created)
}

// Moderate applies a moderation update to a message
func (h handler) Moderate(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Message.Handler.Moderate")
	defer span.End()

	requester := auth.IdentityFromContext(c)
	groupID := c.Param("id")
	messageID, err := strconv.ParseUint(c.Param("message"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Message not found."})
	}

	var request ModerationRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid payload."})
	}

	updated, err := h.service.Moderate(ctx, requester, groupID, uint(messageID), request)
	if err != nil {
		span.RecordError(err)
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, updated)
}

// Delete soft-deletes a message
func (h handler) Delete(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Message.Handler.Delete")
	defer span.End()

	requester := auth.IdentityFromContext(c)
	groupID := c.Param("id")
	messageID, err := strconv.ParseUint(c.Param("message"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Message not found."})
	}

	deleted, err := h.service.Delete(ctx, requester, groupID, uint(messageID))
	if err != nil {
		span.RecordError(err)
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, deleted)
}

// parseTimestamp accepts RFC3339 with or without a timezone suffix
func parseTimestamp(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02T15:04:05", raw)
}

func errorResponse(c echo.Context, err error) error {
	switch typed := err.(type) {
	case core.ErrorValidation:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": typed.FirstMessage()})
	case core.ErrorUnauthenticated:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required."})
	case core.ErrorPermissionDenied:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "You do not have access to this group."})
	case core.ErrorNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Not found."})
	default:
		return err
	}
}

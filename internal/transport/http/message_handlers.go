package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/blacksmithop/chatconnect-server/internal/core"
	"github.com/blacksmithop/chatconnect-server/internal/proto"
	"github.com/blacksmithop/chatconnect-server/internal/store"
)

// MessageHandlers persists chat messages and fans them out to connected
// clients.
type MessageHandlers struct {
	store store.Store
	bc    *core.Broadcaster
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, bc *core.Broadcaster, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		bc:    bc,
		log:   logger,
	}
}

// CreateMessageRequest represents the message creation body.
type CreateMessageRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"createdAt"`
}

// Create persists a message and broadcasts it to everyone online. The sender
// receives it too; clients render their own echo from the event.
// POST /api/messages
func (h *MessageHandlers) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.store.CreateMessage(c.Request.Context(), uid, req.Body)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to persist message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if err := h.store.TouchLastSeen(c.Request.Context(), uid); err != nil {
		h.log.Warn().Err(err).Int64("user_id", uid).Msg("failed to touch last_seen")
	}

	h.bc.BroadcastEvent(proto.EventMessage, proto.MessageData{
		ID:        msg.ID,
		Nickname:  msg.Nickname,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt.Unix(),
	}, 0)

	c.JSON(http.StatusCreated, MessageResponse{
		ID:        msg.ID,
		Nickname:  msg.Nickname,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt.Unix(),
	})
}

// List returns recent messages, newest first.
// GET /api/messages?limit=50
func (h *MessageHandlers) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}

	messages, err := h.store.RecentMessages(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, MessageResponse{
			ID:        m.ID,
			Nickname:  m.Nickname,
			Body:      m.Body,
			CreatedAt: m.CreatedAt.Unix(),
		})
	}

	c.JSON(http.StatusOK, response)
}

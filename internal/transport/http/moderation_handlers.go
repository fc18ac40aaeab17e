package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/blacksmithop/chatconnect-server/internal/core"
	"github.com/blacksmithop/chatconnect-server/internal/proto"
	"github.com/blacksmithop/chatconnect-server/internal/store"
)

// ModerationHandlers records moderation actions and announces them.
type ModerationHandlers struct {
	store store.Store
	bc    *core.Broadcaster
	log   *zerolog.Logger
}

// NewModerationHandlers creates a new moderation handlers instance.
func NewModerationHandlers(st store.Store, bc *core.Broadcaster, logger *zerolog.Logger) *ModerationHandlers {
	return &ModerationHandlers{
		store: st,
		bc:    bc,
		log:   logger,
	}
}

// ModerationRequest represents a moderation action body.
type ModerationRequest struct {
	Action     string `json:"action" binding:"required"`
	TargetUser string `json:"targetUser" binding:"required"`
	Reason     string `json:"reason"`
}

// Create writes one entry to the moderation log and broadcasts the action.
// Requires the Moderator or Admin role.
// POST /api/moderation
func (h *ModerationHandlers) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	moderator, err := h.store.GetUserByID(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load moderator")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !moderator.HasRole(store.RoleModerator) && !moderator.HasRole(store.RoleAdmin) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "insufficient role"})
		return
	}

	var req ModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	target, err := h.store.GetUserByNickname(c.Request.Context(), req.TargetUser)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "target user not found"})
		return
	}

	entry, err := h.store.CreateModerationEntry(c.Request.Context(), req.Action, target.ID, moderator.ID, req.Reason)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to write moderation entry")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.bc.BroadcastEvent(proto.EventModeration, proto.ModerationData{
		Action:     entry.Action,
		TargetUser: target.Nickname,
		Moderator:  moderator.Nickname,
		Reason:     entry.Reason,
	}, 0)

	h.log.Info().
		Str("action", entry.Action).
		Str("target", target.Nickname).
		Str("moderator", moderator.Nickname).
		Msg("moderation action recorded")

	c.JSON(http.StatusCreated, gin.H{"id": entry.ID})
}

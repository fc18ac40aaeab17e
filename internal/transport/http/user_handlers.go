package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/blacksmithop/chatconnect-server/internal/core"
	"github.com/blacksmithop/chatconnect-server/internal/store"
)

// UserHandlers provides HTTP handlers for user and presence endpoints.
type UserHandlers struct {
	reg   *core.Registry
	store store.Store
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(reg *core.Registry, st store.Store, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		reg:   reg,
		store: st,
		log:   logger,
	}
}

// OnlineUserResponse is one entry of the presence snapshot.
type OnlineUserResponse struct {
	ID       int64    `json:"id"`
	Nickname string   `json:"nickname"`
	AgeGroup string   `json:"ageGroup"`
	Avatar   string   `json:"avatar"`
	Roles    []string `json:"roles"`
	Status   string   `json:"status"`
}

// UserResponse is the durable user record in API responses.
type UserResponse struct {
	ID       int64    `json:"id"`
	Nickname string   `json:"nickname"`
	AgeGroup string   `json:"ageGroup"`
	Avatar   string   `json:"avatar"`
	Roles    []string `json:"roles"`
	Status   string   `json:"status"`
	IsGuest  bool     `json:"isGuest"`
}

// StatusRequest updates the durable presence status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

var validStatuses = map[string]struct{}{
	store.StatusOnline:    {},
	store.StatusIdle:      {},
	store.StatusBusy:      {},
	store.StatusInvisible: {},
}

// Online returns the ephemeral presence snapshot.
// GET /api/users/online
func (h *UserHandlers) Online(c *gin.Context) {
	identities := h.reg.OnlineIdentities()

	response := make([]OnlineUserResponse, 0, len(identities))
	for _, ident := range identities {
		response = append(response, OnlineUserResponse{
			ID:       ident.ID,
			Nickname: ident.Nickname,
			AgeGroup: ident.AgeGroup,
			Avatar:   ident.Avatar,
			Roles:    ident.Roles,
			Status:   ident.Status,
		})
	}

	c.JSON(http.StatusOK, response)
}

// Me returns the authenticated user's durable record.
// GET /api/users/me
func (h *UserHandlers) Me(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:       user.ID,
		Nickname: user.Nickname,
		AgeGroup: user.AgeGroup,
		Avatar:   user.Avatar,
		Roles:    user.Roles,
		Status:   user.Status,
		IsGuest:  user.IsGuest,
	})
}

// UpdateStatus writes the durable status field. The transient user_status
// event travels over the WebSocket, not through here.
// PUT /api/users/status
func (h *UserHandlers) UpdateStatus(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if _, valid := validStatuses[req.Status]; !valid {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status"})
		return
	}

	if err := h.store.UpdateUserStatus(c.Request.Context(), uid, req.Status); err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to update status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

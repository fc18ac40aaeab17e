package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/blacksmithop/chatconnect-server/internal/auth"
	"github.com/blacksmithop/chatconnect-server/internal/config"
	"github.com/blacksmithop/chatconnect-server/internal/core"
	"github.com/blacksmithop/chatconnect-server/internal/store"
)

// NewServer builds the HTTP server: REST API, WebSocket endpoint, and the
// rate-limited request path.
func NewServer(
	reg *core.Registry,
	bc *core.Broadcaster,
	router *core.Router,
	authService *auth.Service,
	st store.Store,
	cfg config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	limiter := NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	engine.Use(gin.Recovery(), LoggerMiddleware(logger), RateLimitMiddleware(limiter))

	engine.GET("/", rootHandler)
	engine.GET("/health", healthHandler)
	engine.GET("/ws", gin.WrapH(NewWSHandler(reg, bc, router, cfg.MaxMessageBytes, logger)))

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(reg, st, logger)
	messageHandlers := NewMessageHandlers(st, bc, logger)
	moderationHandlers := NewModerationHandlers(st, bc, logger)

	api := engine.Group("/api")
	api.POST("/auth/register", apiHandlers.Register)
	api.POST("/auth/login", apiHandlers.Login)
	api.POST("/auth/guest", apiHandlers.GuestLogin)
	api.GET("/users/online", userHandlers.Online)

	authorized := api.Group("", AuthMiddleware(authService, logger))
	authorized.GET("/users/me", userHandlers.Me)
	authorized.PUT("/users/status", userHandlers.UpdateStatus)
	authorized.POST("/messages", messageHandlers.Create)
	authorized.GET("/messages", messageHandlers.List)
	authorized.POST("/moderation", moderationHandlers.Create)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func rootHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"message": "ChatConnect API is running"})
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "healthy"})
}

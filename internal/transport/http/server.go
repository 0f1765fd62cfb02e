package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/auth"
	"github.com/etensports/chat-server/internal/config"
	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/metrics"
	"github.com/etensports/chat-server/internal/realtime"
)

// Deps are the collaborators the HTTP server routes to.
type Deps struct {
	Hub           *realtime.Hub
	Conversations *core.Conversations
	Auth          *auth.Service
	// Metrics is optional; /metrics is served only when it is set.
	Metrics *metrics.Metrics
}

// NewServer builds an HTTP server with REST and WebSocket routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	apiHandlers := NewAPIHandlers(deps.Auth, deps.Hub, cfg.SessionTTL, cfg.CookieSecure, logger)
	chatHandlers := NewChatHandlers(deps.Conversations, logger)
	sends := newLimiterSet(cfg.MessagesPerSecond, cfg.MessageBurst)
	authRequired := AuthMiddleware(deps.Auth, logger)

	api := router.Group("/api")
	{
		api.POST("/login", apiHandlers.Login)
		api.POST("/login/password", apiHandlers.PasswordLogin)
		api.GET("/presence", apiHandlers.Presence)

		authed := api.Group("", authRequired)
		authed.POST("/logout", apiHandlers.Logout)
		authed.GET("/me", apiHandlers.Me)
		authed.GET("/unread", chatHandlers.Unread)
		authed.GET("/chats/:id", chatHandlers.GetChat)
		authed.POST("/chats/:id/messages", RateLimitMiddleware(sends), chatHandlers.PostMessage)
		authed.POST("/chats/:id/messages/:mid/read", chatHandlers.MarkRead)

		admin := authed.Group("", RequireAdmin())
		admin.GET("/chats", chatHandlers.ListChats)
		admin.DELETE("/chats/:id", chatHandlers.DeleteChat)
		admin.DELETE("/chats/:id/messages/:mid", chatHandlers.DeleteMessage)
	}

	router.GET("/ws", gin.WrapH(NewWSHandler(deps, cfg, logger)))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

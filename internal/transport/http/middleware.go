package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/auth"
	"github.com/etensports/chat-server/internal/core"
)

const (
	// ContextKeyIdentity is the context key for storing the authenticated auth.Identity.
	ContextKeyIdentity = "identity"

	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session"
)

// tokenFromRequest reads a Bearer token, falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware creates a middleware that validates session tokens.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c.Request)
		if token == "" {
			logger.Debug().Msg("missing session token")
			abortWithError(c, http.StatusUnauthorized, core.ErrCodeUnauthorized, "missing session token")
			return
		}

		identity, err := authService.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			abortWithError(c, http.StatusUnauthorized, core.ErrCodeUnauthorized, "invalid token")
			return
		}

		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// RequireAdmin rejects requests from non-admin identities. It must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		if !ok || !identity.Admin {
			abortWithError(c, http.StatusForbidden, core.ErrCodeForbidden, "admin only")
			return
		}
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

func identityFrom(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

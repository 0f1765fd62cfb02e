package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/auth"
	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/realtime"
)

// APIHandlers provides HTTP handlers for session and presence endpoints.
type APIHandlers struct {
	authService  *auth.Service
	store        realtime.Store
	sessionTTL   time.Duration
	cookieSecure bool
	log          *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, st realtime.Store, sessionTTL time.Duration, cookieSecure bool, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService:  authService,
		store:        st,
		sessionTTL:   sessionTTL,
		cookieSecure: cookieSecure,
		log:          logger,
	}
}

// LoginRequest exchanges an identity provider token for a session.
type LoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// PasswordLoginRequest logs the admin in with email and password.
type PasswordLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
	MeResponse
}

// MeResponse describes the current session identity.
type MeResponse struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin"`
}

// PresenceResponse reports the admin presence.
type PresenceResponse struct {
	State core.PresenceState `json:"state"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Login exchanges an identity token for a session.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	token, identity, err := h.authService.Exchange(c.Request.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid identity token", Code: core.ErrCodeUnauthorized})
			return
		}
		h.log.Error().Err(err).Msg("failed to issue session")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, AuthResponse{Token: token, MeResponse: meFrom(identity)})
}

// PasswordLogin handles admin email and password login.
// POST /api/login/password
func (h *APIHandlers) PasswordLogin(c *gin.Context) {
	var req PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid password login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	token, identity, err := h.authService.LoginAdmin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials", Code: core.ErrCodeUnauthorized})
		case errors.Is(err, auth.ErrPasswordLoginDisabled):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "password login disabled", Code: core.ErrCodeForbidden})
		default:
			h.log.Error().Err(err).Msg("failed to login admin")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		}
		return
	}

	h.log.Info().Msg("admin logged in with password")
	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, AuthResponse{Token: token, MeResponse: meFrom(identity)})
}

// Logout clears the session cookie. An admin logout also marks presence offline.
// POST /api/logout
func (h *APIHandlers) Logout(c *gin.Context) {
	identity, _ := identityFrom(c)
	if identity.Admin {
		if err := core.MarkOffline(c.Request.Context(), h.store); err != nil {
			h.log.Warn().Err(err).Msg("failed to mark admin offline on logout")
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", h.cookieSecure, true)
	c.Status(http.StatusNoContent)
}

// Me returns the session identity.
// GET /api/me
func (h *APIHandlers) Me(c *gin.Context) {
	identity, _ := identityFrom(c)
	c.JSON(http.StatusOK, meFrom(identity))
}

// Presence returns the admin presence state.
// GET /api/presence
func (h *APIHandlers) Presence(c *gin.Context) {
	state, err := core.ReadPresence(c.Request.Context(), h.store)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PresenceResponse{State: state})
}

func (h *APIHandlers) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(h.sessionTTL.Seconds()), "/", "", h.cookieSecure, true)
}

func meFrom(id auth.Identity) MeResponse {
	name := id.Name
	if name == "" {
		name = actorFromIdentity(id).Name()
	}
	return MeResponse{UID: id.UID, Name: name, Email: id.Email, Admin: id.Admin}
}

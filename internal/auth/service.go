package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// AdminUID is the uid given to the admin when logging in with a password.
const AdminUID = "admin"

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for identity or session tokens that fail validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrPasswordLoginDisabled is returned when no admin password hash is configured.
	ErrPasswordLoginDisabled = errors.New("password login disabled")
)

// Identity is the resolved user behind a session.
type Identity struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

// Config wires the service to its secrets.
type Config struct {
	JWT               *JWTConfig
	IdentitySecret    []byte
	IdentityIssuer    string
	AdminEmail        string
	AdminPasswordHash string
}

// Service provides authentication operations.
type Service struct {
	cfg Config
	log *zerolog.Logger
}

// NewService creates a new authentication service.
func NewService(cfg Config, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{cfg: cfg, log: logger}
}

// Exchange trades an identity provider token for a session token. The
// identity whose email matches the configured admin email becomes admin.
func (s *Service) Exchange(_ context.Context, identityToken string) (string, Identity, error) {
	claims, err := ValidateIdentityToken(s.cfg.IdentitySecret, s.cfg.IdentityIssuer, identityToken)
	if err != nil {
		s.log.Debug().Err(err).Msg("identity token rejected")
		return "", Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !validUID(claims.Subject) {
		return "", Identity{}, fmt.Errorf("%w: unusable subject %q", ErrInvalidToken, claims.Subject)
	}

	id := Identity{
		UID:   claims.Subject,
		Name:  strings.TrimSpace(claims.Name),
		Email: claims.Email,
		Admin: s.isAdminEmail(claims.Email),
	}
	token, err := GenerateToken(s.cfg.JWT, id)
	if err != nil {
		return "", Identity{}, fmt.Errorf("generate token: %w", err)
	}
	s.log.Info().Str("uid", id.UID).Bool("admin", id.Admin).Msg("session issued")
	return token, id, nil
}

// LoginAdmin validates the admin email and password and returns a session token.
func (s *Service) LoginAdmin(_ context.Context, email, password string) (string, Identity, error) {
	if s.cfg.AdminPasswordHash == "" {
		return "", Identity{}, ErrPasswordLoginDisabled
	}
	if !s.isAdminEmail(email) {
		return "", Identity{}, ErrInvalidCredentials
	}
	if err := ComparePassword(s.cfg.AdminPasswordHash, password); err != nil {
		return "", Identity{}, ErrInvalidCredentials
	}

	id := Identity{UID: AdminUID, Name: "Admin", Email: s.cfg.AdminEmail, Admin: true}
	token, err := GenerateToken(s.cfg.JWT, id)
	if err != nil {
		return "", Identity{}, fmt.Errorf("generate token: %w", err)
	}
	return token, id, nil
}

// ValidateToken validates a session token and returns the identity.
func (s *Service) ValidateToken(tokenString string) (Identity, error) {
	claims, err := ValidateToken(s.cfg.JWT, tokenString)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{UID: claims.UID, Name: claims.Name, Email: claims.Email, Admin: claims.Admin}, nil
}

func (s *Service) isAdminEmail(email string) bool {
	return s.cfg.AdminEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.cfg.AdminEmail)
}

// validUID accepts ids usable as a single store path segment.
func validUID(uid string) bool {
	return uid != "" && !strings.ContainsAny(uid, "/.#$[]")
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the session JWT issued by this service.
type Claims struct {
	UID   string `json:"uid"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// IdentityClaims are read from tokens minted by the identity provider. The
// subject is the stable user id.
type IdentityClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new session token for id.
func GenerateToken(cfg *JWTConfig, id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   id.UID,
		Name:  id.Name,
		Email: id.Email,
		Admin: id.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a session token.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(tokenString, claims, cfg.Secret, cfg.Issuer, cfg.Audience); err != nil {
		return nil, err
	}
	if claims.UID == "" {
		return nil, fmt.Errorf("token has no uid")
	}
	return claims, nil
}

// ValidateIdentityToken parses an identity provider token.
func ValidateIdentityToken(secret []byte, issuer, tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	if err := parse(tokenString, claims, secret, issuer, ""); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("identity token has no subject")
	}
	return claims, nil
}

func parse(tokenString string, claims jwt.Claims, secret []byte, issuer, audience string) error {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token claims")
	}
	return nil
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testIdentitySecret = "identity-secret"

func newTestAuthService(t *testing.T, adminHash string) *Service {
	t.Helper()

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return NewService(Config{
		JWT:               jwtConfig,
		IdentitySecret:    []byte(testIdentitySecret),
		IdentityIssuer:    "idp",
		AdminEmail:        "owner@eten.example",
		AdminPasswordHash: adminHash,
	}, nil)
}

func identityToken(t *testing.T, secret, issuer, subject, email string) string {
	t.Helper()

	claims := IdentityClaims{
		Name:  "Budi",
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign identity token: %v", err)
	}
	return signed
}

func TestExchange_VisitorAndAdmin(t *testing.T) {
	svc := newTestAuthService(t, "")
	ctx := context.Background()

	token, id, err := svc.Exchange(ctx, identityToken(t, testIdentitySecret, "idp", "uid123", "budi@example.com"))
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if id.UID != "uid123" || id.Admin || id.Name != "Budi" {
		t.Fatalf("unexpected identity %+v", id)
	}
	got, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got != id {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, id)
	}

	_, id, err = svc.Exchange(ctx, identityToken(t, testIdentitySecret, "idp", "uid999", "Owner@Eten.example"))
	if err != nil {
		t.Fatalf("Exchange admin: %v", err)
	}
	if !id.Admin {
		t.Fatalf("expected admin identity, got %+v", id)
	}
}

func TestExchange_RejectsBadTokens(t *testing.T) {
	svc := newTestAuthService(t, "")
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", identityToken(t, "other-secret", "idp", "uid1", "")},
		{"wrong issuer", identityToken(t, testIdentitySecret, "elsewhere", "uid1", "")},
		{"no subject", identityToken(t, testIdentitySecret, "idp", "", "")},
		{"path subject", identityToken(t, testIdentitySecret, "idp", "a/b", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Exchange(ctx, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestLoginAdmin(t *testing.T) {
	hash, err := HashPassword("rahasia123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	svc := newTestAuthService(t, hash)
	ctx := context.Background()

	token, id, err := svc.LoginAdmin(ctx, "owner@eten.example", "rahasia123")
	if err != nil {
		t.Fatalf("LoginAdmin: %v", err)
	}
	if !id.Admin || id.UID != AdminUID {
		t.Fatalf("unexpected identity %+v", id)
	}
	if _, err := svc.ValidateToken(token); err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if _, _, err := svc.LoginAdmin(ctx, "owner@eten.example", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.LoginAdmin(ctx, "someone@else", "rahasia123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	disabled := newTestAuthService(t, "")
	if _, _, err := disabled.LoginAdmin(ctx, "owner@eten.example", "rahasia123"); !errors.Is(err, ErrPasswordLoginDisabled) {
		t.Fatalf("expected ErrPasswordLoginDisabled, got %v", err)
	}
}

func TestValidateToken_RejectsExpiredAndForeign(t *testing.T) {
	svc := newTestAuthService(t, "")

	expired := &JWTConfig{Secret: svc.cfg.JWT.Secret, Issuer: "test", Audience: "test", TTL: -time.Minute}
	token, err := GenerateToken(expired, Identity{UID: "u1"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}

	foreign := &JWTConfig{Secret: svc.cfg.JWT.Secret, Issuer: "test", Audience: "other", TTL: time.Hour}
	token, _ = GenerateToken(foreign, Identity{UID: "u1"})
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong audience rejected, got %v", err)
	}
}

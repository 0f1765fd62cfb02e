package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/auth"
	"github.com/etensports/chat-server/internal/config"
	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/metrics"
	"github.com/etensports/chat-server/internal/realtime"
)

const (
	testJWTSecret      = "test-secret"
	testIdentitySecret = "identity-secret"
	testAdminEmail     = "owner@eten.example"
)

type testEnv struct {
	hub    *realtime.Hub
	convs  *core.Conversations
	auth   *auth.Service
	jwt    *auth.JWTConfig
	server *http.Server
	ts     *httptest.Server
}

func testConfig() config.Config {
	return config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		MaxMessageBytes:   1 << 16,
		MaxTextLength:     200,
		MessagesPerSecond: 100,
		MessageBurst:      100,
		JWTSecret:         testJWTSecret,
		JWTIssuer:         "test",
		JWTAudience:       "test",
		SessionTTL:        time.Hour,
		IdentitySecret:    testIdentitySecret,
		AdminEmail:        testAdminEmail,
		WSPingInterval:    time.Second,
		MetricsEnabled:    true,
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	disabledLogger := zerolog.New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(nil, realtime.Options{Logger: &disabledLogger})
	go hub.Run(ctx)

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.SessionTTL,
	}
	authService := auth.NewService(auth.Config{
		JWT:               jwtConfig,
		IdentitySecret:    []byte(cfg.IdentitySecret),
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
	}, &disabledLogger)

	m := metrics.New()
	convs := core.NewConversations(hub, core.ConversationOptions{MaxTextLength: cfg.MaxTextLength, Metrics: m})
	server := NewServer(Deps{Hub: hub, Conversations: convs, Auth: authService, Metrics: m}, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-hub.Done()
	})

	return &testEnv{hub: hub, convs: convs, auth: authService, jwt: jwtConfig, server: server, ts: ts}
}

func (e *testEnv) token(t *testing.T, id auth.Identity) string {
	t.Helper()
	token, err := auth.GenerateToken(e.jwt, id)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func (e *testEnv) visitorToken(t *testing.T, uid string) string {
	return e.token(t, auth.Identity{UID: uid, Name: "Budi"})
}

func (e *testEnv) adminToken(t *testing.T) string {
	return e.token(t, auth.Identity{UID: "admin-uid", Email: testAdminEmail, Admin: true})
}

// do runs a request through the router in-process.
func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(resp, req)
	return resp
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/etensports/chat-server/internal/config"
	"github.com/etensports/chat-server/internal/core"
)

func TestVisitorChatAccess(t *testing.T) {
	env := newTestEnv(t)
	visitor := env.visitorToken(t, "v1")

	resp := env.do(t, http.MethodPost, "/api/chats/v1/messages", visitor, `{"text":"  halo  "}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = env.do(t, http.MethodGet, "/api/chats/v1", visitor, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var list MessagesResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(list.Messages) != 1 || list.Messages[0].Text != "halo" || list.Messages[0].Role != core.RoleVisitor {
		t.Fatalf("unexpected messages %+v", list.Messages)
	}

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/api/chats/v2", "", http.StatusForbidden},
		{http.MethodPost, "/api/chats/v2/messages", `{"text":"hi"}`, http.StatusForbidden},
		{http.MethodGet, "/api/chats", "", http.StatusForbidden},
		{http.MethodDelete, "/api/chats/v1", "", http.StatusForbidden},
		{http.MethodDelete, "/api/chats/v1/messages/x", "", http.StatusForbidden},
		{http.MethodPost, "/api/chats/v1/messages", `{"text":"   "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if resp := env.do(t, tt.method, tt.path, visitor, tt.body); resp.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, resp.Code)
		}
	}
}

func TestEmptyMessageErrorCode(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/chats/v1/messages", env.visitorToken(t, "v1"), `{"text":""}`)
	var errResp ErrorResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &errResp)
	if resp.Code != http.StatusBadRequest || errResp.Code != core.ErrCodeEmptyMessage {
		t.Fatalf("expected empty_message, got %d %+v", resp.Code, errResp)
	}
}

func TestAdminChatManagement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.adminToken(t)

	_, _ = env.convs.AppendMessage(ctx, "A", core.RoleVisitor, "Ani", "a1")
	_, _ = env.convs.AppendMessage(ctx, "A", core.RoleVisitor, "Ani", "a2")
	for i := 0; i < 3; i++ {
		_, _ = env.convs.AppendMessage(ctx, "B", core.RoleVisitor, "Beni", "b")
	}

	resp := env.do(t, http.MethodGet, "/api/chats", admin, "")
	var summaries []core.ConversationSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("failed to unmarshal summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 conversations, got %+v", summaries)
	}

	var unread UnreadResponse
	_ = json.Unmarshal(env.do(t, http.MethodGet, "/api/unread?open=B", admin, "").Body.Bytes(), &unread)
	if unread.Count == nil || *unread.Count != 2 {
		t.Fatalf("expected count 2 with B open, got %+v", unread)
	}
	_ = json.Unmarshal(env.do(t, http.MethodGet, "/api/unread", admin, "").Body.Bytes(), &unread)
	if unread.Count == nil || *unread.Count != 5 {
		t.Fatalf("expected count 5, got %+v", unread)
	}

	resp = env.do(t, http.MethodPost, "/api/chats/A/messages", admin, `{"text":"balasan"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("admin reply: expected 201, got %d", resp.Code)
	}
	msgs, _ := env.convs.List(ctx, "A")
	if last := msgs[len(msgs)-1]; last.Role != core.RoleAdmin || last.DisplayName != core.DefaultAdminName {
		t.Fatalf("unexpected admin reply %+v", last)
	}

	// Admin may not flip read state.
	if resp := env.do(t, http.MethodPost, "/api/chats/A/messages/"+msgs[0].ID+"/read", admin, ""); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin mark read, got %d", resp.Code)
	}

	for i := 0; i < 2; i++ {
		if resp := env.do(t, http.MethodDelete, "/api/chats/A/messages/missing", admin, ""); resp.Code != http.StatusNoContent {
			t.Fatalf("delete missing message: expected 204, got %d", resp.Code)
		}
		if resp := env.do(t, http.MethodDelete, "/api/chats/B", admin, ""); resp.Code != http.StatusNoContent {
			t.Fatalf("delete conversation: expected 204, got %d", resp.Code)
		}
	}
	all, _ := env.convs.ListAll(ctx)
	if _, ok := all["B"]; ok || len(all["A"]) != 3 {
		t.Fatalf("unexpected conversations after deletes %+v", all)
	}
}

func TestVisitorUnreadReplyAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	visitor := env.visitorToken(t, "v1")

	var unread UnreadResponse
	_ = json.Unmarshal(env.do(t, http.MethodGet, "/api/unread", visitor, "").Body.Bytes(), &unread)
	if unread.HasReply == nil || *unread.HasReply {
		t.Fatalf("expected has_reply false, got %+v", unread)
	}

	id, err := env.convs.AppendMessage(ctx, "v1", core.RoleAdmin, core.DefaultAdminName, "halo")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	_ = json.Unmarshal(env.do(t, http.MethodGet, "/api/unread", visitor, "").Body.Bytes(), &unread)
	if unread.HasReply == nil || !*unread.HasReply {
		t.Fatalf("expected has_reply true, got %+v", unread)
	}

	if resp := env.do(t, http.MethodPost, "/api/chats/v2/messages/"+id+"/read", visitor, ""); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on foreign conversation, got %d", resp.Code)
	}
	for i := 0; i < 2; i++ {
		if resp := env.do(t, http.MethodPost, "/api/chats/v1/messages/"+id+"/read", visitor, ""); resp.Code != http.StatusNoContent {
			t.Fatalf("mark read: expected 204, got %d", resp.Code)
		}
	}
	_ = json.Unmarshal(env.do(t, http.MethodGet, "/api/unread", visitor, "").Body.Bytes(), &unread)
	if *unread.HasReply {
		t.Fatalf("expected has_reply false after mark read")
	}
}

func TestMessageRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.MessagesPerSecond = 0.001
		c.MessageBurst = 2
	})
	visitor := env.visitorToken(t, "v1")

	for i := 0; i < 2; i++ {
		if resp := env.do(t, http.MethodPost, "/api/chats/v1/messages", visitor, `{"text":"hi"}`); resp.Code != http.StatusCreated {
			t.Fatalf("send %d: expected 201, got %d", i+1, resp.Code)
		}
	}
	if resp := env.do(t, http.MethodPost, "/api/chats/v1/messages", visitor, `{"text":"hi"}`); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	// Limits are per user.
	if resp := env.do(t, http.MethodPost, "/api/chats/v2/messages", env.visitorToken(t, "v2"), `{"text":"hi"}`); resp.Code != http.StatusCreated {
		t.Fatalf("other visitor: expected 201, got %d", resp.Code)
	}
}

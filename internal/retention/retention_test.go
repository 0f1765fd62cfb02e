package retention

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/realtime"
)

func TestSweepRemovesIdleConversations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := realtime.NewHub(nil, realtime.Options{})
	go hub.Run(ctx)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	convs := core.NewConversations(hub, core.ConversationOptions{Now: func() time.Time { return clock }})

	clock = now.Add(-40 * 24 * time.Hour)
	_, _ = convs.AppendMessage(ctx, "old", core.RoleVisitor, "", "lama")
	_, _ = convs.AppendMessage(ctx, "revived", core.RoleVisitor, "", "lama")
	clock = now.Add(-time.Hour)
	_, _ = convs.AppendMessage(ctx, "fresh", core.RoleVisitor, "", "baru")
	_, _ = convs.AppendMessage(ctx, "revived", core.RoleAdmin, "Admin", "baru")

	sweeper := NewSweeper(convs, 30*24*time.Hour, func() time.Time { return now }, nil)
	removed, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	all, _ := convs.ListAll(ctx)
	if _, ok := all["old"]; ok {
		t.Fatalf("idle conversation kept")
	}
	if len(all["fresh"]) != 1 || len(all["revived"]) != 2 {
		t.Fatalf("active conversations touched: %+v", all)
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	sweeper := NewSweeper(nil, time.Hour, nil, nil)
	if err := sweeper.Start(context.Background(), "every tuesday"); err == nil {
		t.Fatalf("expected parse error")
	}
}

// afterGet runs a write once, right after the first Get returns.
type afterGet struct {
	realtime.Store
	once  sync.Once
	write func()
}

func (s *afterGet) Get(ctx context.Context, path string) (realtime.Snapshot, error) {
	snap, err := s.Store.Get(ctx, path)
	s.once.Do(s.write)
	return snap, err
}

func TestSweepKeepsConversationWrittenDuringSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := realtime.NewHub(nil, realtime.Options{})
	go hub.Run(ctx)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-40 * 24 * time.Hour)
	direct := core.NewConversations(hub, core.ConversationOptions{Now: func() time.Time { return clock }})
	if _, err := direct.AppendMessage(ctx, "v1", core.RoleVisitor, "", "lama"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	store := &afterGet{Store: hub}
	store.write = func() {
		clock = now
		if _, err := direct.AppendMessage(ctx, "v1", core.RoleVisitor, "", "masih di sini"); err != nil {
			t.Errorf("AppendMessage during sweep: %v", err)
		}
	}
	swept := core.NewConversations(store, core.ConversationOptions{})

	sweeper := NewSweeper(swept, 30*24*time.Hour, func() time.Time { return now }, nil)
	removed, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected nothing removed, got %d", removed)
	}

	msgs, err := direct.List(ctx, "v1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected both messages kept, got %+v", msgs)
	}
}

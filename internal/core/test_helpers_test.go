package core

import (
	"context"
	"testing"
	"time"

	"github.com/etensports/chat-server/internal/realtime"
)

func newTestHub(t *testing.T) *realtime.Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(nil, realtime.Options{})
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub
}

func newTestConversations(t *testing.T) (*realtime.Hub, *Conversations) {
	t.Helper()
	hub := newTestHub(t)
	return hub, NewConversations(hub, ConversationOptions{MaxTextLength: 100})
}

func mustView(t *testing.T, ch <-chan View, match func(View) bool) View {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	var last View
	for time.Now().Before(deadline) {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("view channel closed, last view %+v", last)
			}
			last = v
			if match(v) {
				return v
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected view not received, last view %+v", last)
	return View{}
}

func mustMessages(t *testing.T, ch <-chan []Message, match func([]Message) bool) []Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	var last []Message
	for time.Now().Before(deadline) {
		select {
		case msgs := <-ch:
			last = msgs
			if match(msgs) {
				return msgs
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected messages not received, last %+v", last)
	return nil
}

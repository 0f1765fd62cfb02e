package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/etensports/chat-server/internal/store"
)

func startHub(t *testing.T, journal store.Journal, opts Options) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(journal, opts)
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	if err := hub.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return hub
}

func collect(t *testing.T, hub *Hub, path string) <-chan Snapshot {
	t.Helper()

	ch := make(chan Snapshot, 64)
	unsubscribe, err := hub.Subscribe(context.Background(), path, func(s Snapshot) { ch <- s })
	if err != nil {
		t.Fatalf("Subscribe(%q): %v", path, err)
	}
	t.Cleanup(unsubscribe)
	return ch
}

// mustSnapshot waits for a snapshot whose JSON encoding equals want.
func mustSnapshot(t *testing.T, ch <-chan Snapshot, want string) Snapshot {
	t.Helper()

	deadline := time.After(2 * time.Second)
	var last string
	for {
		select {
		case s := <-ch:
			last = string(s.Raw())
			if last == want {
				return s
			}
		case <-deadline:
			t.Fatalf("expected snapshot %s, last seen %s", want, last)
			return Snapshot{}
		}
	}
}

func expectQuiet(t *testing.T, ch <-chan Snapshot) {
	t.Helper()

	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot %s at %s", s.Raw(), s.Path)
	case <-time.After(100 * time.Millisecond):
	}
}

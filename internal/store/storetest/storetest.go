// Package storetest holds behaviour checks shared by every store.Journal implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/etensports/chat-server/internal/store"
)

// Run exercises the Journal contract against journals produced by open.
func Run(t *testing.T, open func(t *testing.T) store.Journal) {
	t.Helper()

	t.Run("PutThenLoadOrdered", func(t *testing.T) {
		j := open(t)
		ctx := context.Background()

		mustPut(t, j, "presence/admin/state", `"online"`)
		mustPut(t, j, "chats/v1/m2", `{"text":"b"}`)
		mustPut(t, j, "chats/v1/m1", `{"text":"a"}`)

		got := paths(t, j)
		want := []string{"chats/v1/m1", "chats/v1/m2", "presence/admin/state"}
		assertPaths(t, got, want)

		entries, err := j.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if string(entries[0].Value) != `{"text":"a"}` {
			t.Fatalf("unexpected value %s", entries[0].Value)
		}
	})

	t.Run("PutReplacesSubtree", func(t *testing.T) {
		j := open(t)

		mustPut(t, j, "chats/v1/m1", `{"text":"a"}`)
		mustPut(t, j, "chats/v1/m1/read", `true`)
		mustPut(t, j, "chats/v1-other/m9", `{"text":"keep"}`)
		mustPut(t, j, "chats/v1", `{"m5":{"text":"fresh"}}`)

		assertPaths(t, paths(t, j), []string{"chats/v1", "chats/v1-other/m9"})
	})

	t.Run("DeleteRemovesSubtreeOnly", func(t *testing.T) {
		j := open(t)
		ctx := context.Background()

		mustPut(t, j, "chats/v1/m1", `{}`)
		mustPut(t, j, "chats/v1/m1/read", `true`)
		mustPut(t, j, "chats/v10/m1", `{}`)
		mustPut(t, j, "chats/v1-x/m1", `{}`)

		if err := j.Delete(ctx, "chats/v1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		assertPaths(t, paths(t, j), []string{"chats/v1-x/m1", "chats/v10/m1"})

		// Missing paths are fine.
		if err := j.Delete(ctx, "chats/ghost"); err != nil {
			t.Fatalf("Delete missing: %v", err)
		}
	})
}

func mustPut(t *testing.T, j store.Journal, path, value string) {
	t.Helper()
	if err := j.Put(context.Background(), path, []byte(value)); err != nil {
		t.Fatalf("Put(%s): %v", path, err)
	}
}

func paths(t *testing.T, j store.Journal) []string {
	t.Helper()
	entries, err := j.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func assertPaths(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("paths = %v, want %v", got, want)
		}
	}
}

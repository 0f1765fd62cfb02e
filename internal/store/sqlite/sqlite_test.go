package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/etensports/chat-server/internal/store"
	"github.com/etensports/chat-server/internal/store/storetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestJournalContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Journal {
		return newTestStore(t)
	})
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Put(ctx, "chats/v1/m1", []byte(`{"text":"hi"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "chats/v1/m1" || string(entries[0].Value) != `{"text":"hi"}` {
		t.Fatalf("unexpected entries after reopen: %+v", entries)
	}
}

package pebble

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/etensports/chat-server/internal/store"
)

// PebbleStore implements store.Journal on a Pebble LSM. Keys are node paths,
// so a subtree is a contiguous key range.
type PebbleStore struct {
	db *pebble.DB
}

// New opens (or creates) a Pebble database at path.
func New(path string) (*PebbleStore, error) {
	return open(path, &pebble.Options{})
}

// NewInMemory opens a Pebble database backed by an in-memory filesystem.
func NewInMemory() (*PebbleStore, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(path string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Put records value at path, replacing its subtree.
func (s *PebbleStore) Put(_ context.Context, path string, value []byte) error {
	if s.db == nil {
		return store.ErrClosed
	}
	lo, hi := store.SubtreeBounds(path)
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange([]byte(lo), []byte(hi), nil); err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}
	if err := b.Set([]byte(path), value, nil); err != nil {
		return fmt.Errorf("set node: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Delete removes path and its descendants.
func (s *PebbleStore) Delete(_ context.Context, path string) error {
	if s.db == nil {
		return store.ErrClosed
	}
	lo, hi := store.SubtreeBounds(path)
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete([]byte(path), nil); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	if err := b.DeleteRange([]byte(lo), []byte(hi), nil); err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Load returns all entries in key order.
func (s *PebbleStore) Load(_ context.Context) ([]store.Entry, error) {
	if s.db == nil {
		return nil, store.ErrClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("new iterator: %w", err)
	}
	defer iter.Close()

	var entries []store.Entry
	for iter.First(); iter.Valid(); iter.Next() {
		entries = append(entries, store.Entry{
			Path:  string(iter.Key()),
			Value: append([]byte(nil), iter.Value()...),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return entries, nil
}

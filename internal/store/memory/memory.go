package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/etensports/chat-server/internal/store"
)

// Journal keeps entries in process memory. State is lost on restart.
type Journal struct {
	mu      sync.Mutex
	entries map[string][]byte
	closed  bool
}

// New creates an empty in-memory journal.
func New() *Journal {
	return &Journal{entries: make(map[string][]byte)}
}

// Put records value at path, replacing its subtree.
func (j *Journal) Put(_ context.Context, path string, value []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return store.ErrClosed
	}
	j.deleteLocked(path)
	j.entries[path] = append([]byte(nil), value...)
	return nil
}

// Delete removes path and its descendants.
func (j *Journal) Delete(_ context.Context, path string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return store.ErrClosed
	}
	j.deleteLocked(path)
	return nil
}

func (j *Journal) deleteLocked(path string) {
	delete(j.entries, path)
	prefix := path + "/"
	for k := range j.entries {
		if strings.HasPrefix(k, prefix) {
			delete(j.entries, k)
		}
	}
}

// Load returns all entries ordered by path.
func (j *Journal) Load(_ context.Context) ([]store.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, store.ErrClosed
	}
	out := make([]store.Entry, 0, len(j.entries))
	for k, v := range j.entries {
		out = append(out, store.Entry{Path: k, Value: append([]byte(nil), v...)})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Path < out[b].Path })
	return out, nil
}

// Close marks the journal closed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

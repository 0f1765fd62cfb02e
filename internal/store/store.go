package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by journals used after Close.
var ErrClosed = errors.New("journal closed")

// Entry is one journaled node: the JSON value written at Path.
type Entry struct {
	Path  string
	Value []byte
}

// Journal durably records realtime tree writes.
//
// Paths are slash-separated. A write at a path supersedes everything
// previously recorded under it, so replaying Load output in path order
// rebuilds the tree.
type Journal interface {
	// Put records value at path, replacing path and all of its descendants.
	Put(ctx context.Context, path string, value []byte) error

	// Delete removes path and all of its descendants. Missing paths are not an error.
	Delete(ctx context.Context, path string) error

	// Load returns every recorded entry ordered by path.
	Load(ctx context.Context) ([]Entry, error)

	// Close releases the underlying storage.
	Close() error
}

// SubtreeBounds returns the half-open key range [lo, hi) covering every
// strict descendant of path. '0' is the byte after '/'.
func SubtreeBounds(path string) (lo, hi string) {
	return path + "/", path + "0"
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/etensports/chat-server/internal/store"
)

// Schema is the journal table layout. path is the full slash-separated node path.
const Schema = `
CREATE TABLE IF NOT EXISTS nodes (
	path       TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Journal for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite journal and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite journal and runs a setup function.
// Useful for tests to apply schema against ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup.
	// SQLite works best with a single connection, and ":memory:" databases
	// are per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put records value at path, replacing its subtree.
func (s *SQLiteStore) Put(ctx context.Context, path string, value []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := deleteSubtree(ctx, tx, path); err != nil {
		return err
	}

	query := `
		INSERT INTO nodes (path, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`
	if _, err := tx.ExecContext(ctx, query, path, value); err != nil {
		return fmt.Errorf("insert node: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes path and its descendants.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := deleteSubtree(ctx, tx, path); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func deleteSubtree(ctx context.Context, tx *sql.Tx, path string) error {
	lo, hi := store.SubtreeBounds(path)
	query := `
		DELETE FROM nodes
		WHERE path = ? OR (path >= ? AND path < ?)
	`
	if _, err := tx.ExecContext(ctx, query, path, lo, hi); err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}
	return nil
}

// Load returns all entries ordered by path.
func (s *SQLiteStore) Load(ctx context.Context) ([]store.Entry, error) {
	query := `
		SELECT path, value FROM nodes
		ORDER BY path ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var entries []store.Entry
	for rows.Next() {
		var e store.Entry
		if err := rows.Scan(&e.Path, &e.Value); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

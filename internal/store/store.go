// Package store persists module preferences in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DefaultQueryTimeout bounds every statement issued through Preferences.
const DefaultQueryTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	scope TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (scope, key)
);`

// Store is a SQLite backed key/value store, partitioned by scope.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path. Use MemoryPath for a
// throwaway store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each in-memory connection has its own database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path given to Open.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored for key in scope, or "" when unset.
func (s *Store) Get(ctx context.Context, scope, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE scope = ? AND key = ?`,
		scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s/%s: %w", scope, key, err)
	}
	return value, nil
}

// Set stores value for key in scope, replacing any previous value.
func (s *Store) Set(ctx context.Context, scope, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", scope, key, err)
	}
	return nil
}

// Scope returns the preferences of one network.
func (s *Store) Scope(scope string) *Preferences {
	return &Preferences{store: s, scope: scope, timeout: DefaultQueryTimeout}
}

// Preferences is a Store view bound to one scope, with the synchronous
// Preference/SetPreference signature the router expects.
type Preferences struct {
	store   *Store
	scope   string
	timeout time.Duration
}

func (p *Preferences) Preference(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.store.Get(ctx, p.scope, key)
}

func (p *Preferences) SetPreference(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.store.Set(ctx, p.scope, key, value)
}

// Package sqlitestore provides a theme.Store backed by a SQLite preference
// table, for hosts that already carry a SQLite database and want their
// preferences in it rather than in a loose file.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omnifex/identity/theme"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store persists preferences in a SQLite table. It implements theme.Store.
type Store struct {
	db    *sql.DB
	owned bool
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the preference table exists. Close releases the connection.
func Open(path string) (*Store, error) {
	const op = "sqlitestore.Open"
	if path == "" {
		return nil, fmt.Errorf("%s: path is empty: %w", op, theme.ErrInvalidParameter)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to open database: %w", op, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: unable to ping database: %w", op, err)
	}
	s := &Store{db: db, owned: true}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// New wraps an existing database connection the caller keeps ownership of,
// ensuring the preference table exists.
func New(db *sql.DB) (*Store, error) {
	const op = "sqlitestore.New"
	if db == nil {
		return nil, fmt.Errorf("%s: db is nil: %w", op, theme.ErrInvalidParameter)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("unable to create preference table: %w", err)
	}
	return nil
}

// Get returns the value for key, or theme.ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	const op = "sqlitestore.Store.Get"
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", theme.ErrNotFound
	case err != nil:
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

// Set stores the value for key, overwriting any previous value.
func (s *Store) Set(key string, value string) error {
	const op = "sqlitestore.Store.Set"
	_, err := s.db.Exec(
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close releases the database connection when the store owns it. Wrapping
// stores created with New leave closing to the caller.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

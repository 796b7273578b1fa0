package theme

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Store.Get for a key with no stored value.
var ErrNotFound = errors.New("not found")

// Store is the durable storage capability a Manager persists its preference
// to. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)

	// Set stores the value for key, overwriting any previous value.
	Set(key string, value string) error
}

// MemoryStore is an in-process Store, suitable for tests and hosts without
// durable storage.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

// Get returns the value for key, or ErrNotFound.
func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores the value for key.
func (s *MemoryStore) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// FileStore is a Store backed by a single JSON file. Writes go through a
// temp file and an atomic rename, so a crash never leaves a torn file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore at path. The file is created on the
// first Set.
func NewFileStore(path string) (*FileStore, error) {
	const op = "theme.NewFileStore"
	if path == "" {
		return nil, fmt.Errorf("%s: path is empty: %w", op, ErrInvalidParameter)
	}
	return &FileStore{path: path}, nil
}

// Get returns the value for key, or ErrNotFound.
func (s *FileStore) Get(key string) (string, error) {
	const op = "theme.FileStore.Get"
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores the value for key.
func (s *FileStore) Set(key string, value string) error {
	const op = "theme.FileStore.Set"
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	values[key] = value

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("%s: unable to encode values: %w", op, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%s: unable to write %s: %w", op, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%s: unable to replace %s: %w", op, s.path, err)
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return map[string]string{}, nil
	case err != nil:
		return nil, fmt.Errorf("unable to read %s: %w", filepath.Base(s.path), err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", filepath.Base(s.path), err)
	}
	return values, nil
}

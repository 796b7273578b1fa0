package oidcclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/omnifex/identity/session"
)

// Store is the client's session persistence: at most one stored user at a
// time. Implementations must be safe for concurrent use. Load returns
// (nil, nil) when no session is stored.
type Store interface {
	Load() (*session.User, error)
	Save(u *session.User) error
	Clear() error
}

// MemoryStore keeps the session in process memory only.
type MemoryStore struct {
	mu   sync.Mutex
	user *session.User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*session.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, nil
}

func (s *MemoryStore) Save(u *session.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	return nil
}

// storedUser is the persisted wire form of a session.User. The User's token
// types redact themselves when marshaled, so persistence goes through this
// plain struct instead.
type storedUser struct {
	Subject      string                 `json:"subject"`
	IDToken      string                 `json:"id_token"`
	AccessToken  string                 `json:"access_token"`
	RefreshToken string                 `json:"refresh_token,omitempty"`
	Profile      map[string]interface{} `json:"profile,omitempty"`
	ExpiresAt    time.Time              `json:"expires_at"`
}

// FileStore persists the session to a single file, created with 0600
// permissions and replaced via an atomic rename.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) (*FileStore, error) {
	const op = "oidcclient.NewFileStore"
	if path == "" {
		return nil, fmt.Errorf("%s: path is empty: %w", op, session.ErrInvalidParameter)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load() (*session.User, error) {
	const op = "oidcclient.FileStore.Load"
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: unable to read session: %w", op, err)
	}
	var su storedUser
	if err := json.Unmarshal(data, &su); err != nil {
		return nil, fmt.Errorf("%s: unable to decode session: %w", op, err)
	}
	return &session.User{
		Subject:      su.Subject,
		IDToken:      session.IDToken(su.IDToken),
		AccessToken:  session.AccessToken(su.AccessToken),
		RefreshToken: session.RefreshToken(su.RefreshToken),
		Profile:      su.Profile,
		ExpiresAt:    su.ExpiresAt,
	}, nil
}

func (s *FileStore) Save(u *session.User) error {
	const op = "oidcclient.FileStore.Save"
	if u == nil {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(storedUser{
		Subject:      u.Subject,
		IDToken:      string(u.IDToken),
		AccessToken:  string(u.AccessToken),
		RefreshToken: string(u.RefreshToken),
		Profile:      u.Profile,
		ExpiresAt:    u.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("%s: unable to encode session: %w", op, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%s: unable to write session: %w", op, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%s: unable to replace session: %w", op, err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	const op = "oidcclient.FileStore.Clear"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: unable to remove session: %w", op, err)
	}
	return nil
}

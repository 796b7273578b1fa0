package oidcclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnifex/identity/session"
)

func TestFileStore(t *testing.T) {
	t.Parallel()

	testUser := &session.User{
		Subject:      "alice@example.com",
		IDToken:      "test-id-token",
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		Profile:      map[string]interface{}{"email": "alice@example.com"},
		ExpiresAt:    time.Now().Add(1 * time.Hour).UTC(),
	}

	t.Run("empty-path", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewFileStore("")
		require.Error(err)
		assert.Nil(s)
		assert.ErrorIs(err, session.ErrInvalidParameter)
	})
	t.Run("load-before-save", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(err)
		u, err := s.Load()
		require.NoError(err)
		assert.Nil(u)
	})
	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		path := filepath.Join(t.TempDir(), "session.json")
		s, err := NewFileStore(path)
		require.NoError(err)
		require.NoError(s.Save(testUser))

		got, err := s.Load()
		require.NoError(err)
		assert.Equal(testUser, got)

		// the raw tokens are persisted, not their redacted forms
		raw, err := os.ReadFile(path)
		require.NoError(err)
		assert.Contains(string(raw), "test-id-token")
		assert.NotContains(string(raw), session.RedactedIDToken)

		info, err := os.Stat(path)
		require.NoError(err)
		assert.Equal(os.FileMode(0o600), info.Mode().Perm())
	})
	t.Run("clear", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(err)
		require.NoError(s.Save(testUser))
		require.NoError(s.Clear())
		// clearing an already-empty store is fine
		require.NoError(s.Clear())
		u, err := s.Load()
		require.NoError(err)
		assert.Nil(u)
	})
	t.Run("save-nil-clears", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(err)
		require.NoError(s.Save(testUser))
		require.NoError(s.Save(nil))
		u, err := s.Load()
		require.NoError(err)
		assert.Nil(u)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	s := NewMemoryStore()
	u, err := s.Load()
	require.NoError(err)
	assert.Nil(u)

	testUser := &session.User{Subject: "alice@example.com"}
	require.NoError(s.Save(testUser))
	got, err := s.Load()
	require.NoError(err)
	assert.Equal(testUser, got)

	require.NoError(s.Clear())
	got, err = s.Load()
	require.NoError(err)
	assert.Nil(got)
}

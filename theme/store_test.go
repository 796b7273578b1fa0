package theme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	s := NewMemoryStore()
	_, err := s.Get(StorageKey)
	assert.ErrorIs(err, ErrNotFound)

	require.NoError(s.Set(StorageKey, "dark"))
	v, err := s.Get(StorageKey)
	require.NoError(err)
	assert.Equal("dark", v)

	require.NoError(s.Set(StorageKey, "light"))
	v, err = s.Get(StorageKey)
	require.NoError(err)
	assert.Equal("light", v)
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	t.Run("empty-path", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewFileStore("")
		require.Error(err)
		assert.Nil(s)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("get-before-any-set", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewFileStore(filepath.Join(t.TempDir(), "prefs.json"))
		require.NoError(err)
		_, err = s.Get(StorageKey)
		assert.ErrorIs(err, ErrNotFound)
	})
	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		path := filepath.Join(t.TempDir(), "prefs.json")
		s, err := NewFileStore(path)
		require.NoError(err)

		require.NoError(s.Set(StorageKey, "dark"))
		require.NoError(s.Set("other-key", "other-value"))
		v, err := s.Get(StorageKey)
		require.NoError(err)
		assert.Equal("dark", v)

		// a second store over the same file sees the values
		s2, err := NewFileStore(path)
		require.NoError(err)
		v, err = s2.Get("other-key")
		require.NoError(err)
		assert.Equal("other-value", v)

		info, err := os.Stat(path)
		require.NoError(err)
		assert.Equal(os.FileMode(0o600), info.Mode().Perm())
	})
	t.Run("corrupt-file", func(t *testing.T) {
		require := require.New(t)
		path := filepath.Join(t.TempDir(), "prefs.json")
		require.NoError(os.WriteFile(path, []byte("{not json"), 0o600))
		s, err := NewFileStore(path)
		require.NoError(err)
		_, err = s.Get(StorageKey)
		require.Error(err)
		require.Error(s.Set(StorageKey, "dark"))
	})
}

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnifex/identity/session"
	"github.com/omnifex/identity/theme"
)

func testSessionConfig(t *testing.T) *session.Config {
	t.Helper()
	c, err := session.NewConfig("https://issuer.example.com", "test-rp", "http://localhost:3000/callback")
	require.NoError(t, err)
	return c
}

func TestRegistry_InitSession(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r := NewRegistry()
		defer r.Reset()

		m, err := r.InitSession(testSessionConfig(t), session.NewTestTransport())
		require.NoError(err)
		require.NotNil(m)

		got, err := r.Session()
		require.NoError(err)
		assert.Same(m, got)
	})
	t.Run("reinit-errors", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r := NewRegistry()
		defer r.Reset()

		_, err := r.InitSession(testSessionConfig(t), session.NewTestTransport())
		require.NoError(err)
		m, err := r.InitSession(testSessionConfig(t), session.NewTestTransport())
		require.Error(err)
		assert.Nil(m)
		assert.ErrorIs(err, ErrAlreadyInitialized)
	})
	t.Run("reinit-noop", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r := NewRegistry(WithReinitNoop())
		defer r.Reset()

		first, err := r.InitSession(testSessionConfig(t), session.NewTestTransport())
		require.NoError(err)
		second, err := r.InitSession(testSessionConfig(t), session.NewTestTransport())
		require.NoError(err)
		assert.Same(first, second)
	})
	t.Run("invalid-config", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r := NewRegistry()
		defer r.Reset()

		m, err := r.InitSession(nil, session.NewTestTransport())
		require.Error(err)
		assert.Nil(m)
		assert.ErrorIs(err, session.ErrNilParameter)

		// a failed init leaves the registry empty
		_, err = r.Session()
		assert.ErrorIs(err, ErrNotInitialized)
	})
}

func TestRegistry_InitTheme(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r := NewRegistry()
		defer r.Reset()

		m, err := r.InitTheme(theme.NewMemoryStore(), theme.NewStaticSignal(false))
		require.NoError(err)
		require.NotNil(m)

		got, err := r.Theme()
		require.NoError(err)
		assert.Same(m, got)
	})
	t.Run("reinit-errors", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r := NewRegistry()
		defer r.Reset()

		_, err := r.InitTheme(theme.NewMemoryStore(), theme.NewStaticSignal(false))
		require.NoError(err)
		m, err := r.InitTheme(theme.NewMemoryStore(), theme.NewStaticSignal(false))
		require.Error(err)
		assert.Nil(m)
		assert.ErrorIs(err, ErrAlreadyInitialized)
	})
	t.Run("reinit-noop", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r := NewRegistry(WithReinitNoop())
		defer r.Reset()

		first, err := r.InitTheme(theme.NewMemoryStore(), theme.NewStaticSignal(false))
		require.NoError(err)
		second, err := r.InitTheme(theme.NewMemoryStore(), theme.NewStaticSignal(false))
		require.NoError(err)
		assert.Same(first, second)
	})
}

func TestRegistry_Reset(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r := NewRegistry()

	_, err := r.InitSession(testSessionConfig(t), session.NewTestTransport())
	require.NoError(err)
	_, err = r.InitTheme(theme.NewMemoryStore(), theme.NewStaticSignal(false))
	require.NoError(err)

	r.Reset()

	_, err = r.Session()
	assert.ErrorIs(err, ErrNotInitialized)
	_, err = r.Theme()
	assert.ErrorIs(err, ErrNotInitialized)

	// a reset registry can be initialized again
	_, err = r.InitSession(testSessionConfig(t), session.NewTestTransport())
	require.NoError(err)
	r.Reset()
}

func TestRegistry_AccessorsBeforeInit(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	r := NewRegistry()

	_, err := r.Session()
	assert.ErrorIs(err, ErrNotInitialized)
	_, err = r.Theme()
	assert.ErrorIs(err, ErrNotInitialized)
}

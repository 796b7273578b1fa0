package theme

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	t.Parallel()

	t.Run("defaults-to-system", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(NewMemoryStore(), NewStaticSignal(false))
		defer m.Destroy()
		assert.Equal(System, m.CurrentTheme())
		assert.False(m.IsDark())
	})
	t.Run("system-follows-os-preference", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(NewMemoryStore(), NewStaticSignal(true))
		defer m.Destroy()
		assert.Equal(System, m.CurrentTheme())
		assert.True(m.IsDark())
	})
	t.Run("reads-persisted-theme", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryStore()
		require.NoError(store.Set(StorageKey, string(Dark)))
		m := NewManager(store, NewStaticSignal(false))
		defer m.Destroy()
		assert.Equal(Dark, m.CurrentTheme())
		assert.True(m.IsDark())
	})
	t.Run("invalid-persisted-theme-coerced", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryStore()
		require.NoError(store.Set(StorageKey, "solarized"))
		m := NewManager(store, NewStaticSignal(true))
		defer m.Destroy()
		assert.Equal(System, m.CurrentTheme())
		assert.True(m.IsDark())
	})
	t.Run("nil-store-and-signal", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(nil, nil)
		defer m.Destroy()
		assert.Equal(System, m.CurrentTheme())
		// without a signal, System resolves light
		assert.False(m.IsDark())
		m.SetTheme(Dark)
		assert.True(m.IsDark())
	})
	t.Run("runs-apply-hook", func(t *testing.T) {
		assert := assert.New(t)
		var applied []bool
		m := NewManager(NewMemoryStore(), NewStaticSignal(true),
			WithApplyFunc(func(dark bool) { applied = append(applied, dark) }),
		)
		defer m.Destroy()
		assert.Equal([]bool{true}, applied)
	})
}

func TestManager_SetTheme(t *testing.T) {
	t.Parallel()

	t.Run("persists-and-resolves", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryStore()
		m := NewManager(store, NewStaticSignal(false))
		defer m.Destroy()

		m.SetTheme(Dark)
		assert.Equal(Dark, m.CurrentTheme())
		assert.True(m.IsDark())
		stored, err := store.Get(StorageKey)
		require.NoError(err)
		assert.Equal(string(Dark), stored)
	})
	t.Run("invalid-coerced-to-system", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryStore()
		m := NewManager(store, NewStaticSignal(true))
		defer m.Destroy()
		m.SetTheme(Light)

		m.SetTheme(Theme("solarized"))
		assert.Equal(System, m.CurrentTheme())
		assert.True(m.IsDark())
		// the coerced value is what gets persisted
		stored, err := store.Get(StorageKey)
		require.NoError(err)
		assert.Equal(string(System), stored)
	})
	t.Run("concurrent-sets-keep-store-consistent", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryStore()
		m := NewManager(store, NewStaticSignal(false))
		defer m.Destroy()

		var wg sync.WaitGroup
		for _, theme := range []Theme{Light, Dark} {
			wg.Add(1)
			go func(theme Theme) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					m.SetTheme(theme)
				}
			}(theme)
		}
		wg.Wait()

		// whichever write wins, the persisted value matches the active one
		stored, err := store.Get(StorageKey)
		require.NoError(err)
		assert.Equal(string(m.CurrentTheme()), stored)
	})
	t.Run("persistence-failure-absorbed", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(failingStore{}, NewStaticSignal(false))
		defer m.Destroy()

		m.SetTheme(Dark)
		assert.Equal(Dark, m.CurrentTheme())
		assert.True(m.IsDark())
	})
}

func TestManager_ToggleTheme(t *testing.T) {
	t.Parallel()

	t.Run("light-dark-flip", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(NewMemoryStore(), NewStaticSignal(false))
		defer m.Destroy()

		m.SetTheme(Light)
		m.ToggleTheme()
		assert.Equal(Dark, m.CurrentTheme())
		m.ToggleTheme()
		assert.Equal(Light, m.CurrentTheme())
	})
	t.Run("from-system-opposes-light-os", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(NewMemoryStore(), NewStaticSignal(false))
		defer m.Destroy()

		m.ToggleTheme()
		assert.Equal(Dark, m.CurrentTheme())
		assert.True(m.IsDark())
	})
	t.Run("from-system-opposes-dark-os", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(NewMemoryStore(), NewStaticSignal(true))
		defer m.Destroy()

		m.ToggleTheme()
		assert.Equal(Light, m.CurrentTheme())
		assert.False(m.IsDark())
	})
}

func TestManager_PreferenceChanges(t *testing.T) {
	t.Parallel()

	t.Run("system-follows-flips", func(t *testing.T) {
		assert := assert.New(t)
		signal := NewStaticSignal(false)
		m := NewManager(NewMemoryStore(), signal)
		defer m.Destroy()

		type state struct {
			theme Theme
			dark  bool
		}
		var seen []state
		defer m.Subscribe(func(theme Theme, dark bool) {
			seen = append(seen, state{theme, dark})
		})()

		signal.Set(true)
		assert.True(m.IsDark())
		signal.Set(false)
		assert.False(m.IsDark())
		// the immediate invoke plus one notification per flip
		assert.Equal([]state{
			{System, false},
			{System, true},
			{System, false},
		}, seen)
	})
	t.Run("explicit-theme-ignores-flips", func(t *testing.T) {
		assert := assert.New(t)
		signal := NewStaticSignal(false)
		m := NewManager(NewMemoryStore(), signal)
		defer m.Destroy()
		m.SetTheme(Light)

		signal.Set(true)
		assert.Equal(Light, m.CurrentTheme())
		assert.False(m.IsDark())

		// going back to System picks up the live preference
		m.SetTheme(System)
		assert.True(m.IsDark())
	})
}

func TestManager_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("immediate-invoke", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(NewMemoryStore(), NewStaticSignal(true))
		defer m.Destroy()

		calls := 0
		var gotTheme Theme
		var gotDark bool
		defer m.Subscribe(func(theme Theme, dark bool) {
			calls++
			gotTheme, gotDark = theme, dark
		})()
		assert.Equal(1, calls)
		assert.Equal(System, gotTheme)
		assert.True(gotDark)
	})
	t.Run("unsubscribe-stops-notifications", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(NewMemoryStore(), NewStaticSignal(false))
		defer m.Destroy()

		calls := 0
		unsubscribe := m.Subscribe(func(Theme, bool) { calls++ })
		unsubscribe()
		m.SetTheme(Dark)
		assert.Equal(1, calls)
	})
	t.Run("listener-may-reenter", func(t *testing.T) {
		assert := assert.New(t)
		m := NewManager(NewMemoryStore(), NewStaticSignal(false))
		defer m.Destroy()

		var resolved bool
		defer m.Subscribe(func(Theme, bool) {
			resolved = m.IsDark()
		})()
		m.SetTheme(Dark)
		assert.True(resolved)
	})
}

func TestManager_Destroy(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	signal := NewStaticSignal(false)
	m := NewManager(NewMemoryStore(), signal)

	calls := 0
	m.Subscribe(func(Theme, bool) { calls++ })
	m.Destroy()
	// destroy is idempotent
	m.Destroy()

	// neither OS flips nor notifications reach a destroyed manager
	signal.Set(true)
	assert.False(m.IsDark())
	assert.Equal(1, calls)
}

// failingStore errors on every operation, for exercising the best-effort
// persistence path.
type failingStore struct{}

func (failingStore) Get(string) (string, error) { return "", ErrNotFound }
func (failingStore) Set(string, string) error   { return assert.AnError }

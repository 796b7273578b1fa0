package theme

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Theme is a theme preference.
type Theme string

const (
	Light  Theme = "light"
	Dark   Theme = "dark"
	System Theme = "system"
)

// valid reports membership in {light, dark, system}.
func (t Theme) valid() bool {
	switch t {
	case Light, Dark, System:
		return true
	}
	return false
}

// StorageKey is the fixed key the current theme is persisted under.
const StorageKey = "app-theme"

// ErrInvalidParameter mirrors the session package's parameter sentinel for
// this package's constructors.
var ErrInvalidParameter = errors.New("invalid parameter")

// Manager is the single source of truth for the theme preference and its
// resolved light/dark value. It persists the preference to its Store,
// resolves System against its PreferenceSignal, and re-resolves reactively
// on every OS preference flip while System is selected. A Manager is safe
// for concurrent use.
//
// See Destroy() which must be called to detach the preference listener.
type Manager struct {
	store  Store
	signal PreferenceSignal
	logger hclog.Logger
	apply  func(dark bool)

	mu           sync.Mutex
	current      Theme
	isDark       bool
	listeners    map[int]func(Theme, bool)
	nextListener int

	signalCancel func()
	destroyOnce  sync.Once
}

// NewManager creates a Manager. It reads the persisted theme from store
// (absent or invalid values default to System), resolves the initial
// light/dark value, runs the apply hook, and registers the preference
// listener. Both store and signal may be nil: a nil store disables
// persistence, a nil signal resolves System as light.
// Supported options: WithLogger, WithApplyFunc
func NewManager(store Store, signal PreferenceSignal, opt ...Option) *Manager {
	opts := getManagerOpts(opt...)
	logger := opts.withLogger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	m := &Manager{
		store:     store,
		signal:    signal,
		logger:    logger,
		apply:     opts.withApplyFunc,
		current:   System,
		listeners: map[int]func(Theme, bool){},
	}

	if store != nil {
		stored, err := store.Get(StorageKey)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			logger.Warn("unable to read persisted theme", "error", err)
		case Theme(stored).valid():
			m.current = Theme(stored)
		default:
			logger.Warn("ignoring invalid persisted theme", "value", stored)
		}
	}
	m.isDark = m.resolve(m.current)
	if m.apply != nil {
		m.apply(m.isDark)
	}

	if signal != nil {
		m.signalCancel = signal.Notify(m.preferenceChanged)
	}
	return m
}

// CurrentTheme returns the active theme preference.
func (m *Manager) CurrentTheme() Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsDark reports whether dark mode is currently active: the preference
// resolved against the OS signal at the time of the last recomputation.
func (m *Manager) IsDark() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDark
}

// SetTheme sets and persists the theme. A value outside {light, dark,
// system} is never an error: it's coerced to System with a warning. The
// resolved light/dark value is recomputed, applied, and every subscriber is
// notified.
func (m *Manager) SetTheme(t Theme) {
	if !t.valid() {
		m.logger.Warn("invalid theme coerced to system", "value", string(t))
		t = System
	}

	// persist and mutate under the same lock, so concurrent SetTheme calls
	// can't leave the stored value diverged from the current one
	m.mu.Lock()
	if m.store != nil {
		if err := m.store.Set(StorageKey, string(t)); err != nil {
			m.logger.Warn("unable to persist theme", "error", err)
		}
	}
	m.current = t
	m.isDark = m.resolve(t)
	m.applyAndNotify()
}

// ToggleTheme flips light to dark and dark to light. From System it reads
// the live OS preference and chooses the opposite one.
func (m *Manager) ToggleTheme() {
	switch m.CurrentTheme() {
	case Light:
		m.SetTheme(Dark)
	case Dark:
		m.SetTheme(Light)
	default:
		if m.signal != nil && m.signal.Dark() {
			m.SetTheme(Light)
		} else {
			m.SetTheme(Dark)
		}
	}
}

// Subscribe registers fn and immediately invokes it once, synchronously,
// with the current state. It returns the unsubscribe func. Notification
// order across subscribers is unspecified.
func (m *Manager) Subscribe(fn func(theme Theme, dark bool)) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	current, dark := m.current, m.isDark
	m.mu.Unlock()

	fn(current, dark)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Destroy detaches the OS preference listener and clears all subscribers.
func (m *Manager) Destroy() {
	m.destroyOnce.Do(func() {
		if m.signalCancel != nil {
			m.signalCancel()
		}
		m.mu.Lock()
		m.listeners = map[int]func(Theme, bool){}
		m.mu.Unlock()
	})
}

// preferenceChanged runs on every OS preference flip. While the active
// preference is System, the resolved value follows the OS and subscribers
// are re-notified even though no SetTheme call happened.
func (m *Manager) preferenceChanged(dark bool) {
	m.mu.Lock()
	if m.current != System {
		m.mu.Unlock()
		return
	}
	m.isDark = dark
	m.applyAndNotify()
}

// resolve maps a preference to its effective dark value: direct for
// Light/Dark, the live OS preference for System.
func (m *Manager) resolve(t Theme) bool {
	switch t {
	case Dark:
		return true
	case Light:
		return false
	default:
		return m.signal != nil && m.signal.Dark()
	}
}

// applyAndNotify snapshots state and listeners under m.mu, releases the
// lock, then runs the apply hook and every listener, so a listener may call
// back into the manager.
func (m *Manager) applyAndNotify() {
	current, dark := m.current, m.isDark
	fns := make([]func(Theme, bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if m.apply != nil {
		m.apply(dark)
	}
	for _, fn := range fns {
		fn(current, dark)
	}
}

// managerOptions is the set of available options
type managerOptions struct {
	withLogger    hclog.Logger
	withApplyFunc func(dark bool)
}

// managerDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func managerDefaults() managerOptions {
	return managerOptions{}
}

// getManagerOpts gets the defaults and applies the opt overrides passed in.
func getManagerOpts(opt ...Option) managerOptions {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withLogger = l
		}
	}
}

// WithApplyFunc provides the external visual side effect run with the
// resolved dark value after every recomputation. The manager decides dark
// vs light; how that's presented (a marker class, a terminal palette) stays
// with the host.
func WithApplyFunc(fn func(dark bool)) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withApplyFunc = fn
		}
	}
}

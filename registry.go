package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/omnifex/identity/session"
	"github.com/omnifex/identity/theme"
)

var (
	ErrNotInitialized     = errors.New("not initialized")
	ErrAlreadyInitialized = errors.New("already initialized")
)

// Registry gives a process one explicit owner for its managers instead of
// package-level singletons: a manager is initialized exactly once, accessors
// fail loudly before that, and Reset tears everything down for test
// isolation. A Registry is safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	session    *session.Manager
	theme      *theme.Manager
	reinitNoop bool
}

// NewRegistry creates an empty Registry.
// Supported options: WithReinitNoop
func NewRegistry(opt ...Option) *Registry {
	opts := getRegistryOpts(opt...)
	return &Registry{
		reinitNoop: opts.withReinitNoop,
	}
}

// InitSession constructs the registry's session.Manager. Initializing twice
// returns ErrAlreadyInitialized, or the existing manager untouched under
// WithReinitNoop.
func (r *Registry) InitSession(c *session.Config, tr session.Transport, opt ...session.Option) (*session.Manager, error) {
	const op = "identity.Registry.InitSession"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		if r.reinitNoop {
			return r.session, nil
		}
		return nil, fmt.Errorf("%s: session manager: %w", op, ErrAlreadyInitialized)
	}
	m, err := session.NewManager(c, tr, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.session = m
	return m, nil
}

// Session returns the initialized session.Manager, or ErrNotInitialized.
func (r *Registry) Session() (*session.Manager, error) {
	const op = "identity.Registry.Session"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil, fmt.Errorf("%s: session manager: %w", op, ErrNotInitialized)
	}
	return r.session, nil
}

// InitTheme constructs the registry's theme.Manager. Initializing twice
// returns ErrAlreadyInitialized, or the existing manager untouched under
// WithReinitNoop.
func (r *Registry) InitTheme(store theme.Store, signal theme.PreferenceSignal, opt ...theme.Option) (*theme.Manager, error) {
	const op = "identity.Registry.InitTheme"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.theme != nil {
		if r.reinitNoop {
			return r.theme, nil
		}
		return nil, fmt.Errorf("%s: theme manager: %w", op, ErrAlreadyInitialized)
	}
	m := theme.NewManager(store, signal, opt...)
	r.theme = m
	return m, nil
}

// Theme returns the initialized theme.Manager, or ErrNotInitialized.
func (r *Registry) Theme() (*theme.Manager, error) {
	const op = "identity.Registry.Theme"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.theme == nil {
		return nil, fmt.Errorf("%s: theme manager: %w", op, ErrNotInitialized)
	}
	return r.theme, nil
}

// Reset destroys whatever managers are initialized and empties the registry,
// so the next Init* starts from scratch. Intended for test teardown.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.session.Destroy()
		r.session = nil
	}
	if r.theme != nil {
		r.theme.Destroy()
		r.theme = nil
	}
}

// Option defines a common functional options type
type Option func(interface{})

// registryOptions is the set of available options
type registryOptions struct {
	withReinitNoop bool
}

// getRegistryOpts gets the defaults and applies the opt overrides passed in.
func getRegistryOpts(opt ...Option) registryOptions {
	var opts registryOptions
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithReinitNoop makes a second Init* return the existing manager instead of
// ErrAlreadyInitialized.
func WithReinitNoop() Option {
	return func(o interface{}) {
		if o, ok := o.(*registryOptions); ok {
			o.withReinitNoop = true
		}
	}
}

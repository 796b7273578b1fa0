package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Snapshot is the full session state delivered to every subscriber after
// each mutation. It's built atomically under the manager's lock, so a
// subscriber never observes a torn state between two mutations.
type Snapshot struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
	AccessToken     AccessToken
	Profile         map[string]interface{}
	Roles           []string
}

// Manager is the single source of truth for "who is logged in". It owns the
// observable session state and coordinates the login lifecycle, delegating
// every protocol operation to its Transport. A Manager is safe for
// concurrent use.
//
// Construction kicks off an asynchronous recovery of any persisted session;
// Initialized() is closed once that settles. See Destroy() which must be
// called to release the manager's resources.
type Manager struct {
	config    *Config
	transport Transport
	logger    hclog.Logger

	mu           sync.Mutex
	current      *User
	loading      bool
	errMsg       string
	listeners    map[int]func(Snapshot)
	nextListener int

	// gen guards suspending operations against stale completions: it's
	// bumped whenever the current user changes, and a completion whose
	// captured gen no longer matches discards its result instead of
	// overwriting newer state.
	gen uint64

	initialized chan struct{}
	stopPump    chan struct{}
	pumpDone    chan struct{}
	destroyOnce sync.Once
}

// NewManager creates a Manager for the given config and transport, and
// starts its asynchronous initialization: state recovery via
// Transport.StoredUser and the pump consuming Transport.Events.
// Supported options: WithLogger
func NewManager(c *Config, tr Transport, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: config is invalid: %w", op, err)
	}
	if tr == nil {
		return nil, fmt.Errorf("%s: transport is nil: %w", op, ErrNilParameter)
	}
	opts := getManagerOpts(opt...)
	logger := opts.withLogger
	if logger == nil {
		logger = c.Logger
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	m := &Manager{
		config:      c,
		transport:   tr,
		logger:      logger,
		loading:     true,
		listeners:   map[int]func(Snapshot){},
		initialized: make(chan struct{}),
		stopPump:    make(chan struct{}),
		pumpDone:    make(chan struct{}),
	}
	go m.initialize()
	go m.pumpEvents()
	return m, nil
}

// Initialized returns a channel that's closed once the construction-time
// session recovery has settled, successfully or not.
func (m *Manager) Initialized() <-chan struct{} {
	return m.initialized
}

// initialize recovers an existing, non-expired session from the transport's
// persisted store. Any recovery failure is absorbed: the manager starts
// unauthenticated with an initialization error recorded. It always ends with
// loading=false and a notification.
func (m *Manager) initialize() {
	defer close(m.initialized)
	user, err := m.transport.StoredUser(context.Background())

	m.mu.Lock()
	switch {
	case err != nil:
		m.logger.Error("session recovery failed", "error", err)
		m.errMsg = MsgInitFailed
	case user != nil && !user.Expired():
		m.current = user
		m.gen++
	}
	m.loading = false
	m.notifyAndUnlock()
}

// pumpEvents applies the transport's asynchronous push signals until the
// manager is destroyed or the transport closes its channel.
func (m *Manager) pumpEvents() {
	defer close(m.pumpDone)
	for {
		select {
		case <-m.stopPump:
			return
		case ev, ok := <-m.transport.Events():
			if !ok {
				return
			}
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(ev Event) {
	m.mu.Lock()
	switch ev.Type {
	case EventUserLoaded:
		m.logger.Debug("user loaded by transport", "subject", subjectOf(ev.User))
		m.current = ev.User
		m.errMsg = ""
		m.gen++
	case EventUserUnloaded:
		m.logger.Debug("user unloaded by transport")
		m.current = nil
		m.gen++
	case EventTokenExpired:
		m.logger.Warn("access token expired")
		m.current = nil
		m.gen++
	case EventRenewFailed:
		m.logger.Error("silent renew failed", "error", ev.Err)
		m.errMsg = MsgSilentRenew
	default:
		m.mu.Unlock()
		m.logger.Warn("unknown transport event ignored", "type", ev.Type)
		return
	}
	m.notifyAndUnlock()
}

// Login initiates the login flow, round-tripping returnURL (default: the
// configured DefaultReturnURL), and returns the authorization URL the host
// must redirect the user to. Failures are absorbed: the error surfaces only
// through the snapshot's Error field and Login returns "". On success the
// loading flag stays set until HandleCallback completes the flow.
func (m *Manager) Login(ctx context.Context, returnURL string) string {
	if returnURL == "" {
		returnURL = m.config.DefaultReturnURL
	}
	gen := m.beginOp()

	authURL, err := m.transport.BeginLogin(ctx, returnURL)
	if err != nil {
		m.logger.Error("login initiation failed", "error", err)
		m.failOp(gen, MsgLoginFailed)
		return ""
	}
	return authURL
}

// HandleCallback completes the login flow from the provider's callback
// request URL. On success it adopts the new user and returns the
// round-tripped return URL. This is the only operation that both records a
// failure in the snapshot and returns it: the calling screen decides whether
// to offer a retry.
func (m *Manager) HandleCallback(ctx context.Context, callbackURL string) (string, error) {
	gen := m.beginOp()

	user, returnURL, err := m.transport.CompleteLogin(ctx, callbackURL)
	if err != nil {
		m.logger.Error("login callback failed", "error", err)
		m.failOp(gen, MsgCallbackFailed)
		return "", err
	}

	m.mu.Lock()
	if m.gen != gen {
		// the result is stale, but the operation is over: the loading flag
		// must not outlive it
		m.loading = false
		m.notifyAndUnlock()
		m.logger.Warn("stale login completion discarded", "subject", subjectOf(user))
		return returnURL, nil
	}
	m.gen++
	m.current = user
	m.loading = false
	m.errMsg = ""
	m.notifyAndUnlock()
	return returnURL, nil
}

// Logout ends the session and returns the provider's end-session URL the
// host must redirect the user to (may be "" when the provider has none).
// Failures are absorbed into the snapshot's Error field.
func (m *Manager) Logout(ctx context.Context) string {
	gen := m.beginOp()

	logoutURL, err := m.transport.BeginLogout(ctx)
	if err != nil {
		m.logger.Error("logout failed", "error", err)
		m.failOp(gen, MsgLogoutFailed)
		return ""
	}

	m.mu.Lock()
	if m.gen != gen {
		m.loading = false
		m.notifyAndUnlock()
		return logoutURL
	}
	m.gen++
	m.current = nil
	m.loading = false
	m.notifyAndUnlock()
	return logoutURL
}

// RenewToken silently renews the access token. On success it replaces the
// stored user, notifies, and returns the new user. On failure it records an
// error and returns nil; the current user is left untouched.
func (m *Manager) RenewToken(ctx context.Context) *User {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	user, err := m.transport.RenewToken(ctx)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Warn("stale token renewal discarded")
		return nil
	}
	if err != nil {
		m.errMsg = MsgRenewFailed
		m.notifyAndUnlock()
		m.logger.Error("token renewal failed", "error", err)
		return nil
	}
	m.gen++
	m.current = user
	m.notifyAndUnlock()
	return copyUser(user)
}

// User returns a copy of the current user, or nil when unauthenticated.
func (m *Manager) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyUser(m.current)
}

// IsAuthenticated reports whether a current, unexpired user is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !m.current.Expired()
}

// IsLoading reports whether a login/callback/logout operation or the
// construction-time recovery is in flight.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Err returns the human-readable reason of the last absorbed failure, or ""
// when the last operation succeeded.
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// AccessToken returns the current access token, or "" when unauthenticated.
func (m *Manager) AccessToken() AccessToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.AccessToken
}

// Profile returns a copy of the current user's claims, or nil when
// unauthenticated.
func (m *Manager) Profile() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := copyUser(m.current)
	if u == nil {
		return nil
	}
	return u.Profile
}

// Subscribe registers fn and immediately invokes it once, synchronously,
// with the current snapshot, so a late subscriber is never out of sync. It
// returns the unsubscribe func. The relative notification order across
// subscribers is unspecified: that's a contract, not an accident.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	snap := m.snapshotLocked()
	m.mu.Unlock()

	fn(snap)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Destroy clears all subscribers and stops the event pump. It doesn't tear
// down the transport, which the caller owns.
func (m *Manager) Destroy() {
	m.destroyOnce.Do(func() {
		m.mu.Lock()
		m.listeners = map[int]func(Snapshot){}
		m.mu.Unlock()
		close(m.stopPump)
	})
}

// beginOp starts an explicit operation: loading on, previous error cleared,
// subscribers notified. It returns the generation a completion must match
// to apply its result.
func (m *Manager) beginOp() uint64 {
	m.mu.Lock()
	m.loading = true
	m.errMsg = ""
	gen := m.gen
	m.notifyAndUnlock()
	return gen
}

// failOp ends an operation in failure. The error is recorded only while the
// operation's generation is current (the error of an operation whose outcome
// no longer matters is noise), but the loading flag always comes down: the
// operation is over either way.
func (m *Manager) failOp(gen uint64, msg string) {
	m.mu.Lock()
	if m.gen == gen {
		m.errMsg = msg
	}
	m.loading = false
	m.notifyAndUnlock()
}

// snapshotLocked builds an immutable full-state snapshot. Callers must hold
// m.mu.
func (m *Manager) snapshotLocked() Snapshot {
	u := copyUser(m.current)
	snap := Snapshot{
		User:            u,
		IsAuthenticated: m.current != nil && !m.current.Expired(),
		IsLoading:       m.loading,
		Error:           m.errMsg,
		Roles:           m.rolesLocked(),
	}
	if u != nil {
		snap.AccessToken = u.AccessToken
		snap.Profile = u.Profile
	}
	return snap
}

// notifyAndUnlock snapshots state and listeners under m.mu, releases the lock,
// and invokes every listener. Releasing first lets a listener call back into
// the manager without deadlocking; the snapshot it receives is immutable
// either way.
func (m *Manager) notifyAndUnlock() {
	snap := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func subjectOf(u *User) string {
	if u == nil {
		return ""
	}
	return u.Subject
}

// managerOptions is the set of available options
type managerOptions struct {
	withLogger hclog.Logger
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

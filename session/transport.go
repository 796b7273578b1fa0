package session

import "context"

// EventType identifies an asynchronous signal pushed by a Transport outside
// of any explicit Manager call.
type EventType string

const (
	// EventUserLoaded signals an externally renewed or updated session: the
	// Manager adopts the event's user as current and clears any error.
	EventUserLoaded EventType = "user-loaded"

	// EventUserUnloaded signals the session is gone: the Manager clears the
	// current user.
	EventUserUnloaded EventType = "user-unloaded"

	// EventTokenExpired signals the access token expired without renewal:
	// the Manager clears the current user.
	EventTokenExpired EventType = "token-expired"

	// EventRenewFailed signals a background renewal failure: the Manager
	// records an error without touching the current user.
	EventRenewFailed EventType = "renew-failed"
)

// Event is an asynchronous signal pushed by a Transport.
type Event struct {
	Type EventType

	// User carries the renewed user for EventUserLoaded; nil otherwise.
	User *User

	// Err carries the cause for EventRenewFailed; nil otherwise.
	Err error
}

// Transport is the capability a Manager delegates every protocol operation
// to. Implementations own token exchange, verification, and session
// persistence; the Manager owns only the observable session state built on
// top. See the oidcclient package for the production implementation and
// TestTransport for a scriptable one.
type Transport interface {
	// BeginLogin starts a login flow, round-tripping returnURL as opaque
	// state, and returns the authorization URL the host must redirect the
	// user to.
	BeginLogin(ctx context.Context, returnURL string) (authURL string, err error)

	// CompleteLogin finishes the flow from the provider's callback request
	// URL. It returns the authenticated user and the round-tripped
	// returnURL (which may be empty).
	CompleteLogin(ctx context.Context, callbackURL string) (*User, string, error)

	// BeginLogout ends the session and returns the provider's end-session
	// URL the host must redirect the user to ("" when the provider has
	// none).
	BeginLogout(ctx context.Context) (logoutURL string, err error)

	// RenewToken silently renews the session and returns the refreshed
	// user.
	RenewToken(ctx context.Context) (*User, error)

	// StoredUser recovers a previously persisted session, or nil when there
	// is none.
	StoredUser(ctx context.Context) (*User, error)

	// Events is the push channel for asynchronous signals. The Transport
	// closes it when it shuts down.
	Events() <-chan Event
}

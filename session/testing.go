package session

import (
	"context"
)

// TestTransport is a scriptable Transport which makes writing Manager tests
// much easier: each operation delegates to the corresponding settable func
// field, and Send pushes events the way a real transport would. A nil func
// field means the operation succeeds with a zero result.
//
// Set the func fields before handing the transport to a Manager; they aren't
// synchronized.
type TestTransport struct {
	BeginLoginFn    func(ctx context.Context, returnURL string) (string, error)
	CompleteLoginFn func(ctx context.Context, callbackURL string) (*User, string, error)
	BeginLogoutFn   func(ctx context.Context) (string, error)
	RenewTokenFn    func(ctx context.Context) (*User, error)
	StoredUserFn    func(ctx context.Context) (*User, error)

	events chan Event
}

// NewTestTransport creates a TestTransport with a buffered event channel.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		events: make(chan Event, 16),
	}
}

// Send pushes an asynchronous event to the subscribed Manager.
func (t *TestTransport) Send(ev Event) {
	t.events <- ev
}

// CloseEvents closes the event channel, as a shutting-down transport would.
func (t *TestTransport) CloseEvents() {
	close(t.events)
}

func (t *TestTransport) BeginLogin(ctx context.Context, returnURL string) (string, error) {
	if t.BeginLoginFn == nil {
		return "", nil
	}
	return t.BeginLoginFn(ctx, returnURL)
}

func (t *TestTransport) CompleteLogin(ctx context.Context, callbackURL string) (*User, string, error) {
	if t.CompleteLoginFn == nil {
		return nil, "", nil
	}
	return t.CompleteLoginFn(ctx, callbackURL)
}

func (t *TestTransport) BeginLogout(ctx context.Context) (string, error) {
	if t.BeginLogoutFn == nil {
		return "", nil
	}
	return t.BeginLogoutFn(ctx)
}

func (t *TestTransport) RenewToken(ctx context.Context) (*User, error) {
	if t.RenewTokenFn == nil {
		return nil, nil
	}
	return t.RenewTokenFn(ctx)
}

func (t *TestTransport) StoredUser(ctx context.Context) (*User, error) {
	if t.StoredUserFn == nil {
		return nil, nil
	}
	return t.StoredUserFn(ctx)
}

func (t *TestTransport) Events() <-chan Event {
	return t.events
}

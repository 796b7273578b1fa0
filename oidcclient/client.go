// Package oidcclient is the production session.Transport: a relying-party
// implementation of the OIDC authorization code flow. Protocol mechanics
// (discovery, code exchange, PKCE, signature validation) are delegated to
// github.com/coreos/go-oidc and golang.org/x/oauth2; the client owns
// pending-flow state, session persistence, silent renewal, and the push
// events a session.Manager reacts to.
package oidcclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"golang.org/x/oauth2"

	"github.com/omnifex/identity/session"
)

// renewAhead is how long before access-token expiry an automatic silent
// renewal is attempted.
const renewAhead = 1 * time.Minute

// flow represents one pending login attempt: the data needed to uniquely
// tie the provider's callback to the flow that started it. The id rides the
// oauth "state" parameter and the nonce binds the id_token; they prevent
// CSRF and replay of the callback.
type flow struct {
	id        string
	nonce     string
	verifier  string
	returnURL string
	expiresAt time.Time
}

func (f *flow) expired() bool {
	return f.expiresAt.Before(time.Now())
}

// Client implements session.Transport against a live OIDC provider.
//
// See Close() which must be called to release the client's background
// resources.
type Client struct {
	cfg        *session.Config
	logger     hclog.Logger
	httpClient *http.Client
	provider   *oidc.Provider
	oauth2Cfg  oauth2.Config
	flowExpiry time.Duration

	// endSessionURL comes from discovery; empty when the provider doesn't
	// advertise one.
	endSessionURL string

	mu          sync.Mutex
	flows       map[string]*flow
	store       Store
	renewTimer  *time.Timer
	expiryTimer *time.Timer
	closed      bool

	events chan session.Event

	// backgroundCtx is the context used by the client for background
	// activities like refreshing JWKs key sets and silent renewals.
	backgroundCtx    context.Context
	backgroundCancel context.CancelFunc
	closeOnce        sync.Once
}

// New creates and initializes a Client, which includes making an http
// request to the provider's authority for discovery.
// Supported options: WithStore, WithLogger, WithFlowExpiry
func New(ctx context.Context, c *session.Config, opt ...Option) (*Client, error) {
	const op = "oidcclient.New"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, session.ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: config is invalid: %w", op, err)
	}
	opts := getClientOpts(opt...)
	logger := opts.withLogger
	if logger == nil {
		logger = c.Logger
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	store := opts.withStore
	if store == nil {
		store = NewMemoryStore()
	}

	httpClient, err := newHTTPClient(c.ProviderCA)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	cl := &Client{
		cfg:              c,
		logger:           logger,
		httpClient:       httpClient,
		flowExpiry:       opts.withFlowExpiry,
		flows:            map[string]*flow{},
		store:            store,
		events:           make(chan session.Event, 16),
		backgroundCtx:    backgroundCtx,
		backgroundCancel: backgroundCancel,
	}

	// the provider keeps this context for later JWKS refreshes, so it gets
	// the long-lived background one, not the caller's
	provider, err := oidc.NewProvider(HTTPClientContext(backgroundCtx, httpClient), c.Authority)
	if err != nil {
		cl.Close()
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	cl.provider = provider

	var discovered struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovered); err == nil {
		cl.endSessionURL = discovered.EndSessionEndpoint
	}

	cl.oauth2Cfg = oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: string(c.ClientSecret),
		RedirectURL:  c.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       append([]string{oidc.ScopeOpenID}, c.Scopes...),
	}
	return cl, nil
}

// Close releases the client's background resources: renewal timers, the
// JWKS refresh context, and the event channel.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.stopTimersLocked()
		close(c.events)
		c.mu.Unlock()
		c.backgroundCancel()
	})
}

// Events implements session.Transport.
func (c *Client) Events() <-chan session.Event {
	return c.events
}

// BeginLogin implements session.Transport: it registers a pending flow and
// returns the provider's authorization URL for it. The flow id rides the
// "state" parameter, the nonce binds the eventual id_token, and a PKCE
// verifier is held for the exchange.
func (c *Client) BeginLogin(ctx context.Context, returnURL string) (string, error) {
	const op = "oidcclient.Client.BeginLogin"
	id, err := newID("st")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate a flow's id: %w", op, err)
	}
	nonce, err := newID("n")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate a flow's nonce: %w", op, err)
	}
	f := &flow{
		id:        id,
		nonce:     nonce,
		verifier:  oauth2.GenerateVerifier(),
		returnURL: returnURL,
		expiresAt: time.Now().Add(c.flowExpiry),
	}

	c.mu.Lock()
	for fid, pending := range c.flows {
		if pending.expired() {
			delete(c.flows, fid)
		}
	}
	c.flows[f.id] = f
	c.mu.Unlock()

	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(f.nonce),
		oauth2.S256ChallengeOption(f.verifier),
	}
	for k, v := range c.cfg.ExtraQueryParams {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam(k, v))
	}
	return c.oauth2Cfg.AuthCodeURL(f.id, authCodeOpts...), nil
}

// CompleteLogin implements session.Transport: it ties the provider's
// callback back to its pending flow, exchanges the authorization code,
// verifies the id_token (signature, audience, nonce), persists the session,
// and returns the authenticated user with the flow's round-tripped return
// URL.
func (c *Client) CompleteLogin(ctx context.Context, callbackURL string) (*session.User, string, error) {
	const op = "oidcclient.Client.CompleteLogin"
	cb, err := url.Parse(callbackURL)
	if err != nil {
		return nil, "", fmt.Errorf("%s: callback URL is invalid: %w", op, err)
	}
	q := cb.Query()
	if errCode := q.Get("error"); errCode != "" {
		return nil, "", fmt.Errorf("%s: provider returned %q (%s): %w", op, errCode, q.Get("error_description"), session.ErrLoginFailed)
	}

	c.mu.Lock()
	f, ok := c.flows[q.Get("state")]
	if ok {
		delete(c.flows, f.id)
	}
	c.mu.Unlock()
	switch {
	case !ok:
		return nil, "", fmt.Errorf("%s: callback state matches no pending flow: %w", op, session.ErrUnknownFlow)
	case f.expired():
		return nil, "", fmt.Errorf("%s: %w", op, session.ErrExpiredFlow)
	}

	oidcCtx := HTTPClientContext(ctx, c.httpClient)
	oauth2Token, err := c.oauth2Cfg.Exchange(oidcCtx, q.Get("code"), oauth2.VerifierOption(f.verifier))
	if err != nil {
		return nil, "", fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	user, err := c.userFromToken(oidcCtx, oauth2Token, f.nonce)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if err := c.store.Save(user); err != nil {
		return nil, "", fmt.Errorf("%s: unable to persist session: %w", op, err)
	}
	c.scheduleRenew(user)
	return user, f.returnURL, nil
}

// BeginLogout implements session.Transport: it drops the persisted session,
// cancels any scheduled renewal, pushes EventUserUnloaded, and returns the
// provider's end-session URL ("" when it doesn't advertise one).
func (c *Client) BeginLogout(ctx context.Context) (string, error) {
	const op = "oidcclient.Client.BeginLogout"
	user, err := c.store.Load()
	if err != nil {
		return "", fmt.Errorf("%s: unable to load session: %w", op, err)
	}
	if err := c.store.Clear(); err != nil {
		return "", fmt.Errorf("%s: unable to clear session: %w", op, err)
	}

	c.mu.Lock()
	c.stopTimersLocked()
	c.mu.Unlock()
	c.pushEvent(session.Event{Type: session.EventUserUnloaded})

	if c.endSessionURL == "" {
		return "", nil
	}
	logoutURL, err := url.Parse(c.endSessionURL)
	if err != nil {
		return "", fmt.Errorf("%s: end session URL is invalid: %w", op, err)
	}
	q := logoutURL.Query()
	if user != nil && user.IDToken != "" {
		q.Set("id_token_hint", string(user.IDToken))
	}
	if c.cfg.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", c.cfg.PostLogoutRedirectURL)
	}
	logoutURL.RawQuery = q.Encode()
	return logoutURL.String(), nil
}

// RenewToken implements session.Transport: a refresh-grant renewal of the
// stored session.
func (c *Client) RenewToken(ctx context.Context) (*session.User, error) {
	const op = "oidcclient.Client.RenewToken"
	user, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to load session: %w", op, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%s: %w", op, session.ErrNoSession)
	}
	if user.RefreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, session.ErrNoRefreshToken)
	}

	oidcCtx := HTTPClientContext(ctx, c.httpClient)
	ts := c.oauth2Cfg.TokenSource(oidcCtx, &oauth2.Token{RefreshToken: string(user.RefreshToken)})
	oauth2Token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to refresh token with provider: %w", op, err)
	}

	renewed, err := c.userFromRefreshedToken(oidcCtx, oauth2Token, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.store.Save(renewed); err != nil {
		return nil, fmt.Errorf("%s: unable to persist session: %w", op, err)
	}
	c.scheduleRenew(renewed)
	return renewed, nil
}

// StoredUser implements session.Transport: it recovers the persisted
// session, if any, and schedules its renewal.
func (c *Client) StoredUser(ctx context.Context) (*session.User, error) {
	const op = "oidcclient.Client.StoredUser"
	user, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user != nil && !user.Expired() {
		c.scheduleRenew(user)
	}
	return user, nil
}

// userFromToken builds a session.User from a code-exchange token: the
// id_token is verified (signature, audience) and its nonce must match the
// flow's.
func (c *Client) userFromToken(ctx context.Context, oauth2Token *oauth2.Token, nonce string) (*session.User, error) {
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("id_token is missing from auth code exchange: %w", session.ErrMissingIDToken)
	}
	idToken, err := c.provider.Verifier(&oidc.Config{ClientID: c.cfg.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("id_token failed verification: %w", err)
	}
	if idToken.Nonce != nonce {
		return nil, fmt.Errorf("id_token nonce and flow nonce are not equal: %w", session.ErrInvalidNonce)
	}
	var profile map[string]interface{}
	if err := idToken.Claims(&profile); err != nil {
		return nil, fmt.Errorf("unable to parse id_token claims: %w", err)
	}
	return &session.User{
		Subject:      idToken.Subject,
		IDToken:      session.IDToken(rawIDToken),
		AccessToken:  session.AccessToken(oauth2Token.AccessToken),
		RefreshToken: session.RefreshToken(oauth2Token.RefreshToken),
		Profile:      profile,
		ExpiresAt:    oauth2Token.Expiry,
	}, nil
}

// userFromRefreshedToken builds a session.User from a refresh-grant token.
// A refreshed id_token is verified without a nonce check (refresh responses
// carry none); when the provider omits the id_token, the previous identity
// claims are kept.
func (c *Client) userFromRefreshedToken(ctx context.Context, oauth2Token *oauth2.Token, prev *session.User) (*session.User, error) {
	renewed := &session.User{
		Subject:      prev.Subject,
		IDToken:      prev.IDToken,
		AccessToken:  session.AccessToken(oauth2Token.AccessToken),
		RefreshToken: prev.RefreshToken,
		Profile:      prev.Profile,
		ExpiresAt:    oauth2Token.Expiry,
	}
	if oauth2Token.RefreshToken != "" {
		renewed.RefreshToken = session.RefreshToken(oauth2Token.RefreshToken)
	}
	if rawIDToken, ok := oauth2Token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := c.provider.Verifier(&oidc.Config{ClientID: c.cfg.ClientID}).Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("refreshed id_token failed verification: %w", err)
		}
		var profile map[string]interface{}
		if err := idToken.Claims(&profile); err != nil {
			return nil, fmt.Errorf("unable to parse refreshed id_token claims: %w", err)
		}
		renewed.Subject = idToken.Subject
		renewed.IDToken = session.IDToken(rawIDToken)
		renewed.Profile = profile
	}
	return renewed, nil
}

// scheduleRenew arms the silent-renew timer ahead of the user's expiry (and
// the expiry watcher behind it). No-op unless AutomaticSilentRenew.
func (c *Client) scheduleRenew(user *session.User) {
	if !c.cfg.AutomaticSilentRenew || user.ExpiresAt.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()

	wait := time.Until(user.ExpiresAt.Add(-renewAhead))
	if wait < 0 {
		wait = 0
	}
	c.renewTimer = time.AfterFunc(wait, c.autoRenew)
}

// autoRenew is the silent-renew timer body: a successful renewal is pushed
// as EventUserLoaded, a failure as EventRenewFailed followed by an armed
// expiry watcher that pushes EventTokenExpired if the token runs out before
// anything else renews it.
func (c *Client) autoRenew() {
	select {
	case <-c.backgroundCtx.Done():
		return
	default:
	}
	user, err := c.RenewToken(c.backgroundCtx)
	if err != nil {
		c.logger.Error("silent renew failed", "error", err)
		c.pushEvent(session.Event{Type: session.EventRenewFailed, Err: err})
		c.watchExpiry()
		return
	}
	c.logger.Debug("silent renew succeeded", "subject", user.Subject)
	c.pushEvent(session.Event{Type: session.EventUserLoaded, User: user})
}

// watchExpiry arms a timer that fires EventTokenExpired once the stored
// session's token has run out, unless a renewal replaced it meanwhile.
func (c *Client) watchExpiry() {
	user, err := c.store.Load()
	if err != nil || user == nil || user.ExpiresAt.IsZero() {
		return
	}
	wait := time.Until(user.ExpiresAt)
	if wait < 0 {
		wait = 0
	}
	c.mu.Lock()
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
	}
	c.expiryTimer = time.AfterFunc(wait, func() {
		select {
		case <-c.backgroundCtx.Done():
			return
		default:
		}
		current, err := c.store.Load()
		if err != nil || current == nil || !current.Expired() {
			return
		}
		c.logger.Warn("access token expired without renewal", "subject", current.Subject)
		c.pushEvent(session.Event{Type: session.EventTokenExpired})
	})
	c.mu.Unlock()
}

func (c *Client) stopTimersLocked() {
	if c.renewTimer != nil {
		c.renewTimer.Stop()
		c.renewTimer = nil
	}
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
}

// pushEvent delivers an event without ever blocking a timer goroutine: with
// a wedged consumer the event is dropped and logged. Sends synchronize with
// Close through c.mu so a shutdown can never race a send.
func (c *Client) pushEvent(ev session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event channel full, dropping event", "type", ev.Type)
	}
}

// newID generates an ID with a prefix, suitable for a flow id or nonce.
func newID(prefix string) (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", session.ErrIDGeneratorFailed)
	}
	return fmt.Sprintf("%s_%s", prefix, id), nil
}

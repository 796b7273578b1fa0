package session

import (
	"encoding/json"
	"time"
)

const expirySkew = 10 * time.Second

// IDToken is an oidc id_token
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token
func (t IDToken) String() string {
	return RedactedIDToken
}

// MarshalJSON will redact the token
func (t IDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIDToken)
}

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}

// User represents an authenticated principal: its tokens and the identity
// claims carried by the id_token (and optionally userinfo). A Manager holds
// at most one User at a time.
type User struct {
	// Subject is the "sub" claim, the principal's stable identifier.
	Subject string

	// IDToken is the raw oidc id_token.
	IDToken IDToken

	// AccessToken is the oauth access_token.
	AccessToken AccessToken

	// RefreshToken is the oauth refresh_token, when the provider issued one.
	RefreshToken RefreshToken

	// Profile contains the identity claims, keyed by claim name.
	Profile map[string]interface{}

	// ExpiresAt is the access_token expiry.
	ExpiresAt time.Time
}

// Expired reports whether the user's access token has expired, allowing for
// a small clock skew. A zero ExpiresAt never expires.
func (u *User) Expired() bool {
	if u == nil {
		return true
	}
	if u.ExpiresAt.IsZero() {
		return false
	}
	return u.ExpiresAt.Round(0).Before(time.Now().Add(expirySkew))
}

// Valid reports whether the user has a usable, unexpired access token.
func (u *User) Valid() bool {
	if u == nil {
		return false
	}
	if u.AccessToken == "" {
		return false
	}
	return !u.Expired()
}

// copyUser returns a shallow copy with its own Profile map, so callers can
// never mutate manager-internal state through a returned User.
func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Profile != nil {
		cp.Profile = make(map[string]interface{}, len(u.Profile))
		for k, v := range u.Profile {
			cp.Profile[k] = v
		}
	}
	return &cp
}

package session

import (
	"errors"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed = errors.New("id generation failed")
	ErrExpiredFlow       = errors.New("login flow is expired")
	ErrUnknownFlow       = errors.New("login flow not found")
	ErrMissingIDToken    = errors.New("id_token is missing")
	ErrInvalidNonce      = errors.New("invalid nonce")
	ErrLoginFailed       = errors.New("login failed")
	ErrNoSession         = errors.New("no stored session")
	ErrNoRefreshToken    = errors.New("no refresh token")
)

// Fixed messages surfaced through the Snapshot.Error field. The manager
// records one of these for every absorbed failure; callers that need the
// underlying cause must use HandleCallback, the only propagating operation.
const (
	MsgInitFailed     = "Failed to initialize authentication"
	MsgLoginFailed    = "Failed to initiate login"
	MsgCallbackFailed = "Failed to complete login"
	MsgLogoutFailed   = "Failed to logout"
	MsgRenewFailed    = "Failed to renew token"
	MsgSilentRenew    = "Session renewal failed"
)

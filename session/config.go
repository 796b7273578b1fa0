package session

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/omnifex/identity/internal/strutils"
)

type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// DefaultRolesClaim is the claim key used to derive a user's roles when the
// config doesn't override it.
const DefaultRolesClaim = "roles"

// Config holds the recognized options for a Manager and its Transport.
type Config struct {
	// Authority is the base URL of the identity provider. It's a
	// case-sensitive URL using the https scheme that contains scheme, host,
	// and optionally, port number and path components.
	Authority string

	// ClientID is the relying party id.
	ClientID string

	// ClientSecret is the relying party secret. Optional: public clients
	// relying on PKCE leave it empty.
	ClientSecret ClientSecret

	// RedirectURL is the URL the provider redirects to after login.
	RedirectURL string

	// PostLogoutRedirectURL is the URL the provider redirects to after
	// logout. Optional.
	PostLogoutRedirectURL string

	// Scopes is a list of additional oidc scopes to request of the provider.
	// The required "openid" scope is requested by default and should not be
	// part of this optional list.
	Scopes []string

	// SilentRenewURL is the URL used for background token renewal. Optional.
	SilentRenewURL string

	// AutomaticSilentRenew enables background token renewal ahead of expiry.
	// NewConfig defaults it to true.
	AutomaticSilentRenew bool

	// RolesClaim is the claim key interpreted as the user's roles. NewConfig
	// defaults it to DefaultRolesClaim.
	RolesClaim string

	// ExtraQueryParams are appended to every authorization request. Optional.
	ExtraQueryParams map[string]string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string

	// DefaultReturnURL is the round-trip return URL used when Login is called
	// without one. NewConfig defaults it to "/".
	DefaultReturnURL string

	// Logger is an optional logger
	Logger hclog.Logger
}

// NewConfig composes a new config for a Manager.
// Supported options: WithClientSecret, WithScopes, WithPostLogoutRedirectURL,
// WithSilentRenewURL, WithoutAutomaticSilentRenew, WithRolesClaim,
// WithExtraQueryParams, WithProviderCA, WithDefaultReturnURL, WithLogger
func NewConfig(authority string, clientID string, redirectURL string, opt ...Option) (*Config, error) {
	const op = "session.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Authority:             authority,
		ClientID:              clientID,
		ClientSecret:          opts.withClientSecret,
		RedirectURL:           redirectURL,
		PostLogoutRedirectURL: opts.withPostLogoutRedirectURL,
		Scopes:                strutils.RemoveDuplicatesStable(opts.withScopes, false),
		SilentRenewURL:        opts.withSilentRenewURL,
		AutomaticSilentRenew:  opts.withAutomaticSilentRenew,
		RolesClaim:            opts.withRolesClaim,
		ExtraQueryParams:      opts.withExtraQueryParams,
		ProviderCA:            opts.withProviderCA,
		DefaultReturnURL:      opts.withDefaultReturnURL,
		Logger:                opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the config. It collects every problem found, rather than stopping
// at the first, so a misconfigured host sees the full list at once. It
// verifies the authority parses, but doesn't verify it's discoverable via an
// http request.
func (c *Config) Validate() error {
	const op = "session.Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	switch {
	case c.Authority == "":
		result = multierror.Append(result, fmt.Errorf("%s: authority is empty: %w", op, ErrInvalidParameter))
	default:
		u, err := url.Parse(c.Authority)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("%s: authority %s is invalid: %w", op, c.Authority, err))
		case !strutils.StrListContains([]string{"https", "http"}, u.Scheme):
			result = multierror.Append(result, fmt.Errorf("%s: authority %s scheme is not http or https: %w", op, c.Authority, ErrInvalidParameter))
		}
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter))
	}
	if c.RolesClaim == "" {
		result = multierror.Append(result, fmt.Errorf("%s: roles claim is empty: %w", op, ErrInvalidParameter))
	}
	for k := range c.ExtraQueryParams {
		if k == "" {
			result = multierror.Append(result, fmt.Errorf("%s: extra query param with empty key: %w", op, ErrInvalidParameter))
		}
	}
	return result.ErrorOrNil()
}

// configOptions is the set of available options
type configOptions struct {
	withClientSecret          ClientSecret
	withScopes                []string
	withPostLogoutRedirectURL string
	withSilentRenewURL        string
	withAutomaticSilentRenew  bool
	withRolesClaim            string
	withExtraQueryParams      map[string]string
	withProviderCA            string
	withDefaultReturnURL      string
	withLogger                hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{
		withAutomaticSilentRenew: true,
		withRolesClaim:           DefaultRolesClaim,
		withDefaultReturnURL:     "/",
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClientSecret provides an optional client secret for confidential
// clients.
func WithClientSecret(s ClientSecret) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClientSecret = s
		}
	}
}

// WithScopes provides an optional list of scopes to request beyond "openid".
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithPostLogoutRedirectURL provides an optional completion URL for logout
// redirects.
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostLogoutRedirectURL = u
		}
	}
}

// WithSilentRenewURL provides an optional URL used for background token
// renewal.
func WithSilentRenewURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSilentRenewURL = u
		}
	}
}

// WithoutAutomaticSilentRenew disables background token renewal, which is on
// by default.
func WithoutAutomaticSilentRenew() Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAutomaticSilentRenew = false
		}
	}
}

// WithRolesClaim overrides the claim key used to derive a user's roles.
func WithRolesClaim(claim string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRolesClaim = claim
		}
	}
}

// WithExtraQueryParams provides optional extra key/value pairs appended to
// every authorization request.
func WithExtraQueryParams(params map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withExtraQueryParams = params
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithDefaultReturnURL overrides the return URL used when Login is called
// without one.
func WithDefaultReturnURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withDefaultReturnURL = u
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withLogger = l
		case *managerOptions:
			v.withLogger = l
		}
	}
}

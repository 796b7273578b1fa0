// identity provides framework-agnostic state managers for an OIDC-backed
// application: a session manager coordinating the authorization code flow
// through a pluggable transport, a theme manager resolving a persisted
// light/dark/system preference, and a Registry giving a process explicit
// ownership of both.
//
// See README.md
package identity

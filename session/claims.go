package session

import (
	"github.com/omnifex/identity/internal/strutils"
)

// NormalizeClaim normalizes a raw claim value into a list of strings. It's
// total over the shapes identity tokens carry: absent and non-string values
// map to an empty list, a scalar string to a single-element list, and a list
// to its string elements.
func NormalizeClaim(v interface{}) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return []string{}
		}
		return []string{t}
	case []string:
		out := make([]string, 0, len(t))
		return append(out, t...)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// claimMatches reports whether a raw claim value equals want (scalar) or
// contains want (list).
func claimMatches(v interface{}, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []string:
		return strutils.StrListContains(t, want)
	case []interface{}:
		for _, e := range t {
			if s, ok := e.(string); ok && s == want {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Roles returns the current user's roles: the configured roles claim
// normalized to a list of strings. It returns an empty list when
// unauthenticated.
func (m *Manager) Roles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rolesLocked()
}

func (m *Manager) rolesLocked() []string {
	if m.current == nil || m.current.Profile == nil {
		return []string{}
	}
	return NormalizeClaim(m.current.Profile[m.config.RolesClaim])
}

// HasRole reports whether the current user has the given role.
func (m *Manager) HasRole(role string) bool {
	return strutils.StrListContains(m.Roles(), role)
}

// HasAnyRole reports whether the current user has at least one of the given
// roles.
func (m *Manager) HasAnyRole(roles ...string) bool {
	current := m.Roles()
	for _, role := range roles {
		if strutils.StrListContains(current, role) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the current user has every one of the given
// roles.
func (m *Manager) HasAllRoles(roles ...string) bool {
	current := m.Roles()
	for _, role := range roles {
		if !strutils.StrListContains(current, role) {
			return false
		}
	}
	return true
}

// HasClaim reports whether the current user's profile carries the claim.
// With no value it checks mere presence of the claim key; with a value it
// checks scalar equality or list membership.
func (m *Manager) HasClaim(claim string, value ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Profile == nil {
		return false
	}
	v, ok := m.current.Profile[claim]
	if !ok {
		return false
	}
	if len(value) == 0 {
		return true
	}
	return claimMatches(v, value[0])
}

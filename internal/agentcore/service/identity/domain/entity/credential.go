package entity

import (
	"slices"
	"strings"
	"time"
)

// Credential is a short-lived bearer credential for one scope.
// Values are never mutated after creation; a refresh produces a new Credential.
type Credential struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Scope     []string  `json:"scope"`
}

// FreshAt reports whether the credential is still usable at now given a safety margin.
func (c *Credential) FreshAt(now time.Time, margin time.Duration) bool {
	if c == nil || c.Token == "" {
		return false
	}
	return c.ExpiresAt.Sub(now) > margin
}

// NormalizeScope trims, dedups and sorts scope entries.
func NormalizeScope(scope []string) []string {
	out := make([]string, 0, len(scope))
	for _, s := range scope {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ScopeKey is the cache key of a scope set.
func ScopeKey(scope []string) string {
	return strings.Join(NormalizeScope(scope), " ")
}

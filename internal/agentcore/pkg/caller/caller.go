// Package caller carries the identity of whoever asked for an action.
package caller

import (
	"context"
	"slices"
	"strings"
)

// Context is the identity and role metadata accompanying a tool call.
// PrincipalTags are either plain tags ("admin") or key=value pairs ("team=storage").
type Context struct {
	ActorID       string   `json:"actor_id"`
	SessionID     string   `json:"session_id"`
	PrincipalTags []string `json:"principal_tags,omitempty"`
}

// HasTag reports whether the principal carries tag, either bare or as a key.
func (c Context) HasTag(tag string) bool {
	for _, t := range c.PrincipalTags {
		if t == tag {
			return true
		}
		if k, _, ok := strings.Cut(t, "="); ok && k == tag {
			return true
		}
	}
	return false
}

// TagValue returns the value of a key=value tag. Keys compare case-insensitively
// because config loaders fold map keys to lower case.
func (c Context) TagValue(key string) (string, bool) {
	for _, t := range c.PrincipalTags {
		if k, v, ok := strings.Cut(t, "="); ok && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Clone returns a copy that shares no slices with c.
func (c Context) Clone() Context {
	c.PrincipalTags = slices.Clone(c.PrincipalTags)
	return c
}

type ctxKey struct{}

// NewContext attaches c to ctx.
func NewContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller attached to ctx, if any.
func FromContext(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(Context)
	return c, ok
}

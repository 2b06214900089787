package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
)

// ContextKeyPrincipal is the gin context key of the authenticated Principal.
const ContextKeyPrincipal = "agentcore.principal"

// Principal is who a bearer token authenticates.
type Principal struct {
	ActorID string
	Tags    []string
	// Authenticated is set when the principal came from a verified token.
	Authenticated bool
}

// TokenEntry binds one resolved token to its principal.
type TokenEntry struct {
	Token     string
	Principal Principal
}

// AuthConfig holds configuration for Bearer token authentication.
type AuthConfig struct {
	// Enabled controls whether authentication is enforced.
	Enabled bool
	Tokens  []TokenEntry
	// Default applies when authentication is disabled.
	Default Principal
}

var publicPaths = map[string]bool{
	"/ping":    true,
	"/healthz": true,
}

// BearerAuth resolves the caller's principal onto the gin context. When
// enabled, requests without a known token are rejected.
//
// Every configured token is compared in constant time, so the position of a
// match does not leak through timing.
func BearerAuth(cfg *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Set(ContextKeyPrincipal, cfg.Default)
			c.Next()
			return
		}
		if publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing Authorization header")
			return
		}
		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			abortUnauthorized(c, "invalid Authorization header format, expected 'Bearer <token>'")
			return
		}
		provided := []byte(strings.TrimSpace(authHeader[len(prefix):]))

		var (
			found bool
			match Principal
		)
		for _, e := range cfg.Tokens {
			if e.Token == "" {
				continue
			}
			if subtle.ConstantTimeCompare(provided, []byte(e.Token)) == 1 && !found {
				found = true
				match = e.Principal
			}
		}
		if !found {
			abortUnauthorized(c, "invalid bearer token")
			return
		}

		match.Authenticated = true
		c.Set(ContextKeyPrincipal, match)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
}

// PrincipalFrom returns the principal BearerAuth stored, if any.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ContextKeyPrincipal)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// CallerFrom builds the caller context of a request. An authenticated
// principal keeps its own actor; otherwise requestedActor wins over the default.
func CallerFrom(c *gin.Context, requestedActor, sessionID string) caller.Context {
	p, _ := PrincipalFrom(c)
	actor := p.ActorID
	if !p.Authenticated && requestedActor != "" {
		actor = requestedActor
	}
	return caller.Context{
		ActorID:       actor,
		SessionID:     sessionID,
		PrincipalTags: append([]string(nil), p.Tags...),
	}
}

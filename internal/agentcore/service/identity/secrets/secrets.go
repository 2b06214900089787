// Package secrets resolves named secrets such as API keys and signing keys.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
)

// Store defines how to retrieve secrets.
type Store interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// EnvPrefix is tried before the bare key by EnvStore.
const EnvPrefix = "AGENTCORE_SECRET_"

// EnvStore reads from environment variables. A key "gw/api-key" is looked up
// as AGENTCORE_SECRET_GW_API_KEY and then as GW_API_KEY.
type EnvStore struct{}

func (EnvStore) GetSecret(_ context.Context, key string) (string, error) {
	name := envName(key)
	for _, k := range []string{EnvPrefix + name, name} {
		if v := os.Getenv(k); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: env var %s not set", errno.ErrSecretNotFound, EnvPrefix+name)
}

func envName(key string) string {
	return strings.ToUpper(strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(key))
}

// StaticStore serves a fixed map, mostly for tests and inline config.
type StaticStore map[string]string

func (s StaticStore) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", errno.ErrSecretNotFound, key)
}

// ChainStore tries each store in order and returns the first hit.
type ChainStore []Store

func (c ChainStore) GetSecret(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, s := range c {
		v, err := s.GetSecret(ctx, key)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %s", errno.ErrSecretNotFound, key)
	}
	return "", errors.Join(errs...)
}

// CachedStore memoizes lookups of an inner store for a TTL. Misses are not cached.
type CachedStore struct {
	inner Store
	cache *expirable.LRU[string, string]
}

func NewCachedStore(inner Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 128
	}
	return &CachedStore{inner: inner, cache: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *CachedStore) GetSecret(ctx context.Context, key string) (string, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.GetSecret(ctx, key)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Purge drops every cached value.
func (c *CachedStore) Purge() {
	c.cache.Purge()
}

// Resolve expands a config value: "${ENV}" reads the environment, "secret:key"
// reads store, anything else is returned as is.
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	switch {
	case strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}"):
		return os.Getenv(value[2 : len(value)-1]), nil
	case strings.HasPrefix(value, "secret:"):
		if store == nil {
			return "", fmt.Errorf("%w: no secret store for %q", errno.ErrSecretNotFound, value)
		}
		return store.GetSecret(ctx, strings.TrimPrefix(value, "secret:"))
	}
	return value, nil
}

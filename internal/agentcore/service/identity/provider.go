package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
	"github.com/kiosk404/agentcore/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Exchanger performs one token exchange against the identity service.
// Errors wrapping errno.ErrScopeDenied are final; anything else is retried.
type Exchanger interface {
	Exchange(ctx context.Context, scope []string) (*entity.Credential, error)
}

// ProviderConfig tunes caching and retries.
type ProviderConfig struct {
	SafetyMargin time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	CacheSize    int
}

func (c *ProviderConfig) complete() {
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
}

// Provider hands out cached credentials per scope. Concurrent misses for the
// same scope share one exchange.
type Provider struct {
	exchanger Exchanger
	cfg       ProviderConfig
	cache     *lru.Cache[string, *entity.Credential]
	group     singleflight.Group

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// ProviderOption customizes a Provider.
type ProviderOption func(*Provider)

// WithNow replaces the clock used for freshness checks.
func WithNow(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ProviderOption {
	return func(p *Provider) { p.sleep = sleep }
}

func NewProvider(exchanger Exchanger, cfg ProviderConfig, opts ...ProviderOption) (*Provider, error) {
	if exchanger == nil {
		return nil, errors.New("identity exchanger is required")
	}
	cfg.complete()
	cache, err := lru.New[string, *entity.Credential](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		exchanger: exchanger,
		cfg:       cfg,
		cache:     cache,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetCredential returns a credential for scope, exchanging only when the cached
// one is missing or inside the safety margin.
func (p *Provider) GetCredential(ctx context.Context, scope []string) (*entity.Credential, error) {
	key := entity.ScopeKey(scope)
	if c, ok := p.cached(key); ok {
		return c, nil
	}

	ch := p.group.DoChan(key, func() (any, error) {
		if c, ok := p.cached(key); ok {
			return c, nil
		}
		// The exchange outlives any single waiter; each waiter honours its own ctx below.
		c, err := p.exchangeWithRetry(context.WithoutCancel(ctx), entity.NormalizeScope(scope))
		if err != nil {
			return nil, err
		}
		p.cache.Add(key, c)
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", errno.ErrIdentityUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entity.Credential), nil
	}
}

// Invalidate drops the cached credential of scope.
func (p *Provider) Invalidate(scope []string) {
	p.cache.Remove(entity.ScopeKey(scope))
}

func (p *Provider) cached(key string) (*entity.Credential, bool) {
	c, ok := p.cache.Get(key)
	if !ok || !c.FreshAt(p.now(), p.cfg.SafetyMargin) {
		return nil, false
	}
	return c, true
}

func (p *Provider) exchangeWithRetry(ctx context.Context, scope []string) (*entity.Credential, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		c, err := p.exchanger.Exchange(ctx, scope)
		if err == nil {
			if c == nil || c.Token == "" {
				return nil, fmt.Errorf("%w: empty token", errno.ErrIdentityUnavailable)
			}
			logger.DebugX(ModuleName, "credential issued for scope %q (expires %s)", entity.ScopeKey(scope), c.ExpiresAt.Format(time.RFC3339))
			return c, nil
		}
		if errors.Is(err, errno.ErrScopeDenied) {
			logger.WarnX(ModuleName, "scope %q denied: %v", entity.ScopeKey(scope), err)
			return nil, err
		}
		lastErr = err
		if attempt == p.cfg.MaxAttempts {
			break
		}
		backoff := p.cfg.BaseBackoff << (attempt - 1)
		logger.WarnX(ModuleName, "token exchange attempt %d/%d failed, retrying in %s: %v", attempt, p.cfg.MaxAttempts, backoff, err)
		if err := p.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}
	if errors.Is(lastErr, errno.ErrIdentityUnavailable) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", errno.ErrIdentityUnavailable, lastErr)
}

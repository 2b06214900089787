package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const ModuleName = "identity"

// Config holds the configuration for the Identity module.
// Follows K8S-style: Config → Complete() → New(ctx).
type Config struct {
	// TokenURL of the identity service; empty disables credential exchange.
	TokenURL     string
	ClientID     string
	ClientSecret string

	SafetyMargin time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	CacheSize    int
	HTTPTimeout  time.Duration

	// SecretsFile is an optional JSON object of secret values.
	SecretsFile     string
	SecretsCacheTTL time.Duration
}

type CompletedConfig struct {
	*Config
}

func (c *Config) Complete() CompletedConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.SecretsCacheTTL <= 0 {
		c.SecretsCacheTTL = 5 * time.Minute
	}
	return CompletedConfig{c}
}

// Module bundles the credential provider and the secret store.
type Module struct {
	// Provider is nil when no identity service is configured.
	Provider *Provider
	Secrets  secrets.Store
	closers  []func() error
}

func (m *Module) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c CompletedConfig) New(ctx context.Context) (*Module, error) {
	m := &Module{}

	chain := secrets.ChainStore{}
	var cached *secrets.CachedStore
	if c.SecretsFile != "" {
		fs, err := secrets.OpenFileStore(c.SecretsFile, func() {
			if cached != nil {
				cached.Purge()
			}
		})
		if err != nil {
			return nil, fmt.Errorf("open secrets file: %w", err)
		}
		m.closers = append(m.closers, fs.Close)
		chain = append(chain, fs)
	}
	chain = append(chain, secrets.EnvStore{})
	cached = secrets.NewCachedStore(chain, 128, c.SecretsCacheTTL)
	m.Secrets = cached

	if c.TokenURL == "" {
		logger.WarnX(ModuleName, "no identity token url configured, bearer and sigv4 targets will be unavailable")
		return m, nil
	}

	clientSecret, err := secrets.Resolve(ctx, m.Secrets, c.ClientSecret)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("resolve identity client secret: %w", err)
	}
	exchanger := NewOAuth2Exchanger(c.TokenURL, c.ClientID, clientSecret, &http.Client{Timeout: c.HTTPTimeout})

	provider, err := NewProvider(exchanger, ProviderConfig{
		SafetyMargin: c.SafetyMargin,
		MaxAttempts:  c.MaxAttempts,
		BaseBackoff:  c.BaseBackoff,
		CacheSize:    c.CacheSize,
	})
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	m.Provider = provider

	logger.InfoX(ModuleName, "credential provider ready (token_url=%s, client_id=%s, margin=%s, attempts=%d)",
		c.TokenURL, c.ClientID, provider.cfg.SafetyMargin, provider.cfg.MaxAttempts)
	return m, nil
}

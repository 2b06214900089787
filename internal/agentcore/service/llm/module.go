package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/service"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/provider"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const ModuleName = "llm"

// Config holds the configuration for the LLM module.
// Key fields accept "${ENV}" and "secret:key" references.
type Config struct {
	Model entity.ModelConfig
	// Fallbacks are tried in order when the primary model fails.
	Fallbacks []entity.ModelConfig

	SystemPrompt string
	MaxRetries   int
	RetryBackoff time.Duration

	// OutOfTreeRegistry adds provider builders beyond the built-in ones.
	OutOfTreeRegistry map[string]provider.Builder
}

type CompletedConfig struct {
	*Config
}

func (c *Config) Complete() CompletedConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return CompletedConfig{c}
}

type Dependencies struct {
	Secrets secrets.Store
}

// Module exposes the reasoner built on the configured chat models.
type Module struct {
	Reasoner *service.EinoReasoner
	Registry *provider.Registry
	// Primary is the resolved primary model config, keys included.
	Primary entity.ModelConfig
}

func (c CompletedConfig) New(ctx context.Context, deps Dependencies) (*Module, error) {
	registry := provider.NewInTreeRegistry()
	for name, b := range c.OutOfTreeRegistry {
		if err := registry.Register(name, b); err != nil {
			return nil, err
		}
	}
	logger.InfoX(ModuleName, "provider registry initialized with %v", registry.List())

	configs := append([]entity.ModelConfig{c.Model}, c.Fallbacks...)
	candidates := make([]service.Candidate, 0, len(configs))
	var primary entity.ModelConfig
	for i := range configs {
		cfg, err := resolveModelConfig(ctx, deps.Secrets, configs[i])
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid model config %d: %w", i, err)
		}
		chat, err := registry.Build(ctx, &cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s/%s chat model: %w", cfg.Provider, cfg.Model, err)
		}
		if i == 0 {
			primary = cfg
		}
		candidates = append(candidates, service.Candidate{Provider: cfg.Provider, Model: cfg.Model, Chat: chat})
		logger.InfoX(ModuleName, "chat model ready: %s/%s (max_tokens=%d, temperature=%g)",
			cfg.Provider, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	}

	reasoner, err := service.NewEinoReasoner(candidates,
		service.WithSystemPrompt(c.SystemPrompt),
		service.WithRetry(c.MaxRetries, c.RetryBackoff),
	)
	if err != nil {
		return nil, err
	}
	return &Module{Reasoner: reasoner, Registry: registry, Primary: primary}, nil
}

func resolveModelConfig(ctx context.Context, store secrets.Store, cfg entity.ModelConfig) (entity.ModelConfig, error) {
	refs := []*string{&cfg.APIKey, &cfg.AWSAccessKey, &cfg.AWSSecretKey, &cfg.AWSSessionToken}
	for _, ref := range refs {
		if *ref == "" {
			continue
		}
		v, err := secrets.Resolve(ctx, store, *ref)
		if err != nil {
			return cfg, fmt.Errorf("resolve %s credentials: %w", cfg.Provider, err)
		}
		*ref = v
	}
	return cfg, nil
}

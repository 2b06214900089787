// Package provider builds tool-calling chat models for the configured provider.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
)

// Builder creates a chat model from a resolved model config.
type Builder func(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error)

// Registry is a thread-safe registry of provider builders.
type Registry struct {
	mu       sync.RWMutex
	registry map[string]Builder
}

// NewRegistry creates a new instance of the Registry.
func NewRegistry() *Registry {
	return &Registry{
		registry: make(map[string]Builder),
	}
}

// Register adds a builder. Returns an error if the name is already taken.
func (r *Registry) Register(name string, b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.registry[name]; ok {
		return fmt.Errorf("provider %s is already registered", name)
	}
	r.registry[name] = b
	return nil
}

// MustRegister is Register that panics on a duplicate name.
func (r *Registry) MustRegister(name string, b Builder) {
	if err := r.Register(name, b); err != nil {
		panic(err)
	}
}

// Get returns the builder for the given name.
func (r *Registry) Get(name string) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("provider %s is not registered", name)
	}
	return b, nil
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build looks up cfg.Provider and builds its model.
func (r *Registry) Build(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error) {
	b, err := r.Get(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return b(ctx, cfg)
}

// NewInTreeRegistry registers every built-in provider.
func NewInTreeRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(Bedrock, NewBedrockChatModel)
	r.MustRegister(Anthropic, NewAnthropicChatModel)
	r.MustRegister(OpenAI, NewOpenAIChatModel)
	r.MustRegister(DeepSeek, NewDeepSeekChatModel)
	r.MustRegister(Qwen, NewQwenChatModel)
	r.MustRegister(Ollama, NewOllamaChatModel)
	r.MustRegister(Gemini, NewGeminiChatModel)
	return r
}

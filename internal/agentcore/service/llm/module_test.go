package llm

import (
	"context"
	"errors"
	"testing"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/provider"
)

type echoChat struct{ key string }

func (e *echoChat) Generate(context.Context, []*schema.Message, ...einoModel.Option) (*schema.Message, error) {
	return schema.AssistantMessage(e.key, nil), nil
}

func (e *echoChat) Stream(context.Context, []*schema.Message, ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (e *echoChat) WithTools([]*schema.ToolInfo) (einoModel.ToolCallingChatModel, error) {
	return e, nil
}

func fakeBuilder(_ context.Context, cfg *entity.ModelConfig) (einoModel.ToolCallingChatModel, error) {
	return &echoChat{key: cfg.APIKey}, nil
}

func TestNewResolvesSecretsAndBuilds(t *testing.T) {
	cfg := &Config{
		Model: entity.ModelConfig{
			Provider: "fake", Model: "m1", MaxTokens: 100, Temperature: 0.5, APIKey: "secret:llm/key",
		},
		OutOfTreeRegistry: map[string]provider.Builder{"fake": fakeBuilder},
	}
	m, err := cfg.Complete().New(context.Background(), Dependencies{
		Secrets: secrets.StaticStore{"llm/key": "sk-test"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Primary.APIKey != "sk-test" {
		t.Errorf("api key not resolved: %q", m.Primary.APIKey)
	}

	action, err := m.Reasoner.Next(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if action.Text != "sk-test" {
		t.Errorf("model built with wrong key: %q", action.Text)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		model entity.ModelConfig
	}{
		{"missing provider", entity.ModelConfig{Model: "m", MaxTokens: 10}},
		{"zero max tokens", entity.ModelConfig{Provider: "fake", Model: "m"}},
		{"temperature", entity.ModelConfig{Provider: "fake", Model: "m", MaxTokens: 10, Temperature: 3}},
		{"unknown provider", entity.ModelConfig{Provider: "nope", Model: "m", MaxTokens: 10}},
		{"missing secret", entity.ModelConfig{Provider: "fake", Model: "m", MaxTokens: 10, APIKey: "secret:absent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Model: tt.model, OutOfTreeRegistry: map[string]provider.Builder{"fake": fakeBuilder}}
			if _, err := cfg.Complete().New(context.Background(), Dependencies{Secrets: secrets.StaticStore{}}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestInTreeProviders(t *testing.T) {
	want := []string{"anthropic", "bedrock", "deepseek", "gemini", "ollama", "openai", "qwen"}
	got := provider.NewInTreeRegistry().List()
	if len(got) != len(want) {
		t.Fatalf("providers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("providers[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

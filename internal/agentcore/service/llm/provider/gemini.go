package provider

import (
	"context"
	"fmt"

	"github.com/bytedance/gg/gptr"
	einoGemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
	"google.golang.org/genai"
)

const Gemini = "gemini"

// NewGeminiChatModel uses the Gemini API backend; BaseURL overrides the endpoint.
func NewGeminiChatModel(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: "https://generativelanguage.googleapis.com/",
		},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client for %s: %w", cfg.Model, err)
	}
	return einoGemini.NewChatModel(ctx, &einoGemini.Config{
		Client:      client,
		Model:       cfg.Model,
		MaxTokens:   gptr.Of(cfg.MaxTokens),
		Temperature: gptr.Of(cfg.Temperature),
	})
}

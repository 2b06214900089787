package provider

import (
	"context"

	"github.com/bytedance/gg/gptr"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
)

const OpenAI = "openai"

// NewOpenAIChatModel covers OpenAI and any OpenAI-compatible endpoint set in BaseURL.
func NewOpenAIChatModel(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error) {
	conf := &einoOpenAI.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		MaxTokens:   gptr.Of(cfg.MaxTokens),
		Temperature: gptr.Of(cfg.Temperature),
		ResponseFormat: &einoOpenAI.ChatCompletionResponseFormat{
			Type: einoOpenAI.ChatCompletionResponseFormatTypeText,
		},
	}
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return einoOpenAI.NewChatModel(ctx, conf)
}

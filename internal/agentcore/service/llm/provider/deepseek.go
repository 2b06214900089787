package provider

import (
	"context"

	einoDeepseek "github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino/components/model"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
)

const DeepSeek = "deepseek"

func NewDeepSeekChatModel(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error) {
	conf := &einoDeepseek.ChatModelConfig{
		APIKey:             cfg.APIKey,
		Model:              cfg.Model,
		MaxTokens:          cfg.MaxTokens,
		Temperature:        cfg.Temperature,
		ResponseFormatType: einoDeepseek.ResponseFormatTypeText,
	}
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return einoDeepseek.NewChatModel(ctx, conf)
}

package provider

import (
	"context"

	"github.com/bytedance/gg/gptr"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	einoQwen "github.com/cloudwego/eino-ext/components/model/qwen"
	"github.com/cloudwego/eino/components/model"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
)

const Qwen = "qwen"

const defaultQwenBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

func NewQwenChatModel(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error) {
	conf := &einoQwen.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     defaultQwenBaseURL,
		Model:       cfg.Model,
		MaxTokens:   gptr.Of(cfg.MaxTokens),
		Temperature: gptr.Of(cfg.Temperature),
		ResponseFormat: &einoOpenAI.ChatCompletionResponseFormat{
			Type: einoOpenAI.ChatCompletionResponseFormatTypeText,
		},
	}
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return einoQwen.NewChatModel(ctx, conf)
}

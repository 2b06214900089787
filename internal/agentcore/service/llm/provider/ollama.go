package provider

import (
	"context"

	einoOllama "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
)

const Ollama = "ollama"

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

func NewOllamaChatModel(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error) {
	conf := &einoOllama.ChatModelConfig{
		BaseURL: defaultOllamaBaseURL,
		Model:   cfg.Model,
		Options: &einoOllama.Options{
			Temperature: cfg.Temperature,
		},
	}
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return einoOllama.NewChatModel(ctx, conf)
}

package provider

import (
	"context"
	"os"

	"github.com/bytedance/gg/gptr"
	einoClaude "github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm/domain/entity"
)

const (
	Anthropic = "anthropic"
	Bedrock   = "bedrock"
)

// NewAnthropicChatModel talks to the Anthropic messages API directly.
func NewAnthropicChatModel(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error) {
	conf := claudeConfig(cfg)
	conf.APIKey = cfg.APIKey
	if cfg.BaseURL != "" {
		conf.BaseURL = gptr.Of(cfg.BaseURL)
	}
	return einoClaude.NewChatModel(ctx, conf)
}

// NewBedrockChatModel reaches Claude through Amazon Bedrock in cfg.Region.
func NewBedrockChatModel(ctx context.Context, cfg *entity.ModelConfig) (model.ToolCallingChatModel, error) {
	conf := claudeConfig(cfg)
	conf.ByBedrock = true
	conf.Region = cfg.Region
	if conf.Region == "" {
		conf.Region = os.Getenv("AWS_REGION")
	}
	conf.AccessKey = cfg.AWSAccessKey
	conf.SecretAccessKey = cfg.AWSSecretKey
	conf.SessionToken = cfg.AWSSessionToken
	conf.Profile = cfg.AWSProfile
	return einoClaude.NewChatModel(ctx, conf)
}

func claudeConfig(cfg *entity.ModelConfig) *einoClaude.Config {
	return &einoClaude.Config{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: gptr.Of(cfg.Temperature),
	}
}

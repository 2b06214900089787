package options

import (
	"time"

	"github.com/spf13/pflag"
)

// ModelOptions selects the chat model. Key fields accept "${ENV}" and
// "secret:key" references.
type ModelOptions struct {
	Provider        string        `json:"provider"          mapstructure:"provider"          validate:"oneof=bedrock anthropic openai deepseek qwen ollama gemini"`
	Model           string        `json:"model"             mapstructure:"model"             validate:"required"`
	Region          string        `json:"region"            mapstructure:"region"`
	MaxTokens       int           `json:"max-tokens"        mapstructure:"max-tokens"        validate:"min=1"`
	Temperature     float32       `json:"temperature"       mapstructure:"temperature"       validate:"gte=0,lte=2"`
	BaseURL         string        `json:"base-url"          mapstructure:"base-url"          validate:"omitempty,url"`
	APIKey          string        `json:"-"                 mapstructure:"api-key"`
	AWSAccessKey    string        `json:"-"                 mapstructure:"aws-access-key"`
	AWSSecretKey    string        `json:"-"                 mapstructure:"aws-secret-key"`
	AWSSessionToken string        `json:"-"                 mapstructure:"aws-session-token"`
	AWSProfile      string        `json:"aws-profile"       mapstructure:"aws-profile"`
	MaxRetries      int           `json:"max-retries"       mapstructure:"max-retries"       validate:"min=0"`
	RetryBackoff    time.Duration `json:"retry-backoff"     mapstructure:"retry-backoff"`
}

func NewModelOptions() *ModelOptions {
	return &ModelOptions{
		Provider:     "bedrock",
		Model:        "anthropic.claude-3-sonnet-20240229-v1:0",
		Region:       "us-east-1",
		MaxTokens:    4096,
		Temperature:  0.7,
		MaxRetries:   2,
		RetryBackoff: 500 * time.Millisecond,
	}
}

func (o *ModelOptions) Validate() []error {
	return validateStruct("models", o)
}

func (o *ModelOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Provider, "models.provider", o.Provider, "Model provider: bedrock, anthropic, openai, deepseek, qwen, ollama or gemini.")
	fs.StringVar(&o.Model, "models.model", o.Model, "Model identifier.")
	fs.StringVar(&o.Region, "models.region", o.Region, "Cloud region of the model endpoint (bedrock).")
	fs.IntVar(&o.MaxTokens, "models.max-tokens", o.MaxTokens, "Maximum tokens generated per model call.")
	fs.Float32Var(&o.Temperature, "models.temperature", o.Temperature, "Sampling temperature.")
	fs.StringVar(&o.BaseURL, "models.base-url", o.BaseURL, "Override the provider endpoint.")
	fs.StringVar(&o.APIKey, "models.api-key", o.APIKey, "Provider API key, ${ENV} or secret:key.")
	fs.StringVar(&o.AWSProfile, "models.aws-profile", o.AWSProfile, "Shared AWS config profile (bedrock).")
	fs.IntVar(&o.MaxRetries, "models.max-retries", o.MaxRetries, "Retries of a model call on transient failures.")
	fs.DurationVar(&o.RetryBackoff, "models.retry-backoff", o.RetryBackoff, "Base backoff between model retries.")
}

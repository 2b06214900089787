package entity

import (
	"fmt"
)

// ModelConfig selects and tunes the chat model behind the reasoner.
// Secrets are already resolved when a ModelConfig reaches a provider builder.
type ModelConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Region      string  `json:"region,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	BaseURL     string  `json:"base_url,omitempty"`
	APIKey      string  `json:"-"`

	// AWS credentials for bedrock. Empty keys fall back to the default chain.
	AWSAccessKey    string `json:"-"`
	AWSSecretKey    string `json:"-"`
	AWSSessionToken string `json:"-"`
	AWSProfile      string `json:"aws_profile,omitempty"`
}

// Validate checks the values every provider relies on.
func (c *ModelConfig) Validate() error {
	switch {
	case c.Provider == "":
		return fmt.Errorf("model provider is required")
	case c.Model == "":
		return fmt.Errorf("model identifier is required")
	case c.MaxTokens <= 0:
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature)
	}
	return nil
}

package remote

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/pkg/errno"
	"github.com/kiosk404/agentcore/pkg/utils/json"
)

const (
	DefaultAPIKeyHeader   = "x-api-key"
	DefaultTimeout        = 30 * time.Second
	DefaultAccessKeyRef   = "aws/access-key-id"
	DefaultSecretKeyRef   = "aws/secret-access-key"
	DefaultSigV4Service   = "bedrock-agentcore"
	defaultSigV4RegionEnv = "AWS_REGION"
)

// GatewayConfig lists the remote targets tools are reached through.
//
// File format (gateway.json):
//
//	{
//	  "targets": {
//	    "resource-metrics-iam-target": {
//	      "url": "https://gateway.example.com/mcp",
//	      "auth": "bearer",
//	      "scopes": ["gateway:invoke"]
//	    }
//	  }
//	}
type GatewayConfig struct {
	Targets map[string]*TargetConfig `json:"targets"`
}

// TargetConfig defines one remote target.
type TargetConfig struct {
	// URL is the MCP streamable-HTTP endpoint of the target.
	URL string `json:"url"`
	// Auth is one of "bearer", "sigv4", "api_key". Default: "bearer".
	Auth entity.AuthMode `json:"auth,omitempty"`
	// Scopes are requested from the identity service for bearer and sigv4 targets.
	Scopes []string `json:"scopes,omitempty"`
	// Timeout per HTTP request, as a Go duration string. Default: "30s".
	Timeout string `json:"timeout,omitempty"`

	SigV4  *SigV4Config  `json:"sigv4,omitempty"`
	APIKey *APIKeyConfig `json:"api_key,omitempty"`

	// ToolFilter optionally limits the discovered tools to these names.
	ToolFilter []string `json:"tool_filter,omitempty"`
	// Tools declares the target's tools statically and skips discovery.
	Tools []StaticTool `json:"tools,omitempty"`

	timeout time.Duration
}

// SigV4Config names the signing service and the secret keys of the signing credentials.
type SigV4Config struct {
	Service         string `json:"service,omitempty"`
	Region          string `json:"region,omitempty"`
	AccessKeySecret string `json:"access_key_secret,omitempty"`
	SecretKeySecret string `json:"secret_key_secret,omitempty"`
}

// APIKeyConfig names the secret holding a static key and the header carrying it.
type APIKeyConfig struct {
	Header string `json:"header,omitempty"`
	Secret string `json:"secret"`
}

// StaticTool is a tool declared in the gateway config.
type StaticTool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"input_schema,omitempty"`
}

// LoadGatewayConfig loads the gateway configuration from a JSON file.
// If the file does not exist, returns an empty config (no error).
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	if path == "" {
		return NewGatewayConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewGatewayConfig(), nil
		}
		return nil, fmt.Errorf("failed to read gateway config file %q: %w", path, err)
	}

	cfg := &GatewayConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse gateway config file %q: %w", path, err)
	}
	if cfg.Targets == nil {
		cfg.Targets = make(map[string]*TargetConfig)
	}
	return cfg, nil
}

func NewGatewayConfig() *GatewayConfig {
	return &GatewayConfig{Targets: make(map[string]*TargetConfig)}
}

// Complete fills defaults.
func (c *GatewayConfig) Complete() {
	for _, t := range c.Targets {
		if t == nil {
			continue
		}
		if t.Auth == "" {
			t.Auth = entity.AuthBearer
		}
		t.timeout = DefaultTimeout
		if d, err := time.ParseDuration(t.Timeout); err == nil && d > 0 {
			t.timeout = d
		}
		switch t.Auth {
		case entity.AuthSigV4:
			if t.SigV4 == nil {
				t.SigV4 = &SigV4Config{}
			}
			if t.SigV4.Service == "" {
				t.SigV4.Service = DefaultSigV4Service
			}
			if t.SigV4.Region == "" {
				t.SigV4.Region = os.Getenv(defaultSigV4RegionEnv)
			}
			if t.SigV4.AccessKeySecret == "" {
				t.SigV4.AccessKeySecret = DefaultAccessKeyRef
			}
			if t.SigV4.SecretKeySecret == "" {
				t.SigV4.SecretKeySecret = DefaultSecretKeyRef
			}
		case entity.AuthAPIKey:
			if t.APIKey == nil {
				t.APIKey = &APIKeyConfig{}
			}
			if t.APIKey.Header == "" {
				t.APIKey.Header = DefaultAPIKeyHeader
			}
		}
	}
}

// Validate checks the configuration for obvious errors.
func (c *GatewayConfig) Validate() []error {
	var errs []error
	for _, name := range c.Names() {
		t := c.Targets[name]
		if t == nil {
			errs = append(errs, fmt.Errorf("%w: targets.%s is empty", errno.ErrInvalidGateway, name))
			continue
		}
		if err := entity.ValidateName(name); err != nil {
			errs = append(errs, fmt.Errorf("targets.%s: %w", name, err))
		}
		if name == entity.LocalTarget {
			errs = append(errs, fmt.Errorf("%w: target name %q is reserved", errno.ErrInvalidGateway, name))
		}
		if t.URL == "" {
			errs = append(errs, fmt.Errorf("%w: targets.%s: url is required", errno.ErrInvalidGateway, name))
		}
		if t.Auth != "" && !t.Auth.Valid() {
			errs = append(errs, fmt.Errorf("%w: targets.%s: unsupported auth %q (must be 'bearer', 'sigv4' or 'api_key')", errno.ErrInvalidGateway, name, t.Auth))
		}
		if t.Timeout != "" {
			if _, err := time.ParseDuration(t.Timeout); err != nil {
				errs = append(errs, fmt.Errorf("%w: targets.%s: timeout: %v", errno.ErrInvalidGateway, name, err))
			}
		}
		if t.Auth == entity.AuthAPIKey && (t.APIKey == nil || t.APIKey.Secret == "") {
			errs = append(errs, fmt.Errorf("%w: targets.%s: api_key.secret is required for api_key auth", errno.ErrInvalidGateway, name))
		}
		if t.Auth == entity.AuthSigV4 && t.SigV4 != nil && t.SigV4.Region == "" {
			errs = append(errs, fmt.Errorf("%w: targets.%s: sigv4.region is required", errno.ErrInvalidGateway, name))
		}
		for _, st := range t.Tools {
			if err := entity.ValidateName(st.Name); err != nil {
				errs = append(errs, fmt.Errorf("targets.%s.tools: %w", name, err))
			}
		}
	}
	return errs
}

// Names returns the target names sorted.
func (c *GatewayConfig) Names() []string {
	names := make([]string, 0, len(c.Targets))
	for n := range c.Targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

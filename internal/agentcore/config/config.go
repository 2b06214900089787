package config

import (
	"github.com/kiosk404/agentcore/internal/agentcore/options"
)

// Config is the running configuration structure of the agentcore service.
type Config struct {
	*options.Options
}

// CreateConfigFromOptions creates a running configuration instance based
// on a given agentcore command line or configuration file option.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	return &Config{opts}, nil
}

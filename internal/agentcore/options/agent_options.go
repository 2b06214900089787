package options

import (
	"time"

	"github.com/spf13/pflag"
)

// AgentOptions configures the reasoning loop.
type AgentOptions struct {
	Name         string        `json:"name"          mapstructure:"name"          validate:"required"`
	MaxSteps     int           `json:"max-steps"     mapstructure:"max-steps"     validate:"min=1"`
	RunTimeout   time.Duration `json:"run-timeout"   mapstructure:"run-timeout"   validate:"gt=0"`
	SystemPrompt string        `json:"system-prompt" mapstructure:"system-prompt"`
}

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		Name:       "aws-resource-manager",
		MaxSteps:   10,
		RunTimeout: 5 * time.Minute,
		SystemPrompt: "You are an operations assistant. Use the available tools to answer " +
			"questions about cloud resources. If a tool call fails, explain what went wrong.",
	}
}

func (o *AgentOptions) Validate() []error {
	return validateStruct("agent", o)
}

func (o *AgentOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "agent.name", o.Name, "Agent name reported in invocation metadata.")
	fs.IntVar(&o.MaxSteps, "agent.max-steps", o.MaxSteps, "Maximum tool dispatches per invocation.")
	fs.DurationVar(&o.RunTimeout, "agent.run-timeout", o.RunTimeout, "Deadline of a single invocation.")
	fs.StringVar(&o.SystemPrompt, "agent.system-prompt", o.SystemPrompt, "System prompt given to the model.")
}

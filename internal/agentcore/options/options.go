package options

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	genericoptions "github.com/kiosk404/agentcore/internal/pkg/options"
	"github.com/kiosk404/agentcore/internal/pkg/server"
	"github.com/kiosk404/agentcore/pkg/utils/cliflag"
	"github.com/kiosk404/agentcore/pkg/utils/json"
)

type Options struct {
	GRPCOptions             *genericoptions.GRPCOptions      `json:"grpc"     mapstructure:"grpc"`
	GenericServerRunOptions *genericoptions.ServerRunOptions `json:"serving"  mapstructure:"serving"`
	LogOptions              *genericoptions.LogOptions       `json:"log"      mapstructure:"log"`
	AgentOptions            *AgentOptions                    `json:"agent"    mapstructure:"agent"`
	ModelOptions            *ModelOptions                    `json:"models"   mapstructure:"models"`
	PolicyOptions           *PolicyOptions                   `json:"policy"   mapstructure:"policy"`
	IdentityOptions         *IdentityOptions                 `json:"identity" mapstructure:"identity"`
	SecretsOptions          *SecretsOptions                  `json:"secrets"  mapstructure:"secrets"`
	MemoryOptions           *MemoryOptions                   `json:"memory"   mapstructure:"memory"`
	GatewayOptions          *GatewayOptions                  `json:"gateway"  mapstructure:"gateway"`
	AWSOptions              *AWSOptions                      `json:"aws"      mapstructure:"aws"`
	AuthOptions             *AuthOptions                     `json:"auth"     mapstructure:"auth"`
}

func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	o.GRPCOptions.AddFlags(fss.FlagSet("grpc"))
	o.GenericServerRunOptions.AddFlags(fss.FlagSet("generic"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.AgentOptions.AddFlags(fss.FlagSet("agent"))
	o.ModelOptions.AddFlags(fss.FlagSet("models"))
	o.PolicyOptions.AddFlags(fss.FlagSet("policy"))
	o.IdentityOptions.AddFlags(fss.FlagSet("identity"))
	o.SecretsOptions.AddFlags(fss.FlagSet("secrets"))
	o.MemoryOptions.AddFlags(fss.FlagSet("memory"))
	o.GatewayOptions.AddFlags(fss.FlagSet("gateway"))
	o.AWSOptions.AddFlags(fss.FlagSet("aws"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	return fss
}

func NewOptions() *Options {
	return &Options{
		GRPCOptions:             genericoptions.NewGRPCOptions(),
		GenericServerRunOptions: genericoptions.NewServerRunOptions(),
		LogOptions:              genericoptions.NewLogOptions(),
		AgentOptions:            NewAgentOptions(),
		ModelOptions:            NewModelOptions(),
		PolicyOptions:           NewPolicyOptions(),
		IdentityOptions:         NewIdentityOptions(),
		SecretsOptions:          NewSecretsOptions(),
		MemoryOptions:           NewMemoryOptions(),
		GatewayOptions:          NewGatewayOptions(),
		AWSOptions:              NewAWSOptions(),
		AuthOptions:             NewAuthOptions(),
	}
}

// ApplyTo applies the run options to the method receiver and returns self.
func (o *Options) ApplyTo(c *server.Config) error {
	return o.GenericServerRunOptions.ApplyTo(c)
}

func (o *Options) String() string {
	data, _ := json.Marshal(o)

	return string(data)
}

// Complete set default Options.
func (o *Options) Complete() error {
	o.AuthOptions.Complete()
	return nil
}

// Validate checks every option group.
func (o *Options) Validate() []error {
	var errs []error
	errs = append(errs, o.GRPCOptions.Validate()...)
	errs = append(errs, o.GenericServerRunOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.AgentOptions.Validate()...)
	errs = append(errs, o.ModelOptions.Validate()...)
	errs = append(errs, o.PolicyOptions.Validate()...)
	errs = append(errs, o.IdentityOptions.Validate()...)
	errs = append(errs, o.SecretsOptions.Validate()...)
	errs = append(errs, o.MemoryOptions.Validate()...)
	errs = append(errs, o.GatewayOptions.Validate()...)
	errs = append(errs, o.AWSOptions.Validate()...)
	errs = append(errs, o.AuthOptions.Validate()...)
	return errs
}

var validate = validator.New()

// validateStruct runs the validate tags of v and reports each failing field
// under its flag group.
func validateStruct(group string, v any) []error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{fmt.Errorf("%s: %w", group, err)}
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			errs = append(errs, fmt.Errorf("%s.%s: failed %s=%s (got %v)", group, fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		errs = append(errs, fmt.Errorf("%s.%s: failed %s", group, fe.Field(), fe.Tag()))
	}
	return errs
}

package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// AuthOptions configures bearer authentication of the invocation endpoint.
type AuthOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Tokens map a bearer token to the principal it authenticates.
	Tokens       []TokenOptions `json:"tokens"        mapstructure:"tokens"        validate:"required_if=Enabled true,dive"`
	DefaultActor string         `json:"default-actor" mapstructure:"default-actor"`
	DefaultTags  []string       `json:"default-tags"  mapstructure:"default-tags"`
}

type TokenOptions struct {
	// Token accepts "${ENV}" and "secret:key" references.
	Token   string   `json:"-"        mapstructure:"token"    validate:"required"`
	ActorID string   `json:"actor-id" mapstructure:"actor-id" validate:"required"`
	Tags    []string `json:"tags"     mapstructure:"tags"`
}

func NewAuthOptions() *AuthOptions {
	return &AuthOptions{}
}

func (o *AuthOptions) Complete() {
	for i := range o.DefaultTags {
		o.DefaultTags[i] = strings.TrimSpace(o.DefaultTags[i])
	}
}

func (o *AuthOptions) Validate() []error {
	return validateStruct("auth", o)
}

func (o *AuthOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "auth.enabled", o.Enabled, "Require a bearer token on every API route except health checks.")
	fs.StringVar(&o.DefaultActor, "auth.default-actor", o.DefaultActor, "Actor used when authentication is disabled and the request names none.")
	fs.StringSliceVar(&o.DefaultTags, "auth.default-tags", o.DefaultTags, "Principal tags used when authentication is disabled.")
}

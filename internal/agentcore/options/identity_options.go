package options

import (
	"time"

	"github.com/spf13/pflag"
)

// IdentityOptions configures the credential provider. An empty token url
// disables credential exchange.
type IdentityOptions struct {
	TokenURL     string        `json:"token-url"     mapstructure:"token-url"     validate:"omitempty,url"`
	ClientID     string        `json:"client-id"     mapstructure:"client-id"     validate:"required_with=TokenURL"`
	ClientSecret string        `json:"-"             mapstructure:"client-secret"`
	SafetyMargin time.Duration `json:"safety-margin" mapstructure:"safety-margin" validate:"gte=0"`
	MaxAttempts  int           `json:"max-attempts"  mapstructure:"max-attempts"  validate:"min=1"`
	BaseBackoff  time.Duration `json:"base-backoff"  mapstructure:"base-backoff"  validate:"gte=0"`
	CacheSize    int           `json:"cache-size"    mapstructure:"cache-size"    validate:"min=1"`
	HTTPTimeout  time.Duration `json:"http-timeout"  mapstructure:"http-timeout"`
}

func NewIdentityOptions() *IdentityOptions {
	return &IdentityOptions{
		SafetyMargin: 60 * time.Second,
		MaxAttempts:  3,
		BaseBackoff:  200 * time.Millisecond,
		CacheSize:    256,
		HTTPTimeout:  10 * time.Second,
	}
}

func (o *IdentityOptions) Validate() []error {
	return validateStruct("identity", o)
}

func (o *IdentityOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.TokenURL, "identity.token-url", o.TokenURL, "OAuth2 token endpoint of the identity service.")
	fs.StringVar(&o.ClientID, "identity.client-id", o.ClientID, "OAuth2 client id.")
	fs.StringVar(&o.ClientSecret, "identity.client-secret", o.ClientSecret, "OAuth2 client secret, ${ENV} or secret:key.")
	fs.DurationVar(&o.SafetyMargin, "identity.safety-margin", o.SafetyMargin, "Refresh credentials this long before they expire.")
	fs.IntVar(&o.MaxAttempts, "identity.max-attempts", o.MaxAttempts, "Token exchange attempts before giving up.")
	fs.DurationVar(&o.BaseBackoff, "identity.base-backoff", o.BaseBackoff, "Backoff before the second exchange attempt, doubled afterwards.")
	fs.IntVar(&o.CacheSize, "identity.cache-size", o.CacheSize, "Number of scopes whose credentials are cached.")
	fs.DurationVar(&o.HTTPTimeout, "identity.http-timeout", o.HTTPTimeout, "Timeout of one token request.")
}

type SecretsOptions struct {
	SecretsFile     string        `json:"file"      mapstructure:"file"`
	SecretsCacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl" validate:"gte=0"`
}

func NewSecretsOptions() *SecretsOptions {
	return &SecretsOptions{SecretsCacheTTL: 5 * time.Minute}
}

func (o *SecretsOptions) Validate() []error {
	return validateStruct("secrets", o)
}

func (o *SecretsOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.SecretsFile, "secrets.file", o.SecretsFile, "JSON object of secret values, reloaded on change.")
	fs.DurationVar(&o.SecretsCacheTTL, "secrets.cache-ttl", o.SecretsCacheTTL, "How long resolved secrets are cached.")
}

package options

import (
	"github.com/spf13/pflag"
)

// AWSOptions enables the local AWS resource tools. The key options name
// entries of the secret store, never the keys themselves.
type AWSOptions struct {
	Enabled         bool   `json:"enabled"           mapstructure:"enabled"`
	Region          string `json:"region"            mapstructure:"region"`
	Profile         string `json:"profile"           mapstructure:"profile"`
	AccessKeySecret string `json:"access-key-secret" mapstructure:"access-key-secret" validate:"required_with=SecretKeySecret"`
	SecretKeySecret string `json:"secret-key-secret" mapstructure:"secret-key-secret" validate:"required_with=AccessKeySecret"`
}

func NewAWSOptions() *AWSOptions {
	return &AWSOptions{
		Region: "us-east-1",
	}
}

func (o *AWSOptions) Validate() []error {
	return validateStruct("aws", o)
}

func (o *AWSOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "aws.enabled", o.Enabled, "Register the S3, Lambda, DynamoDB and CloudWatch tools.")
	fs.StringVar(&o.Region, "aws.region", o.Region, "Default region of the AWS tools.")
	fs.StringVar(&o.Profile, "aws.profile", o.Profile, "Shared config profile; empty uses the default credential chain.")
	fs.StringVar(&o.AccessKeySecret, "aws.access-key-secret", o.AccessKeySecret, "Secret holding a static access key id.")
	fs.StringVar(&o.SecretKeySecret, "aws.secret-key-secret", o.SecretKeySecret, "Secret holding the matching secret access key.")
}

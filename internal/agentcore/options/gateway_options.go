package options

import (
	"github.com/spf13/pflag"
)

// GatewayOptions points at the remote target list. The file uses its own
// JSON format so it can be shared with other gateway clients.
type GatewayOptions struct {
	ConfigFile string `json:"config-file" mapstructure:"config-file"`
}

func NewGatewayOptions() *GatewayOptions {
	return &GatewayOptions{
		ConfigFile: "conf/gateway.json",
	}
}

func (o *GatewayOptions) Validate() []error {
	return nil
}

func (o *GatewayOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "gateway.config-file", o.ConfigFile, "Path to the gateway target configuration file.")
}

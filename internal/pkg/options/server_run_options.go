package options

import (
	"fmt"
	"net"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kiosk404/agentcore/internal/pkg/server"
	"github.com/spf13/pflag"
)

// ServerRunOptions contains the options while running a generic api server.
type ServerRunOptions struct {
	Mode            string   `json:"mode"             mapstructure:"mode"`
	Healthz         bool     `json:"healthz"          mapstructure:"healthz"`
	Middlewares     []string `json:"middlewares"      mapstructure:"middlewares"`
	EnableProfiling bool     `json:"enable-profiling" mapstructure:"enable-profiling"`
	BindAddress     string   `json:"bind-address"     mapstructure:"bind-address"`
	BindPort        int      `json:"bind-port"        mapstructure:"bind-port"`
}

// NewServerRunOptions creates a new ServerRunOptions object with default parameters.
func NewServerRunOptions() *ServerRunOptions {
	return &ServerRunOptions{
		Mode:        gin.ReleaseMode,
		Healthz:     true,
		Middlewares: []string{"logger"},
		BindAddress: "0.0.0.0",
		BindPort:    8080,
	}
}

// ApplyTo applies the run options to the method receiver and returns self.
func (s *ServerRunOptions) ApplyTo(c *server.Config) error {
	c.Mode = s.Mode
	c.Healthz = s.Healthz
	c.Middlewares = s.Middlewares
	c.EnableProfiling = s.EnableProfiling
	c.InsecureServing = &server.InsecureServingInfo{
		Address: net.JoinHostPort(s.BindAddress, strconv.Itoa(s.BindPort)),
	}
	return nil
}

// Validate checks validation of ServerRunOptions.
func (s *ServerRunOptions) Validate() []error {
	var errs []error
	if s.BindPort < 0 || s.BindPort > 65535 {
		errs = append(errs, fmt.Errorf("--serving.bind-port %v must be between 0 and 65535", s.BindPort))
	}
	switch s.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("--serving.mode %q must be one of debug, release, test", s.Mode))
	}
	return errs
}

// AddFlags adds flags for a specific APIServer to the specified FlagSet.
func (s *ServerRunOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Mode, "serving.mode", s.Mode, ""+
		"Start the server in a specified server mode. Supported server mode: debug, test, release.")
	fs.BoolVar(&s.Healthz, "serving.healthz", s.Healthz, ""+
		"Add self readiness check and install /healthz router.")
	fs.StringSliceVar(&s.Middlewares, "serving.middlewares", s.Middlewares, ""+
		"List of allowed middlewares for server, comma separated. If this list is empty default middlewares will be used.")
	fs.BoolVar(&s.EnableProfiling, "serving.enable-profiling", s.EnableProfiling, "Install pprof routes under /debug/pprof.")
	fs.StringVar(&s.BindAddress, "serving.bind-address", s.BindAddress, "The IP address on which to serve the invocation endpoint.")
	fs.IntVar(&s.BindPort, "serving.bind-port", s.BindPort, "The port on which to serve the invocation endpoint.")
}

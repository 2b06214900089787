package options

import (
	"fmt"

	"github.com/kiosk404/agentcore/pkg/logger"
	"github.com/spf13/pflag"
)

// LogOptions controls the process logger.
type LogOptions struct {
	Level  string `json:"level"  mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
	File   string `json:"file"   mapstructure:"file"`
}

func NewLogOptions() *LogOptions {
	return &LogOptions{
		Level:  "info",
		Format: logger.FormatJSON,
	}
}

func (o *LogOptions) Validate() []error {
	var errs []error
	if o.Format != logger.FormatJSON && o.Format != logger.FormatText {
		errs = append(errs, fmt.Errorf("--log.format %q must be json or text", o.Format))
	}
	return errs
}

func (o *LogOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log level: debug, info, warn, error.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log output format: json or text.")
	fs.StringVar(&o.File, "log.file", o.File, "Also write logs to this file.")
}

// Apply configures the process logger.
func (o *LogOptions) Apply() error {
	logger.SetLevel(o.Level)
	logger.SetFormat(o.Format)
	return logger.InitLog(o.File)
}

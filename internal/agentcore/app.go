package agentcore

import (
	"github.com/kiosk404/agentcore/internal/agentcore/config"
	"github.com/kiosk404/agentcore/internal/agentcore/options"
	"github.com/kiosk404/agentcore/pkg/app"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const commandDesc = `agentcore serves a tool-using agent over HTTP.

Each invocation runs a reasoning loop: the model picks a tool, the call is
checked against the input schema and the policy rules, credentials for remote
targets are obtained from the identity service, and the result is folded back
into the conversation until the model answers.`

// NewApp creates an App object with default parameters.
func NewApp(basename string) *app.App {
	opts := options.NewOptions()
	application := app.NewApp("agentcore",
		basename,
		app.WithOptions(opts),
		app.WithDescription(commandDesc),
		app.WithDefaultValidArgs(),
		app.WithEnvPrefix("AGENTCORE"),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.Options) app.RunFunc {
	return func(basename string) error {
		if err := opts.LogOptions.Apply(); err != nil {
			return err
		}
		defer logger.FlushLog()

		cfg, err := config.CreateConfigFromOptions(opts)
		if err != nil {
			return err
		}

		return Run(cfg)
	}
}

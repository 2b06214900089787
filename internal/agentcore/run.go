package agentcore

import (
	"github.com/kiosk404/agentcore/internal/agentcore/config"
)

// Run runs the specified APIServer. This should never exit.
func Run(cfg *config.Config) error {
	server, err := createAPIServer(cfg)
	if err != nil {
		return err
	}

	return server.PrepareRun().Run()
}

package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/cloud"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/service"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/local"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/remote"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const ModuleName = "tools"

// Config holds the configuration for the Tools module.
type Config struct {
	// GatewayFile is the JSON list of remote targets.
	GatewayFile string
	// Gateway overrides GatewayFile when set.
	Gateway         *remote.GatewayConfig
	DisableBuiltins bool
	// Local tools registered next to the builtins.
	Local []local.Definition
	// Transport is the base round tripper of remote calls; nil means http.DefaultTransport.
	Transport http.RoundTripper
	// AWS enables the local AWS resource tools.
	AWS *cloud.Config
	// Cloud replaces the clients built from AWS.
	Cloud *cloud.Clients
}

type CompletedConfig struct {
	*Config
}

func (c *Config) Complete() CompletedConfig {
	return CompletedConfig{c}
}

// Deps are the collaborators of the registry.
type Deps struct {
	Policy      service.PolicyEvaluator
	DryRunner   local.PolicyDryRunner
	Credentials service.CredentialSource
	Secrets     secrets.Store
}

// Module is the top-level Tools module.
type Module struct {
	Registry *service.Registry
	Gateway  *remote.Manager
}

// New builds and seals the registry: builtins, configured local tools, the
// AWS tools when enabled and every discovered remote tool.
func (c CompletedConfig) New(ctx context.Context, deps Deps) (*Module, error) {
	gw := c.Gateway
	if gw == nil {
		loaded, err := remote.LoadGatewayConfig(c.GatewayFile)
		if err != nil {
			return nil, err
		}
		gw = loaded
	}
	gw.Complete()
	if errs := gw.Validate(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	registry, err := service.NewRegistry(deps.Policy, deps.Credentials)
	if err != nil {
		return nil, err
	}

	mgr := remote.NewManager(gw, deps.Secrets, deps.Credentials, c.Transport)
	if err := mgr.Initialize(ctx); err != nil {
		logger.WarnX(ModuleName, "gateway initialization had error: %v", err)
	}

	defs := c.Local
	clients := c.Cloud
	if clients == nil && c.AWS != nil && c.AWS.Enabled {
		built, err := cloud.NewClients(ctx, c.AWS, deps.Secrets)
		if err != nil {
			_ = mgr.Close()
			return nil, err
		}
		clients = built
	}
	if clients != nil {
		defs = append(defs, cloud.Tools(clients)...)
	}
	if !c.DisableBuiltins {
		defs = append(local.Builtins(local.BuiltinDeps{
			Targets: func() []local.TargetSummary { return summarize(mgr) },
			Policy:  deps.DryRunner,
		}), defs...)
	}
	if err := local.Register(registry, defs...); err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("register local tools: %w", err)
	}

	n, err := mgr.Register(registry)
	if err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("register remote tools: %w", err)
	}
	registry.Seal()

	logger.InfoX(ModuleName, "module initialized (%d local, %d remote tools, %d targets)",
		registry.Len()-n, n, len(gw.Targets))
	return &Module{Registry: registry, Gateway: mgr}, nil
}

// Close releases all resources held by the Tools module.
func (m *Module) Close() error {
	if m.Gateway != nil {
		return m.Gateway.Close()
	}
	return nil
}

func summarize(mgr *remote.Manager) []local.TargetSummary {
	targets := mgr.Targets()
	out := make([]local.TargetSummary, 0, len(targets))
	for _, t := range targets {
		s := local.TargetSummary{
			Name:   t.Name(),
			URL:    t.Config().URL,
			Auth:   string(t.Config().Auth),
			Status: t.Status().String(),
			Tools:  len(t.Tools()),
		}
		if err := t.Err(); err != nil {
			s.Error = err.Error()
		}
		out = append(out, s)
	}
	return out
}

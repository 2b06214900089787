package agentcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/kiosk404/agentcore/internal/agentcore/config"
	"github.com/kiosk404/agentcore/internal/agentcore/handler/middleware"
	v1 "github.com/kiosk404/agentcore/internal/agentcore/handler/v1"
	"github.com/kiosk404/agentcore/internal/agentcore/options"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/internal/agentcore/service/llm"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/cloud"
	genericapiserver "github.com/kiosk404/agentcore/internal/pkg/server"
	"github.com/kiosk404/agentcore/pkg/logger"
	"google.golang.org/grpc"
)

type apiServer struct {
	gs               *genericapiserver.GracefulShutdown
	gRPCAPIServer    *genericapiserver.GRPCAPIServer
	genericAPIServer *genericapiserver.GenericAPIServer

	modules    *modules
	authConfig *middleware.AuthConfig
	agentInfo  v1.AgentInfo
	// stopped is closed once the shutdown callback has released everything.
	stopped    chan struct{}
}

type preparedAPIServer struct {
	*apiServer
}

// ExtraConfig defines extra configuration for the API server.
type ExtraConfig struct {
	Addr       string
	MaxMsgSize int
}

type completedExtraConfig struct {
	*ExtraConfig
}

// Complete fills in any fields not set that are required to have valid data and can be derived from other fields.
func (c *ExtraConfig) complete() *completedExtraConfig {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:11788"
	}

	return &completedExtraConfig{c}
}

// New create a grpcAPIServer instance.
func (c *completedExtraConfig) New() (*genericapiserver.GRPCAPIServer, error) {
	opts := []grpc.ServerOption{grpc.MaxRecvMsgSize(c.MaxMsgSize)}
	grpcServer := grpc.NewServer(opts...)

	return genericapiserver.NewGRPCAPIServer(grpcServer, c.Addr), nil
}

// modules are the service modules in construction order. close releases
// them in reverse.
type modules struct {
	identity *identity.Module
	policy   *policy.Module
	tools    *tools.Module
	llm      *llm.Module
	agents   *agents.Module
}

func (m *modules) close() error {
	var errs []error
	if m.agents != nil {
		errs = append(errs, m.agents.Close())
	}
	if m.tools != nil {
		errs = append(errs, m.tools.Close())
	}
	if m.policy != nil {
		errs = append(errs, m.policy.Close())
	}
	if m.identity != nil {
		errs = append(errs, m.identity.Close())
	}
	return errors.Join(errs...)
}

func createAPIServer(cfg *config.Config) (*apiServer, error) {
	gs := genericapiserver.NewGracefulShutdown()

	genericConfig, err := buildGenericConfig(cfg)
	if err != nil {
		return nil, err
	}
	genericServer, err := genericConfig.Complete().New()
	if err != nil {
		return nil, err
	}

	var extraServer *genericapiserver.GRPCAPIServer
	if cfg.GRPCOptions.Enabled {
		extraServer, err = buildExtraConfig(cfg).complete().New()
		if err != nil {
			return nil, err
		}
	}

	ctx := context.Background()
	mods, err := buildModules(ctx, cfg.Options)
	if err != nil {
		return nil, err
	}

	authConfig, err := buildAuthConfig(ctx, cfg.AuthOptions, mods.identity.Secrets)
	if err != nil {
		_ = mods.close()
		return nil, err
	}

	return &apiServer{
		gs:               gs,
		genericAPIServer: genericServer,
		gRPCAPIServer:    extraServer,
		modules:          mods,
		authConfig:       authConfig,
		stopped:          make(chan struct{}),
		agentInfo: v1.AgentInfo{
			Name:   cfg.AgentOptions.Name,
			Model:  mods.llm.Primary.Model,
			Region: mods.llm.Primary.Region,
		},
	}, nil
}

// buildModules wires the service modules (K8S-style: Config → Complete → New).
// On failure every module built so far is closed.
func buildModules(ctx context.Context, opts *options.Options) (_ *modules, err error) {
	m := &modules{}
	defer func() {
		if err != nil {
			_ = m.close()
		}
	}()

	identityCfg := &identity.Config{}
	if err := copyOptions(identityCfg, opts.IdentityOptions, opts.SecretsOptions); err != nil {
		return nil, err
	}
	if m.identity, err = identityCfg.Complete().New(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize identity module: %w", err)
	}
	logger.Info("[Agentcore] identity module initialized successfully")

	policyCfg := &policy.Config{}
	if err := copyOptions(policyCfg, opts.PolicyOptions); err != nil {
		return nil, err
	}
	if m.policy, err = policyCfg.Complete().New(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize policy module: %w", err)
	}
	logger.Info("[Agentcore] policy module initialized successfully")

	toolDeps := tools.Deps{
		Policy:    m.policy.Evaluator,
		DryRunner: m.policy.Evaluator,
		Secrets:   m.identity.Secrets,
	}
	// A nil *Provider must not become a non-nil interface.
	if m.identity.Provider != nil {
		toolDeps.Credentials = m.identity.Provider
	}
	toolsCfg := &tools.Config{GatewayFile: opts.GatewayOptions.ConfigFile, AWS: &cloud.Config{}}
	if err := copyOptions(toolsCfg.AWS, opts.AWSOptions); err != nil {
		return nil, err
	}
	if m.tools, err = toolsCfg.Complete().New(ctx, toolDeps); err != nil {
		return nil, fmt.Errorf("failed to initialize tools module: %w", err)
	}
	logger.Info("[Agentcore] tools module initialized successfully (%d tools)", m.tools.Registry.Len())

	llmCfg := &llm.Config{
		SystemPrompt: opts.AgentOptions.SystemPrompt,
		MaxRetries:   opts.ModelOptions.MaxRetries,
		RetryBackoff: opts.ModelOptions.RetryBackoff,
	}
	if err := copyOptions(&llmCfg.Model, opts.ModelOptions); err != nil {
		return nil, err
	}
	if m.llm, err = llmCfg.Complete().New(ctx, llm.Dependencies{Secrets: m.identity.Secrets}); err != nil {
		return nil, fmt.Errorf("failed to initialize LLM module: %w", err)
	}
	logger.Info("[Agentcore] LLM module initialized successfully")

	agentsCfg := &agents.Config{}
	if err := copyOptions(agentsCfg, opts.AgentOptions, opts.MemoryOptions); err != nil {
		return nil, err
	}
	if m.agents, err = agentsCfg.Complete().New(ctx, agents.Dependencies{
		Reasoner: m.llm.Reasoner,
		Tools:    m.tools.Registry,
	}); err != nil {
		return nil, fmt.Errorf("failed to create agents module: %w", err)
	}
	logger.Info("[Agentcore] agents module initialized successfully")

	return m, nil
}

// copyOptions copies same-named fields of each option group into a module config.
func copyOptions(dst any, groups ...any) error {
	for _, g := range groups {
		if err := copier.CopyWithOption(dst, g, copier.Option{IgnoreEmpty: true}); err != nil {
			return fmt.Errorf("copy options into %T: %w", dst, err)
		}
	}
	return nil
}

func buildAuthConfig(ctx context.Context, o *options.AuthOptions, store secrets.Store) (*middleware.AuthConfig, error) {
	cfg := &middleware.AuthConfig{
		Enabled: o.Enabled,
		Default: middleware.Principal{ActorID: o.DefaultActor, Tags: o.DefaultTags},
	}
	for i, t := range o.Tokens {
		token, err := secrets.Resolve(ctx, store, t.Token)
		if err != nil {
			return nil, fmt.Errorf("resolve auth token %d (%s): %w", i, t.ActorID, err)
		}
		if token == "" {
			logger.Warn("[Agentcore] auth token for actor %s resolved empty, skipping", t.ActorID)
			continue
		}
		cfg.Tokens = append(cfg.Tokens, middleware.TokenEntry{
			Token:     token,
			Principal: middleware.Principal{ActorID: t.ActorID, Tags: t.Tags},
		})
	}
	if cfg.Enabled && len(cfg.Tokens) == 0 {
		return nil, errors.New("auth is enabled but no usable token is configured")
	}
	return cfg, nil
}

func (s *apiServer) PrepareRun() preparedAPIServer {
	initRouter(s.genericAPIServer.Engine, &routerDeps{
		runner:     s.modules.agents.Loop,
		aborter:    s.modules.agents.Loop,
		memory:     s.modules.agents.Memory,
		tools:      s.modules.tools.Registry,
		dryRunner:  s.modules.policy.Evaluator,
		audit:      s.modules.policy.Audit,
		authConfig: s.authConfig,
		agentInfo:  s.agentInfo,
	})

	s.gs.AddShutdownCallback(func(string) error {
		defer close(s.stopped)
		if s.gRPCAPIServer != nil {
			s.gRPCAPIServer.SetServing(false)
		}
		s.genericAPIServer.Close()
		if s.gRPCAPIServer != nil {
			s.gRPCAPIServer.Stop()
		}
		return s.modules.close()
	})
	return preparedAPIServer{s}
}

func (s preparedAPIServer) Run() error {
	if s.gRPCAPIServer != nil {
		s.gRPCAPIServer.SetServing(true)
		go s.gRPCAPIServer.Run()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.gs.Start(ctx)

	err := s.genericAPIServer.Run()
	if err != nil {
		s.gs.Shutdown("http server error")
	}
	<-s.stopped
	return err
}

func buildGenericConfig(cfg *config.Config) (genericConfig *genericapiserver.Config, lastErr error) {
	genericConfig = genericapiserver.NewConfig()
	if lastErr = cfg.GenericServerRunOptions.ApplyTo(genericConfig); lastErr != nil {
		return
	}

	return
}

func buildExtraConfig(cfg *config.Config) *ExtraConfig {
	return &ExtraConfig{
		Addr:       fmt.Sprintf("%s:%d", cfg.GRPCOptions.BindAddress, cfg.GRPCOptions.BindPort),
		MaxMsgSize: cfg.GRPCOptions.MaxMsgSize,
	}
}

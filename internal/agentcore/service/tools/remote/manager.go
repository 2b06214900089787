// Package remote reaches tools hosted behind gateway targets over MCP.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/service"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/pkg/errno"
	"github.com/kiosk404/agentcore/pkg/logger"
)

// Manager owns the gateway targets.
type Manager struct {
	mu      sync.RWMutex
	targets map[string]*Target
	order   []string
	creds   service.CredentialSource
}

// NewManager creates targets for every configured entry. creds may be nil
// when every target uses api_key auth.
func NewManager(cfg *GatewayConfig, store secrets.Store, creds service.CredentialSource, base http.RoundTripper) *Manager {
	m := &Manager{
		targets: make(map[string]*Target, len(cfg.Targets)),
		creds:   creds,
	}
	for _, name := range cfg.Names() {
		m.targets[name] = NewTarget(name, cfg.Targets[name], store, base)
		m.order = append(m.order, name)
	}
	return m
}

// Initialize connects to all targets without static tools concurrently.
// Individual target failures are logged but don't prevent other targets from connecting.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.targets) == 0 {
		logger.InfoX(moduleName, "no gateway targets configured, skipping discovery")
		return nil
	}

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
		tried int
	)
	for _, t := range m.targets {
		if len(t.config.Tools) > 0 {
			continue
		}
		tried++
		wg.Add(1)
		go func(t *Target) {
			defer wg.Done()
			if err := m.connect(ctx, t); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
				logger.WarnX(moduleName, "target %q failed to connect: %v", t.Name(), err)
			}
		}(t)
	}
	wg.Wait()

	logger.InfoX(moduleName, "gateway discovery complete: %d/%d targets connected", tried-len(errs), tried)
	if tried > 0 && len(errs) == tried {
		return fmt.Errorf("all %d gateway targets failed to connect", tried)
	}
	return nil
}

func (m *Manager) connect(ctx context.Context, t *Target) error {
	if !t.NeedsCredential() {
		return t.Connect(ctx, nil)
	}
	if m.creds == nil {
		return t.failWith(fmt.Errorf("target %q: no credential provider configured", t.Name()))
	}
	cred, err := m.creds.GetCredential(ctx, t.config.Scopes)
	if err != nil {
		return t.failWith(fmt.Errorf("target %q: %w", t.Name(), err))
	}
	return t.Connect(ctx, cred)
}

// Register adds every known remote tool to r. A name already taken is
// logged and skipped so one target cannot shadow another's tools.
func (m *Manager) Register(r *service.Registry) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, name := range m.order {
		t := m.targets[name]
		for _, spec := range t.Tools() {
			exec := &Executor{target: t, remoteName: spec.Target.RemoteName}
			if err := r.Register(spec, exec); err != nil {
				if errno.IsDuplicate(err) {
					logger.WarnX(moduleName, "target %q: %v", name, err)
					continue
				}
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// Target returns a target by name.
func (m *Manager) Target(name string) (*Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errno.ErrTargetNotFound, name)
	}
	return t, nil
}

// Targets returns the targets in name order.
func (m *Manager) Targets() []*Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Target, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.targets[name])
	}
	return out
}

// Close closes all target connections.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.targets {
		t.Close()
	}
	logger.InfoX(moduleName, "all gateway targets closed")
	return nil
}

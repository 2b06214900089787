package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	identity "github.com/kiosk404/agentcore/internal/agentcore/service/identity/domain/entity"
	identityerrno "github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
	policy "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/pkg/errno"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const moduleName = "tools"

type registeredTool struct {
	spec   *entity.ToolSpec
	schema *jsonschema.Resolved
	exec   Executor
}

// Registry maps tool names to executors. Tools are registered during startup;
// after Seal the registry is read-only and Dispatch becomes available.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*registeredTool
	sealed atomic.Bool

	policy PolicyEvaluator
	creds  CredentialSource
	now    func() time.Time
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock replaces the clock used for latency.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry. creds may be nil when no remote
// target needs a credential.
func NewRegistry(evaluator PolicyEvaluator, creds CredentialSource, opts ...RegistryOption) (*Registry, error) {
	if evaluator == nil {
		return nil, errors.New("tool registry requires a policy evaluator")
	}
	r := &Registry{
		tools:  make(map[string]*registeredTool),
		policy: evaluator,
		creds:  creds,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Register adds a tool. Names are unique across local and remote tools.
func (r *Registry) Register(spec *entity.ToolSpec, exec Executor) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if exec == nil {
		return fmt.Errorf("%w: tool %q has no executor", entity.ErrInvalidToolSpec, spec.Name)
	}

	var resolved *jsonschema.Resolved
	if spec.InputSchema != nil {
		rs, err := spec.InputSchema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("%w: input schema of %q: %v", entity.ErrInvalidToolSpec, spec.Name, err)
		}
		resolved = rs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return errno.ErrRegistrySealed
	}
	if _, ok := r.tools[spec.Name]; ok {
		return fmt.Errorf("%w: %q", errno.ErrDuplicateTool, spec.Name)
	}
	r.tools[spec.Name] = &registeredTool{spec: spec, schema: resolved, exec: exec}
	logger.DebugX(moduleName, "registered %s tool %q as %s", spec.Source, spec.Name, spec.Action())
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.sealed.Store(true)
	logger.InfoX(moduleName, "tool registry sealed with %d tools", r.Len())
}

func (r *Registry) Sealed() bool {
	return r != nil && r.sealed.Load()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// List returns all specs sorted by name.
func (r *Registry) List() []*entity.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Get(name string) (*entity.ToolSpec, bool) {
	t, ok := r.lookup(name)
	if !ok {
		return nil, false
	}
	return t.spec, true
}

func (r *Registry) lookup(name string) (*registeredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Dispatch resolves, validates, authorizes and executes one call. Tool
// failures are reported in the result; the only error is ErrRegistryNotReady.
func (r *Registry) Dispatch(ctx context.Context, req *entity.ToolCallRequest) (*entity.ToolCallResult, error) {
	if !r.Sealed() {
		return nil, errno.ErrRegistryNotReady
	}
	start := r.now()
	res := r.dispatch(ctx, req.Clone())
	res.LatencyMs = r.now().Sub(start).Milliseconds()
	return res, nil
}

func (r *Registry) dispatch(ctx context.Context, req *entity.ToolCallRequest) *entity.ToolCallResult {
	t, ok := r.lookup(req.ToolName)
	if !ok {
		return entity.Failed(entity.ErrUnknownTool, fmt.Sprintf("tool %q is not registered", req.ToolName))
	}

	if t.schema != nil {
		if err := t.schema.Validate(req.Arguments); err != nil {
			return entity.Failed(entity.ErrInvalidArguments, fmt.Sprintf("arguments for %q: %v", t.spec.Name, err))
		}
	}

	action := t.spec.Action().String()
	decision := r.policy.Evaluate(ctx, action, req.Arguments, req.Caller)
	if decision.Blocks() {
		logger.WarnX(moduleName, "policy denied %s for actor %q: %s", action, req.Caller.ActorID, decision.Reason)
		return entity.Failed(entity.ErrPolicyDenied, decision.Reason)
	}
	if decision.Verdict == policy.Deny {
		logger.WarnX(moduleName, "policy would deny %s (%s), executing under %s", action, decision.Reason, decision.Mode)
	}

	ctx = caller.NewContext(ctx, req.Caller)
	if t.spec.Source == entity.SourceRemote {
		return r.invokeRemote(ctx, t, req.Arguments)
	}
	return invokeLocal(ctx, t, req.Arguments)
}

func invokeLocal(ctx context.Context, t *registeredTool, args map[string]any) (res *entity.ToolCallResult) {
	defer func() {
		if p := recover(); p != nil {
			logger.ErrorX(moduleName, "local tool %q panicked: %v\n%s", t.spec.Name, p, debug.Stack())
			res = entity.Failed(entity.ErrExecution, fmt.Sprintf("tool %q panicked: %v", t.spec.Name, p))
		}
	}()
	payload, err := t.exec.Invoke(ctx, args, nil)
	if err != nil {
		return entity.Failed(kindOf(err, entity.ErrExecution), err.Error())
	}
	return entity.Succeeded(payload)
}

func (r *Registry) invokeRemote(ctx context.Context, t *registeredTool, args map[string]any) *entity.ToolCallResult {
	target := t.spec.Target

	var cred *identity.Credential
	if target.Auth != entity.AuthAPIKey {
		if r.creds == nil {
			return entity.Failed(entity.ErrTransport, "no credential provider configured for target "+target.Name)
		}
		c, err := r.creds.GetCredential(ctx, target.Scopes)
		if err != nil {
			if errors.Is(err, identityerrno.ErrScopeDenied) {
				return entity.Failed(entity.ErrRemoteRejected, err.Error())
			}
			return entity.Failed(entity.ErrTransport, err.Error())
		}
		cred = c
	}

	payload, err := t.exec.Invoke(ctx, args, cred)
	if err != nil {
		var ce *entity.CallError
		if cred != nil && errors.As(err, &ce) && ce.Status == http.StatusUnauthorized {
			r.creds.Invalidate(target.Scopes)
		}
		return entity.Failed(kindOf(err, entity.ErrTransport), err.Error())
	}
	return entity.Succeeded(payload)
}

func kindOf(err error, fallback entity.ErrorKind) entity.ErrorKind {
	var ce *entity.CallError
	if errors.As(err, &ce) && ce.Kind != "" {
		return ce.Kind
	}
	return fallback
}

package service

import (
	"context"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	identity "github.com/kiosk404/agentcore/internal/agentcore/service/identity/domain/entity"
	policy "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
)

// Executor runs a tool. cred is nil for local tools and api_key targets.
// Returning an *entity.CallError selects the error kind; any other error
// becomes EXECUTION_ERROR for local tools and TRANSPORT_ERROR for remote ones.
type Executor interface {
	Invoke(ctx context.Context, args map[string]any, cred *identity.Credential) (any, error)
}

// ExecutorFunc adapts a plain function to a local Executor.
type ExecutorFunc func(ctx context.Context, args map[string]any) (any, error)

func (f ExecutorFunc) Invoke(ctx context.Context, args map[string]any, _ *identity.Credential) (any, error) {
	return f(ctx, args)
}

// PolicyEvaluator decides whether an action may run and records the decision.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, actionID string, args map[string]any, c caller.Context) policy.Decision
}

// CredentialSource hands out credentials for remote targets.
type CredentialSource interface {
	GetCredential(ctx context.Context, scope []string) (*identity.Credential, error)
	Invalidate(scope []string)
}

package local

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
)

// TargetSummary is one row of list_remote_targets.
type TargetSummary struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Auth   string `json:"auth"`
	Status string `json:"status"`
	Tools  int    `json:"tools"`
	Error  string `json:"error,omitempty"`
}

// PolicyDryRunner evaluates without writing an audit entry.
type PolicyDryRunner interface {
	DryRun(actionID string, args map[string]any, c caller.Context) entity.Decision
}

// BuiltinDeps are the collaborators of the builtin tools. Nil fields disable
// the tools that need them.
type BuiltinDeps struct {
	Now     func() time.Time
	Targets func() []TargetSummary
	Policy  PolicyDryRunner
}

// Builtins returns the builtin tool definitions.
func Builtins(deps BuiltinDeps) []Definition {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	defs := []Definition{{
		Name:        "get_current_time",
		Description: "Get the current date and time, optionally in an IANA timezone such as 'Europe/Berlin'.",
		Parameters: []ParameterDef{
			{Name: "timezone", Type: "string", Description: "IANA timezone name (default: UTC)"},
		},
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			return currentTime(now(), StringParam(params, "timezone"))
		},
	}}

	if deps.Targets != nil {
		defs = append(defs, Definition{
			Name:        "list_remote_targets",
			Description: "List the configured remote tool targets with their connection status and tool counts.",
			Handler: func(context.Context, map[string]any) (any, error) {
				return map[string]any{"targets": deps.Targets()}, nil
			},
		})
	}

	if deps.Policy != nil {
		defs = append(defs, Definition{
			Name:        "check_policy",
			Description: "Check whether the policy would allow an action id (<target>___<tool>) with the given arguments, without executing it.",
			Parameters: []ParameterDef{
				{Name: "action_id", Type: "string", Description: "Action id such as 'local___get_current_time'", Required: true},
				{Name: "arguments", Type: "object", Description: "Arguments the action would be called with"},
			},
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				args, _ := params["arguments"].(map[string]any)
				c, _ := caller.FromContext(ctx)
				d := deps.Policy.DryRun(StringParam(params, "action_id"), args, c)
				return d, nil
			},
		})
	}
	return defs
}

func currentTime(t time.Time, tz string) (map[string]any, error) {
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", tz)
	}
	t = t.In(loc)
	return map[string]any{
		"time":     t.Format(time.RFC3339),
		"timezone": loc.String(),
		"unix":     t.Unix(),
		"weekday":  t.Weekday().String(),
	}, nil
}

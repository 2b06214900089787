package v1

import (
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	policy "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
)

// InvocationRequest is the body of POST /invocations. Input is accepted in
// place of Prompt.
type InvocationRequest struct {
	Prompt    string `json:"prompt"`
	Input     string `json:"input"`
	SessionID string `json:"session_id"`
	ActorID   string `json:"actor_id"`
}

// InvocationResponse is the success body of POST /invocations.
type InvocationResponse struct {
	Result   string             `json:"result"`
	Success  bool               `json:"success"`
	Metadata InvocationMetadata `json:"metadata"`
}

type InvocationMetadata struct {
	ExecutionTimeMs int64      `json:"execution_time_ms"`
	SessionID       string     `json:"session_id"`
	ActorID         string     `json:"actor_id"`
	RequestID       string     `json:"request_id,omitempty"`
	Model           string     `json:"model,omitempty"`
	Region          string     `json:"region,omitempty"`
	Agent           string     `json:"agent,omitempty"`
	Steps           []StepView `json:"steps"`
}

// FailureResponse is every failure body of POST /invocations.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StepView is one dispatched tool call as reported to clients.
type StepView struct {
	Action *entity.Action        `json:"action"`
	Result *tools.ToolCallResult `json:"result"`
}

func toStepViews(steps []entity.Step) []StepView {
	out := make([]StepView, 0, len(steps))
	for _, s := range steps {
		out = append(out, StepView{Action: s.Action, Result: s.Result})
	}
	return out
}

// TurnResponse is one conversation turn.
type TurnResponse struct {
	ID        string                  `json:"id"`
	Role      entity.Role             `json:"role"`
	Content   string                  `json:"content"`
	CreatedAt string                  `json:"created_at"`
	Tool      *entity.ToolObservation `json:"tool,omitempty"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
	Turns     int    `json:"turns"`
	UpdatedAt string `json:"updated_at"`
}

type ToolResponse struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Source      tools.Source `json:"source"`
	ActionID    string       `json:"action_id"`
	InputSchema any          `json:"input_schema,omitempty"`
}

// PolicyEvaluateRequest is the body of POST /v1/policy/evaluate.
type PolicyEvaluateRequest struct {
	ActionID  string         `json:"action_id" binding:"required"`
	Arguments map[string]any `json:"arguments"`
	ActorID   string         `json:"actor_id"`
	Tags      []string       `json:"tags"`
}

type PolicyEvaluateResponse struct {
	ActionID string          `json:"action_id"`
	Decision policy.Decision `json:"decision"`
	Blocks   bool            `json:"blocks"`
}

// FormatTime renders t for API responses.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

package entity

import (
	"maps"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
)

// ErrorKind classifies a failed tool call.
type ErrorKind string

const (
	ErrUnknownTool      ErrorKind = "UNKNOWN_TOOL"
	ErrInvalidArguments ErrorKind = "INVALID_ARGUMENTS"
	ErrPolicyDenied     ErrorKind = "POLICY_DENIED"
	ErrExecution        ErrorKind = "EXECUTION_ERROR"
	ErrTransport        ErrorKind = "TRANSPORT_ERROR"
	ErrRemoteRejected   ErrorKind = "REMOTE_REJECTED"
)

// ToolCallRequest is created once per reasoning step.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Caller    caller.Context `json:"caller_context"`
}

// Clone copies the request so later mutation by the producer cannot reach a dispatched call.
func (r *ToolCallRequest) Clone() *ToolCallRequest {
	cp := *r
	cp.Arguments = maps.Clone(r.Arguments)
	if cp.Arguments == nil {
		cp.Arguments = map[string]any{}
	}
	cp.Caller = r.Caller.Clone()
	return &cp
}

// ToolError is the failure half of a result.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ToolCallResult is the outcome of one dispatch. Exactly one of Payload and
// Error is meaningful: Payload when Success, Error otherwise.
type ToolCallResult struct {
	Success   bool       `json:"success"`
	Payload   any        `json:"payload,omitempty"`
	Error     *ToolError `json:"error,omitempty"`
	LatencyMs int64      `json:"latency_ms"`
}

func Succeeded(payload any) *ToolCallResult {
	return &ToolCallResult{Success: true, Payload: payload}
}

func Failed(kind ErrorKind, message string) *ToolCallResult {
	return &ToolCallResult{Error: &ToolError{Kind: kind, Message: message}}
}

// ErrorKindOf returns the error kind, or "" for a successful result.
func (r *ToolCallResult) ErrorKindOf() ErrorKind {
	if r == nil || r.Error == nil {
		return ""
	}
	return r.Error.Kind
}

// CallError lets an executor choose the kind of a failed call.
// Status carries the HTTP status of a rejected remote call, 0 otherwise.
type CallError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *CallError) Unwrap() error { return e.Err }

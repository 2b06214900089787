package entity

import (
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
)

// ActionType is the kind of decision a reasoner made.
type ActionType string

const (
	ActionFinal    ActionType = "FINAL"
	ActionToolCall ActionType = "TOOL_CALL"
)

// Action is what the reasoner wants to do next.
type Action struct {
	Type      ActionType     `json:"type"`
	Text      string         `json:"text,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Step pairs a tool-call action with its dispatch result.
type Step struct {
	Action *Action               `json:"action"`
	Result *tools.ToolCallResult `json:"result"`
}

// LoopState is private to one run.
type LoopState struct {
	SessionID  string
	ActorID    string
	Turns      []*ConversationTurn
	StepsTaken int
	LastAction *Action

	// flushed is the number of leading entries of Turns already persisted.
	flushed int
}

// Pending returns the turns not yet persisted.
func (s *LoopState) Pending() []*ConversationTurn {
	return s.Turns[s.flushed:]
}

// MarkFlushed records that every current turn has been persisted.
func (s *LoopState) MarkFlushed() {
	s.flushed = len(s.Turns)
}

// Append adds a new turn to the state.
func (s *LoopState) Append(t *ConversationTurn) {
	s.Turns = append(s.Turns, t)
}

package entity

import (
	"time"

	"github.com/google/uuid"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
)

// Role represents who produced a turn.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleTool      Role = "TOOL"
)

// ToolObservation records one dispatched tool call so a reasoner can replay it.
type ToolObservation struct {
	CallID    string                `json:"call_id"`
	ToolName  string                `json:"tool_name"`
	ActionID  string                `json:"action_id,omitempty"`
	Arguments map[string]any        `json:"arguments,omitempty"`
	Result    *tools.ToolCallResult `json:"result"`
}

// ConversationTurn is one entry of a session's history.
// Turns are append-only; a stored turn is never edited.
type ConversationTurn struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	ActorID   string           `json:"actor_id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	Tool      *ToolObservation `json:"tool,omitempty"`
}

// NewUserTurn creates a USER turn.
func NewUserTurn(sessionID, actorID, content string, at time.Time) *ConversationTurn {
	return newTurn(sessionID, actorID, RoleUser, content, at)
}

// NewAssistantTurn creates an ASSISTANT turn.
func NewAssistantTurn(sessionID, actorID, content string, at time.Time) *ConversationTurn {
	return newTurn(sessionID, actorID, RoleAssistant, content, at)
}

// NewToolTurn creates a TOOL turn. Content is the serialized result.
func NewToolTurn(sessionID, actorID, content string, obs *ToolObservation, at time.Time) *ConversationTurn {
	t := newTurn(sessionID, actorID, RoleTool, content, at)
	t.Tool = obs
	return t
}

func newTurn(sessionID, actorID string, role Role, content string, at time.Time) *ConversationTurn {
	return &ConversationTurn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		ActorID:   actorID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
}

// SessionSummary describes a stored session of one actor.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	ActorID   string    `json:"actor_id"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

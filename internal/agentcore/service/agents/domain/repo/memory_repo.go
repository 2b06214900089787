package repo

import (
	"context"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
)

// MemoryRepository defines the persistence interface for conversation turns.
type MemoryRepository interface {
	// Append stores turns in order. Turns are never modified afterwards.
	Append(ctx context.Context, turns ...*entity.ConversationTurn) error
	// List returns the turns of a session ordered by CreatedAt, ties broken by insertion order.
	List(ctx context.Context, sessionID string) ([]*entity.ConversationTurn, error)
	// ListSessions returns the sessions of an actor, most recently updated first.
	ListSessions(ctx context.Context, actorID string) ([]*entity.SessionSummary, error)
	// Prune deletes turns created before the given time and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
}

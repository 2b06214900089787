// Package store holds helpers shared by the memory store backends.
package store

import (
	"fmt"
	"sort"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/pkg/errno"
)

// CheckTurns rejects turns that cannot be stored.
func CheckTurns(turns []*entity.ConversationTurn) error {
	for i, t := range turns {
		if t == nil {
			return fmt.Errorf("%w: turn %d is nil", errno.ErrInvalidTurn, i)
		}
		if t.SessionID == "" || t.ID == "" {
			return fmt.Errorf("%w: turn %d has no id or session", errno.ErrInvalidTurn, i)
		}
	}
	return nil
}

// SortTurns orders turns by CreatedAt. The sort is stable so callers that pass
// turns in insertion order keep it as the tiebreak.
func SortTurns(turns []*entity.ConversationTurn) {
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
}

// SortSessions orders summaries most recent first, then by id.
func SortSessions(s []*entity.SessionSummary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].UpdatedAt.Equal(s[j].UpdatedAt) {
			return s[i].UpdatedAt.After(s[j].UpdatedAt)
		}
		return s[i].SessionID < s[j].SessionID
	})
}

package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/store"
)

// MemoryStore is an in-memory implementation of the MemoryRepository interface.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*entity.ConversationTurn
	// actors indexes session ids by actor.
	actors map[string]map[string]struct{}
}

// NewMemoryStore creates a new instance of the MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]*entity.ConversationTurn),
		actors:   make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Append(_ context.Context, turns ...*entity.ConversationTurn) error {
	if err := store.CheckTurns(turns); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range turns {
		cp := *t
		s.sessions[t.SessionID] = append(s.sessions[t.SessionID], &cp)
		if t.ActorID != "" {
			set, ok := s.actors[t.ActorID]
			if !ok {
				set = make(map[string]struct{})
				s.actors[t.ActorID] = set
			}
			set[t.SessionID] = struct{}{}
		}
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]*entity.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.sessions[sessionID]
	out := make([]*entity.ConversationTurn, 0, len(stored))
	for _, t := range stored {
		cp := *t
		out = append(out, &cp)
	}
	store.SortTurns(out)
	return out, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, actorID string) ([]*entity.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.SessionSummary, 0)
	for id := range s.actors[actorID] {
		turns := s.sessions[id]
		if len(turns) == 0 {
			continue
		}
		sum := &entity.SessionSummary{SessionID: id, ActorID: actorID, Turns: len(turns)}
		for _, t := range turns {
			if t.CreatedAt.After(sum.UpdatedAt) {
				sum.UpdatedAt = t.CreatedAt
			}
		}
		out = append(out, sum)
	}
	store.SortSessions(out)
	return out, nil
}

func (s *MemoryStore) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, turns := range s.sessions {
		kept := slices.DeleteFunc(turns, func(t *entity.ConversationTurn) bool {
			return t.CreatedAt.Before(before)
		})
		removed += len(turns) - len(kept)
		if len(kept) == 0 {
			delete(s.sessions, id)
			continue
		}
		s.sessions[id] = kept
	}
	for actor, set := range s.actors {
		for id := range set {
			if _, ok := s.sessions[id]; !ok {
				delete(set, id)
			}
		}
		if len(set) == 0 {
			delete(s.actors, actor)
		}
	}
	return removed, nil
}

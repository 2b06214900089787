package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/repo"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) repo.MemoryRepository { return NewMemoryStore() })
}

func TestListReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	turn := entity.NewUserTurn("s1", "u1", "hello", time.Now())
	if err := s.Append(ctx, turn); err != nil {
		t.Fatal(err)
	}
	turn.Content = "mutated after append"
	got, _ := s.List(ctx, "s1")
	got[0].Content = "mutated after list"
	again, _ := s.List(ctx, "s1")
	if again[0].Content != "hello" {
		t.Fatalf("stored turn changed to %q", again[0].Content)
	}
}

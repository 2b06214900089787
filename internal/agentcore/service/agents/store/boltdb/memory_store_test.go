package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/repo"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/store/storetest"
)

func openTemp(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repo.MemoryRepository {
		db := openTemp(t, filepath.Join(t.TempDir(), "memory.db"))
		t.Cleanup(func() { _ = db.Close() })
		return NewMemoryStore(db)
	})
}

func TestTurnsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memory.db")
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	db := openTemp(t, path)
	err := NewMemoryStore(db).Append(ctx,
		entity.NewUserTurn("s1", "u1", "List all S3 buckets", now),
		entity.NewAssistantTurn("s1", "u1", "Found 2 buckets: a, b", now.Add(time.Second)),
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db = openTemp(t, path)
	defer db.Close()
	s := NewMemoryStore(db)
	got, err := s.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[1].Content != "Found 2 buckets: a, b" {
		t.Fatalf("after reopen = %+v", got)
	}
	// Sequence keys continue after reopen.
	if err := s.Append(ctx, entity.NewUserTurn("s1", "u1", "thanks", now.Add(time.Second))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ = s.List(ctx, "s1")
	if len(got) != 3 || got[2].Content != "thanks" {
		t.Fatalf("tie after reopen not ordered by insertion: %+v", got)
	}
}

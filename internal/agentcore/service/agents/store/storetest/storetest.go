// Package storetest runs the same behavioural checks against every memory store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/repo"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/pkg/errno"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run exercises a MemoryRepository created fresh for each subtest.
func Run(t *testing.T, newRepo func(t *testing.T) repo.MemoryRepository) {
	t.Run("OrderWithTies", func(t *testing.T) { testOrder(t, newRepo(t)) })
	t.Run("ToolObservationRoundTrip", func(t *testing.T) { testToolTurn(t, newRepo(t)) })
	t.Run("SessionsByActor", func(t *testing.T) { testSessions(t, newRepo(t)) })
	t.Run("Prune", func(t *testing.T) { testPrune(t, newRepo(t)) })
	t.Run("RejectsInvalid", func(t *testing.T) { testInvalid(t, newRepo(t)) })
	t.Run("UnknownSessionIsEmpty", func(t *testing.T) {
		turns, err := newRepo(t).List(context.Background(), "nope")
		if err != nil || len(turns) != 0 {
			t.Fatalf("List(unknown) = %v, %v", turns, err)
		}
	})
}

func testOrder(t *testing.T, r repo.MemoryRepository) {
	ctx := context.Background()
	// Same timestamp for the first three: insertion order must decide.
	a := entity.NewUserTurn("s1", "u1", "first", base)
	b := entity.NewAssistantTurn("s1", "u1", "second", base)
	c := entity.NewUserTurn("s1", "u1", "third", base)
	early := entity.NewUserTurn("s1", "u1", "zeroth", base.Add(-time.Minute))
	if err := r.Append(ctx, a, b); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := r.Append(ctx, c, early); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := r.Append(ctx, entity.NewUserTurn("s2", "u1", "other", base)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := r.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"zeroth", "first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("List returned %d turns, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("turn %d = %q, want %q", i, got[i].Content, w)
		}
	}
	if got[1].ID != a.ID || got[2].Role != entity.RoleAssistant {
		t.Errorf("turn identity not preserved: %+v", got[1])
	}
}

func testToolTurn(t *testing.T, r repo.MemoryRepository) {
	ctx := context.Background()
	obs := &entity.ToolObservation{
		CallID:    "call-1",
		ToolName:  "ListS3Buckets",
		ActionID:  "local___ListS3Buckets",
		Arguments: map[string]any{"region": "us-east-1"},
		Result:    tools.Failed(tools.ErrTransport, "identity unavailable"),
	}
	turn := entity.NewToolTurn("s1", "u1", `{"success":false}`, obs, base)
	if err := r.Append(ctx, turn); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := r.List(ctx, "s1")
	if err != nil || len(got) != 1 {
		t.Fatalf("List = %v, %v", got, err)
	}
	o := got[0].Tool
	if o == nil || o.CallID != "call-1" || o.ActionID != "local___ListS3Buckets" {
		t.Fatalf("observation = %+v", o)
	}
	if o.Arguments["region"] != "us-east-1" {
		t.Errorf("arguments = %v", o.Arguments)
	}
	if o.Result.ErrorKindOf() != tools.ErrTransport {
		t.Errorf("result kind = %q", o.Result.ErrorKindOf())
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base)
	}
}

func testSessions(t *testing.T, r repo.MemoryRepository) {
	ctx := context.Background()
	err := r.Append(ctx,
		entity.NewUserTurn("old", "alice", "a", base),
		entity.NewAssistantTurn("old", "alice", "b", base.Add(time.Second)),
		entity.NewUserTurn("new", "alice", "c", base.Add(time.Hour)),
		entity.NewUserTurn("bobs", "bob", "d", base),
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := r.ListSessions(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "new" || got[1].SessionID != "old" {
		t.Fatalf("sessions = %+v", got)
	}
	if got[1].Turns != 2 || !got[1].UpdatedAt.Equal(base.Add(time.Second)) {
		t.Errorf("old session summary = %+v", got[1])
	}
	none, err := r.ListSessions(ctx, "carol")
	if err != nil || len(none) != 0 {
		t.Errorf("ListSessions(carol) = %v, %v", none, err)
	}
}

func testPrune(t *testing.T, r repo.MemoryRepository) {
	ctx := context.Background()
	err := r.Append(ctx,
		entity.NewUserTurn("stale", "alice", "a", base.Add(-48*time.Hour)),
		entity.NewUserTurn("mixed", "alice", "b", base.Add(-48*time.Hour)),
		entity.NewAssistantTurn("mixed", "alice", "c", base),
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	n, err := r.Prune(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("Prune removed %d, want 2", n)
	}
	if got, _ := r.List(ctx, "stale"); len(got) != 0 {
		t.Errorf("stale session still has %d turns", len(got))
	}
	if got, _ := r.List(ctx, "mixed"); len(got) != 1 || got[0].Content != "c" {
		t.Errorf("mixed session = %+v", got)
	}
	sessions, _ := r.ListSessions(ctx, "alice")
	if len(sessions) != 1 || sessions[0].SessionID != "mixed" {
		t.Errorf("sessions after prune = %+v", sessions)
	}
	// Appending to a pruned session starts it again.
	if err := r.Append(ctx, entity.NewUserTurn("stale", "alice", "again", base)); err != nil {
		t.Fatalf("Append after prune: %v", err)
	}
	if got, _ := r.List(ctx, "stale"); len(got) != 1 {
		t.Errorf("revived session has %d turns", len(got))
	}
}

func testInvalid(t *testing.T, r repo.MemoryRepository) {
	ctx := context.Background()
	good := entity.NewUserTurn("s1", "u1", "ok", base)
	bad := &entity.ConversationTurn{ID: "x"}
	if err := r.Append(ctx, good, bad); !errors.Is(err, errno.ErrInvalidTurn) {
		t.Fatalf("Append(invalid) = %v, want ErrInvalidTurn", err)
	}
	// Nothing from a rejected batch is stored.
	if got, _ := r.List(ctx, "s1"); len(got) != 0 {
		t.Errorf("partial batch stored: %d turns", len(got))
	}
}

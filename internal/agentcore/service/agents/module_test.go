package agents

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/service/runtime"
	policy "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	policysvc "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/service"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	toolsvc "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/service"
)

func deps(t *testing.T) Dependencies {
	t.Helper()
	ev, err := policysvc.NewEvaluator(policy.Enforce, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg, err := toolsvc.NewRegistry(ev, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg.Seal()
	return Dependencies{
		Reasoner: runtime.ReasonerFunc(func(context.Context, []*entity.ConversationTurn, []*tools.ToolSpec) (*entity.Action, error) {
			return &entity.Action{Type: entity.ActionFinal, Text: "hello"}, nil
		}),
		Tools: reg,
	}
}

func TestModuleStores(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default inmemory", cfg: Config{}},
		{name: "boltdb", cfg: Config{StoreType: StoreBoltDB, BoltDBPath: filepath.Join(t.TempDir(), "a.db")}},
		{name: "unknown", cfg: Config{StoreType: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.cfg.Complete().New(context.Background(), deps(t))
			if tt.wantErr {
				if err == nil {
					_ = m.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer m.Close()

			res, err := m.Loop.Run(context.Background(), runtime.RunRequest{Prompt: "hi", SessionID: "s1", ActorID: "alice"})
			if err != nil || res.Answer != "hello" {
				t.Fatalf("Run = %+v, %v", res, err)
			}
			sessions, err := m.Memory.ListSessions(context.Background(), "alice")
			if err != nil || len(sessions) != 1 || sessions[0].Turns != 2 {
				t.Errorf("sessions = %+v, %v", sessions, err)
			}
		})
	}
}

func TestModuleRejectsMissingReasoner(t *testing.T) {
	d := deps(t)
	d.Reasoner = nil
	if _, err := (&Config{}).Complete().New(context.Background(), d); err == nil {
		t.Fatal("expected error without a reasoner")
	}
}

func TestModulePrunesExpiredTurns(t *testing.T) {
	cfg := &Config{EventExpiry: time.Hour, PruneInterval: 10 * time.Millisecond}
	m, err := cfg.Complete().New(context.Background(), deps(t))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	ctx := context.Background()
	old := entity.NewUserTurn("s1", "alice", "ancient", time.Now().Add(-2*time.Hour))
	fresh := entity.NewUserTurn("s1", "alice", "recent", time.Now())
	if err := m.Memory.Append(ctx, old, fresh); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		turns, _ := m.Memory.List(ctx, "s1")
		if len(turns) == 1 {
			if turns[0].Content != "recent" {
				t.Fatalf("pruned the wrong turn, kept %q", turns[0].Content)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expired turn was not pruned")
}

func TestModuleCloseStopsPruner(t *testing.T) {
	m, err := (&Config{}).Complete().New(context.Background(), deps(t))
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- m.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
}

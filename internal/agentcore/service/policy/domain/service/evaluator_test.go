package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/pkg/errno"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry
	err     error
}

func (s *recordingSink) Record(_ context.Context, e *entity.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return s.err
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestEvaluator(t *testing.T, mode entity.Mode, rules []entity.Rule) (*Evaluator, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	ev, err := NewEvaluator(mode, rules, sink, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return ev, sink
}

func TestDefaultVerdictFollowsMode(t *testing.T) {
	cases := []struct {
		mode entity.Mode
		want entity.Verdict
	}{
		{entity.Enforce, entity.Deny},
		{entity.LogOnly, entity.Allow},
	}
	for _, tc := range cases {
		ev, sink := newTestEvaluator(t, tc.mode, nil)
		d := ev.Evaluate(context.Background(), "t___x", nil, caller.Context{ActorID: "u"})
		if d.Verdict != tc.want || d.Mode != tc.mode || d.RuleID != "" {
			t.Errorf("mode %s: got %+v", tc.mode, d)
		}
		if len(sink.entries) != 1 {
			t.Fatalf("mode %s: want 1 audit entry, got %d", tc.mode, len(sink.entries))
		}
		e := sink.entries[0]
		if e.ActionID != "t___x" || e.Verdict != tc.want || !e.Timestamp.Equal(fixedNow) || e.Caller.ActorID != "u" {
			t.Errorf("mode %s: audit entry %+v", tc.mode, e)
		}
	}
}

func TestExplicitDenyUnderBothModes(t *testing.T) {
	rules := []entity.Rule{
		AllowAll("allow-all", "*"),
		{ID: "deny-xy", Effect: entity.Deny, Action: "x___y"},
	}
	for _, mode := range []entity.Mode{entity.Enforce, entity.LogOnly} {
		ev, sink := newTestEvaluator(t, mode, rules)
		d := ev.Evaluate(context.Background(), "x___y", map[string]any{}, caller.Context{})
		if d.Verdict != entity.Deny || d.RuleID != "deny-xy" {
			t.Fatalf("mode %s: got %+v", mode, d)
		}
		if d.Blocks() != (mode == entity.Enforce) {
			t.Errorf("mode %s: Blocks() = %v", mode, d.Blocks())
		}
		if sink.entries[0].Verdict != entity.Deny {
			t.Errorf("mode %s: audit verdict %s", mode, sink.entries[0].Verdict)
		}

		if d := ev.Evaluate(context.Background(), "x___z", nil, caller.Context{}); d.Verdict != entity.Allow {
			t.Errorf("mode %s: other action should be allowed, got %+v", mode, d)
		}
	}
}

func TestOrderingPriorityThenDenyFirst(t *testing.T) {
	rules := []entity.Rule{
		{ID: "allow-low", Effect: entity.Allow, Action: "*"},
		{ID: "deny-same", Effect: entity.Deny, Action: "gw___*"},
		{ID: "allow-high", Effect: entity.Allow, Priority: 5, Action: "gw___read"},
	}
	ev, _ := newTestEvaluator(t, entity.Enforce, rules)

	if d := ev.DryRun("gw___read", nil, caller.Context{}); d.RuleID != "allow-high" {
		t.Errorf("higher priority should win, got %s", d.RuleID)
	}
	if d := ev.DryRun("gw___write", nil, caller.Context{}); d.RuleID != "deny-same" {
		t.Errorf("deny should precede allow at equal priority, got %s", d.RuleID)
	}
	if d := ev.DryRun("local___time", nil, caller.Context{}); d.RuleID != "allow-low" {
		t.Errorf("fallthrough allow, got %s", d.RuleID)
	}
}

func TestConditions(t *testing.T) {
	rules := RegionRestriction("regions", "*___create_s3_bucket", []string{"us-east-1", "us-west-2"})
	rules = append(rules, ParameterLimit("memory", "*___update_lambda_config", "memory_size", 1024)...)
	rules = append(rules,
		DenyLike("no-prod-delete", "*___delete_s3_bucket", "bucket_name", "*prod*"),
		entity.Rule{ID: "max-size", Effect: entity.Deny, Action: "*___resize", Conditions: []entity.Condition{{Arg: "spec.size", Op: entity.OpGt, Value: 100}}},
		AllowAll("allow", "*"),
	)
	ev, _ := newTestEvaluator(t, entity.Enforce, rules)

	cases := []struct {
		action string
		args   map[string]any
		want   entity.Verdict
	}{
		{"gw___create_s3_bucket", map[string]any{"region": "us-east-1"}, entity.Allow},
		{"gw___create_s3_bucket", map[string]any{"region": "eu-west-1"}, entity.Deny},
		{"gw___create_s3_bucket", map[string]any{"bucket_name": "b"}, entity.Deny},
		{"gw___create_s3_bucket", nil, entity.Deny},
		{"gw___update_lambda_config", map[string]any{"memory_size": float64(512)}, entity.Allow},
		{"gw___update_lambda_config", map[string]any{"memory_size": float64(1024)}, entity.Allow},
		{"gw___update_lambda_config", map[string]any{"memory_size": float64(2048)}, entity.Deny},
		{"gw___update_lambda_config", map[string]any{"timeout": float64(30)}, entity.Deny},
		{"gw___delete_s3_bucket", map[string]any{"bucket_name": "my-prod-logs"}, entity.Deny},
		{"gw___delete_s3_bucket", map[string]any{"bucket_name": "scratch/dev"}, entity.Allow},
		{"gw___resize", map[string]any{"spec": map[string]any{"size": float64(200)}}, entity.Deny},
		{"gw___resize", map[string]any{"spec": map[string]any{"size": 50}}, entity.Allow},
		{"gw___resize", map[string]any{"spec": map[string]any{"size": "150"}}, entity.Deny},
	}
	for _, tc := range cases {
		if d := ev.DryRun(tc.action, tc.args, caller.Context{}); d.Verdict != tc.want {
			t.Errorf("%s %v: got %+v, want %s", tc.action, tc.args, d, tc.want)
		}
	}
}

func TestPrincipalRequirements(t *testing.T) {
	rules := []entity.Rule{
		RequireTag("admins", "*___delete_*", "admin"),
		{ID: "team", Effect: entity.Allow, Action: "*___list_*", Principal: &entity.PrincipalMatch{TagValues: map[string][]string{"team": {"storage"}}}},
		{ID: "ops-actors", Effect: entity.Allow, Action: "*___restart", Principal: &entity.PrincipalMatch{Actors: []string{"ops-*"}}},
	}
	ev, _ := newTestEvaluator(t, entity.Enforce, rules)

	admin := caller.Context{PrincipalTags: []string{"admin"}}
	storage := caller.Context{PrincipalTags: []string{"team=storage"}}
	other := caller.Context{ActorID: "dev-1", PrincipalTags: []string{"team=compute"}}

	if d := ev.DryRun("gw___delete_bucket", nil, admin); d.Verdict != entity.Allow {
		t.Errorf("admin delete: %+v", d)
	}
	if d := ev.DryRun("gw___delete_bucket", nil, storage); d.Verdict != entity.Deny {
		t.Errorf("non-admin delete: %+v", d)
	}
	if d := ev.DryRun("gw___list_buckets", nil, storage); d.Verdict != entity.Allow {
		t.Errorf("storage list: %+v", d)
	}
	if d := ev.DryRun("gw___list_buckets", nil, other); d.Verdict != entity.Deny {
		t.Errorf("compute list: %+v", d)
	}
	if d := ev.DryRun("gw___restart", nil, caller.Context{ActorID: "ops-7"}); d.Verdict != entity.Allow {
		t.Errorf("ops actor: %+v", d)
	}
	if d := ev.DryRun("gw___restart", nil, other); d.Verdict != entity.Deny {
		t.Errorf("non-ops actor: %+v", d)
	}
}

func TestDryRunDoesNotAudit(t *testing.T) {
	ev, sink := newTestEvaluator(t, entity.Enforce, nil)
	ev.DryRun("a___b", nil, caller.Context{})
	if len(sink.entries) != 0 {
		t.Fatalf("dry run wrote %d audit entries", len(sink.entries))
	}
}

func TestSinkErrorDoesNotChangeDecision(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	ev, err := NewEvaluator(entity.Enforce, []entity.Rule{AllowAll("a", "*")}, sink)
	if err != nil {
		t.Fatal(err)
	}
	if d := ev.Evaluate(context.Background(), "a___b", nil, caller.Context{}); d.Verdict != entity.Allow {
		t.Fatalf("got %+v", d)
	}
}

func TestInvalidRules(t *testing.T) {
	cases := map[string][]entity.Rule{
		"missing id":     {{Effect: entity.Deny, Action: "*"}},
		"bad effect":     {{ID: "a", Effect: "MAYBE", Action: "*"}},
		"missing action": {{ID: "a", Effect: entity.Deny}},
		"duplicate":      {AllowAll("a", "*"), AllowAll("a", "x")},
		"bad operator":   {{ID: "a", Effect: entity.Deny, Action: "*", Conditions: []entity.Condition{{Arg: "x", Op: "approx"}}}},
	}
	for name, rules := range cases {
		if _, err := NewEvaluator(entity.Enforce, rules, nil); !errors.Is(err, errno.ErrInvalidRuleSet) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
	if _, err := NewEvaluator("SOMETIMES", nil, nil); !errors.Is(err, errno.ErrInvalidMode) {
		t.Errorf("bad mode: err = %v", err)
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "", true},
		{"*", "a___b", true},
		{"x___y", "x___y", true},
		{"x___y", "x___yz", false},
		{"*prod*", "my/prod/bucket", true},
		{"gw___?et*", "gw___get_items", true},
		{"gw___?et*", "gw___et", false},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "aXXcYYb", false},
		{"a*", "a*b", true},
		{"*x", "**x", true},
		{"a?c", "a*c", true},
	}
	for _, tc := range cases {
		if got := globMatch(tc.pattern, tc.s); got != tc.want {
			t.Errorf("globMatch(%q, %q) = %v", tc.pattern, tc.s, got)
		}
	}
}

func TestReasonMentionsRule(t *testing.T) {
	ev, _ := newTestEvaluator(t, entity.Enforce, []entity.Rule{{ID: "r1", Effect: entity.Deny, Action: "*", Description: "nope"}})
	d := ev.DryRun("a___b", nil, caller.Context{})
	if !strings.Contains(d.Reason, "r1") || !strings.Contains(d.Reason, "nope") {
		t.Errorf("reason = %q", d.Reason)
	}
}

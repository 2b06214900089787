package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/audit"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/service"
)

const rulesYAML = `
mode: log_only
rules:
  - id: no-prod-delete
    effect: deny
    action: "*___delete_s3_bucket"
    conditions:
      - arg: bucket_name
        op: LIKE
        value: "*prod*"
  - id: regions
    effect: DENY
    priority: 50
    action: "*___create_*"
    conditions:
      - arg: region
        op: not_in
        value: [us-east-1, us-west-2]
  - id: allow-all
    effect: ALLOW
    action: "*"
`

func writeRules(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(rulesYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRuleSetNormalizes(t *testing.T) {
	rs, err := LoadRuleSet(writeRules(t))
	if err != nil {
		t.Fatalf("LoadRuleSet: %v", err)
	}
	if rs.Mode != "log_only" || len(rs.Rules) != 3 {
		t.Fatalf("unexpected rule set: %+v", rs)
	}
	if rs.Rules[0].Effect != entity.Deny || rs.Rules[0].Conditions[0].Op != entity.OpLike {
		t.Errorf("rule not normalized: %+v", rs.Rules[0])
	}
}

func TestLoadRuleSetTagValueKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	data := `
rules:
  - id: storage-team
    effect: ALLOW
    action: "*___list_*"
    principal:
      tag_values:
        Team: [storage]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	rs, err := LoadRuleSet(path)
	if err != nil {
		t.Fatalf("LoadRuleSet: %v", err)
	}
	ev, err := service.NewEvaluator(entity.Enforce, rs.Rules, nil)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		tags []string
		want entity.Verdict
	}{
		{[]string{"Team=storage"}, entity.Allow},
		{[]string{"team=storage"}, entity.Allow},
		{[]string{"team=compute"}, entity.Deny},
		{nil, entity.Deny},
	}
	for _, tc := range cases {
		d := ev.DryRun("gw___list_buckets", nil, caller.Context{PrincipalTags: tc.tags})
		if d.Verdict != tc.want {
			t.Errorf("tags %v: got %+v, want %s", tc.tags, d, tc.want)
		}
	}
}

func TestLoadRuleSetMissingFile(t *testing.T) {
	rs, err := LoadRuleSet(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || len(rs.Rules) != 0 {
		t.Fatalf("missing file should be empty, got %+v, %v", rs, err)
	}
}

func TestModuleWithSQLiteAudit(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Mode:            "ENFORCE",
		RulesFile:       writeRules(t),
		AuditSink:       audit.SinkSQLite,
		AuditSQLitePath: filepath.Join(dir, "audit.db"),
	}
	m, err := cfg.Complete().New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	if m.Evaluator.Mode() != entity.Enforce {
		t.Fatalf("config mode should override file mode, got %s", m.Evaluator.Mode())
	}

	ctx := context.Background()
	who := caller.Context{ActorID: "user_1", SessionID: "s1", PrincipalTags: []string{"admin"}}
	d1 := m.Evaluator.Evaluate(ctx, "gw___delete_s3_bucket", map[string]any{"bucket_name": "prod-data"}, who)
	d2 := m.Evaluator.Evaluate(ctx, "gw___create_s3_bucket", map[string]any{"region": "us-west-2"}, who)
	if d1.Verdict != entity.Deny || d2.Verdict != entity.Allow {
		t.Fatalf("decisions: %+v / %+v", d1, d2)
	}

	recent, err := m.Audit.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("want 2 audit rows, got %d", len(recent))
	}
	if recent[0].ActionID != "gw___create_s3_bucket" || recent[1].Verdict != entity.Deny {
		t.Errorf("rows out of order: %+v %+v", recent[0], recent[1])
	}
	if recent[1].Caller.SessionID != "s1" || len(recent[1].Caller.PrincipalTags) != 1 {
		t.Errorf("caller not persisted: %+v", recent[1].Caller)
	}
}

func TestModuleMemoryAuditDefault(t *testing.T) {
	m, err := (&Config{Mode: "LOG_ONLY"}).Complete().New(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m.Evaluator.Evaluate(context.Background(), "local___x", nil, caller.Context{})
	recent, _ := m.Audit.Recent(context.Background(), 0)
	if len(recent) != 1 || recent[0].Verdict != entity.Allow {
		t.Fatalf("recent = %+v", recent)
	}
}

package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	policyloader "github.com/kiosk404/agentcore/internal/agentcore/service/policy"
	policy "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	policysvc "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/service"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/cloud"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/remote"
)

type stubS3 struct {
	cloud.S3API
	calls int
}

func (s *stubS3) ListBuckets(context.Context, *s3.ListBucketsInput, ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	s.calls++
	return &s3.ListBucketsOutput{}, nil
}

func (s *stubS3) CreateBucket(context.Context, *s3.CreateBucketInput, ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	s.calls++
	return &s3.CreateBucketOutput{}, nil
}

func (s *stubS3) DeleteBucket(context.Context, *s3.DeleteBucketInput, ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	s.calls++
	return &s3.DeleteBucketOutput{}, nil
}

type stubLambda struct {
	cloud.LambdaAPI
	calls int
}

func (s *stubLambda) UpdateFunctionConfiguration(_ context.Context, in *lambda.UpdateFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	s.calls++
	return &lambda.UpdateFunctionConfigurationOutput{FunctionName: in.FunctionName, MemorySize: in.MemorySize}, nil
}

func TestCloudToolsUnderSamplePolicy(t *testing.T) {
	rs, err := policyloader.LoadRuleSet(filepath.Join("..", "..", "..", "..", "conf", "policy.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rs.Rules) == 0 {
		t.Fatal("sample policy has no rules")
	}
	ev, err := policysvc.NewEvaluator(policy.Enforce, rs.Rules, nil)
	if err != nil {
		t.Fatal(err)
	}
	s3c, lc := &stubS3{}, &stubLambda{}
	cfg := &Config{
		Gateway: remote.NewGatewayConfig(),
		Cloud:   &cloud.Clients{S3: s3c, Lambda: lc, Region: "us-east-1"},
	}
	m, err := cfg.Complete().New(context.Background(), Deps{Policy: ev, DryRunner: ev})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.Close() })

	tests := []struct {
		name string
		tool string
		args map[string]any
		tags []string
		// want is "" for a successful call, else the failure kind.
		want entity.ErrorKind
	}{
		{"list", "list_s3_buckets", map[string]any{}, nil, ""},
		{"create in managed region", "create_s3_bucket", map[string]any{"bucket_name": "b", "region": "us-east-1"}, nil, ""},
		{"create elsewhere", "create_s3_bucket", map[string]any{"bucket_name": "b", "region": "eu-west-1"}, nil, entity.ErrPolicyDenied},
		{"delete by user", "delete_s3_bucket", map[string]any{"bucket_name": "scratch"}, nil, entity.ErrPolicyDenied},
		{"delete by admin", "delete_s3_bucket", map[string]any{"bucket_name": "scratch"}, []string{"admin"}, ""},
		{"prod delete by admin", "delete_s3_bucket", map[string]any{"bucket_name": "app-prod-logs"}, []string{"admin"}, entity.ErrPolicyDenied},
		{"memory within limit", "update_lambda_config", map[string]any{"function_name": "f", "memory_size": float64(1024)}, nil, ""},
		{"memory over limit", "update_lambda_config", map[string]any{"function_name": "f", "memory_size": float64(2048)}, nil, entity.ErrPolicyDenied},
		{"memory not stated", "update_lambda_config", map[string]any{"function_name": "f", "timeout": float64(30)}, nil, entity.ErrPolicyDenied},
	}
	for _, tt := range tests {
		before := s3c.calls + lc.calls
		res, err := m.Registry.Dispatch(context.Background(), &entity.ToolCallRequest{
			ID: "c", ToolName: tt.tool, Arguments: tt.args,
			Caller: caller.Context{ActorID: "u", SessionID: "s", PrincipalTags: tt.tags},
		})
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		called := s3c.calls+lc.calls > before
		switch {
		case tt.want == "" && (!res.Success || !called):
			t.Errorf("%s: want success, got %+v", tt.name, res)
		case tt.want != "" && (res.ErrorKindOf() != tt.want || called):
			t.Errorf("%s: want %s without a client call, got %+v (called %v)", tt.name, tt.want, res, called)
		}
	}

	// The schema stops a create without region first; the rule set denies it on its own too.
	d := ev.Evaluate(context.Background(), "local___create_s3_bucket", map[string]any{"bucket_name": "b"}, caller.Context{ActorID: "u"})
	if d.Verdict != policy.Deny || d.RuleID != "create-region-missing" {
		t.Errorf("create without region: %+v", d)
	}
}

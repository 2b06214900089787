package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	identity "github.com/kiosk404/agentcore/internal/agentcore/service/identity/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	policy "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	policysvc "github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/service"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const targetName = "resource-metrics-iam-target"

type tokenSource struct {
	mu          sync.Mutex
	token       string
	invalidated atomic.Int32
}

func (s *tokenSource) GetCredential(context.Context, []string) (*identity.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &identity.Credential{Token: s.token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *tokenSource) Invalidate([]string) { s.invalidated.Add(1) }

func (s *tokenSource) set(tok string) {
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
}

func newGateway(t *testing.T, check func(r *http.Request) bool) *httptest.Server {
	t.Helper()
	s := server.NewMCPServer("gateway", "1.0.0", server.WithToolCapabilities(true))
	s.AddTool(mcp.NewTool(targetName+"___Get_All_S3_Metrics",
		mcp.WithDescription("Collect S3 metrics for every bucket"),
		mcp.WithString("region", mcp.Required()),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		region := req.GetString("region", "")
		return mcp.NewToolResultText(`{"region":"` + region + `","buckets":["a","b"]}`), nil
	})
	s.AddTool(mcp.NewTool(targetName+"___Delete_Bucket",
		mcp.WithString("bucket", mcp.Required()),
	), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("AccessDenied: bucket is protected"), nil
	})
	s.AddTool(mcp.NewTool("other___Foreign"), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("x"), nil
	})

	h := server.NewStreamableHTTPServer(s)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil && !check(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func bearerIs(tok string) func(*http.Request) bool {
	return func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer "+tok }
}

func gatewayConfig(url string, auth entity.AuthMode) *GatewayConfig {
	cfg := &GatewayConfig{Targets: map[string]*TargetConfig{
		targetName: {URL: url, Auth: auth, Scopes: []string{"gateway:invoke"}, Timeout: "5s"},
	}}
	if auth == entity.AuthAPIKey {
		cfg.Targets[targetName].APIKey = &APIKeyConfig{Secret: "gw/api-key"}
	}
	cfg.Complete()
	return cfg
}

func buildRegistry(t *testing.T, mgr *Manager, creds service.CredentialSource) *service.Registry {
	t.Helper()
	ev, err := policysvc.NewEvaluator(policy.LogOnly, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	r, err := service.NewRegistry(ev, creds)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Register(r); err != nil {
		t.Fatal(err)
	}
	r.Seal()
	return r
}

func call(t *testing.T, r *service.Registry, tool string, args map[string]any) *entity.ToolCallResult {
	t.Helper()
	res, err := r.Dispatch(context.Background(), &entity.ToolCallRequest{
		ID: "c1", ToolName: tool, Arguments: args, Caller: caller.Context{ActorID: "u", SessionID: "s"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestDiscoveryAndBearerCall(t *testing.T) {
	srv := newGateway(t, bearerIs("good"))
	creds := &tokenSource{token: "good"}
	mgr := NewManager(gatewayConfig(srv.URL, entity.AuthBearer), nil, creds, nil)
	defer mgr.Close()

	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	r := buildRegistry(t, mgr, creds)

	spec, ok := r.Get("Get_All_S3_Metrics")
	if !ok {
		t.Fatalf("discovered tools = %v", r.List())
	}
	if spec.Target.RemoteName != targetName+"___Get_All_S3_Metrics" || spec.Action().String() != targetName+"___Get_All_S3_Metrics" {
		t.Errorf("spec = %+v", spec.Target)
	}
	if _, ok := r.Get("other___Foreign"); ok {
		t.Error("tool of another target must not be registered")
	}

	res := call(t, r, "Get_All_S3_Metrics", map[string]any{"region": "us-east-1"})
	if !res.Success {
		t.Fatalf("call failed: %+v", res.Error)
	}
	payload, _ := res.Payload.(map[string]any)
	if payload["region"] != "us-east-1" {
		t.Errorf("payload = %#v", res.Payload)
	}

	if res := call(t, r, "Get_All_S3_Metrics", nil); res.ErrorKindOf() != entity.ErrInvalidArguments {
		t.Errorf("missing region: %+v", res)
	}
	if got := mgr.Targets()[0].Status(); got != TargetStatusConnected {
		t.Errorf("status = %s", got)
	}
}

func TestRemoteErrorResultIsRejected(t *testing.T) {
	srv := newGateway(t, bearerIs("good"))
	creds := &tokenSource{token: "good"}
	mgr := NewManager(gatewayConfig(srv.URL, entity.AuthBearer), nil, creds, nil)
	defer mgr.Close()
	_ = mgr.Initialize(context.Background())
	r := buildRegistry(t, mgr, creds)

	res := call(t, r, "Delete_Bucket", map[string]any{"bucket": "prod-logs"})
	if res.ErrorKindOf() != entity.ErrRemoteRejected || !strings.Contains(res.Error.Message, "AccessDenied") {
		t.Fatalf("got %+v", res.Error)
	}
}

func TestUnauthorizedCallInvalidatesCredential(t *testing.T) {
	var valid atomic.Value
	valid.Store("good")
	srv := newGateway(t, func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer "+valid.Load().(string)
	})
	creds := &tokenSource{token: "good"}
	mgr := NewManager(gatewayConfig(srv.URL, entity.AuthBearer), nil, creds, nil)
	defer mgr.Close()
	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	r := buildRegistry(t, mgr, creds)

	valid.Store("rotated")
	res := call(t, r, "Get_All_S3_Metrics", map[string]any{"region": "eu-west-1"})
	if res.ErrorKindOf() != entity.ErrRemoteRejected || creds.invalidated.Load() != 1 {
		t.Fatalf("got %+v, invalidated = %d", res.Error, creds.invalidated.Load())
	}

	creds.set("rotated")
	res = call(t, r, "Get_All_S3_Metrics", map[string]any{"region": "eu-west-1"})
	if !res.Success {
		t.Fatalf("call after rotation: %+v", res.Error)
	}
}

func TestAPIKeyAuthAndUnreachableTarget(t *testing.T) {
	store := secrets.StaticStore{"gw/api-key": "k-123"}
	srv := newGateway(t, func(r *http.Request) bool { return r.Header.Get(DefaultAPIKeyHeader) == "k-123" })

	mgr := NewManager(gatewayConfig(srv.URL, entity.AuthAPIKey), store, nil, nil)
	defer mgr.Close()
	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	r := buildRegistry(t, mgr, nil)
	if res := call(t, r, "Get_All_S3_Metrics", map[string]any{"region": "us-west-2"}); !res.Success {
		t.Fatalf("api key call: %+v", res.Error)
	}

	srv.Close()
	mgr.Targets()[0].Close()
	res := call(t, r, "Get_All_S3_Metrics", map[string]any{"region": "us-west-2"})
	if res.ErrorKindOf() != entity.ErrTransport {
		t.Fatalf("closed server: %+v", res)
	}
}

func TestStaticToolsSkipDiscovery(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	cfg := gatewayConfig(url, entity.AuthAPIKey)
	cfg.Targets[targetName].Tools = []StaticTool{{Name: "Get_All_S3_Metrics", Description: "static"}}
	mgr := NewManager(cfg, secrets.StaticStore{"gw/api-key": "k"}, nil, nil)
	defer mgr.Close()
	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("static targets are not dialled at startup: %v", err)
	}
	r := buildRegistry(t, mgr, nil)
	spec, ok := r.Get("Get_All_S3_Metrics")
	if !ok || spec.Target.RemoteName != "Get_All_S3_Metrics" {
		t.Fatalf("static spec = %+v", spec)
	}
	if res := call(t, r, "Get_All_S3_Metrics", nil); res.ErrorKindOf() != entity.ErrTransport {
		t.Fatalf("got %+v", res)
	}
}

func TestSigV4Signing(t *testing.T) {
	var (
		gotAuth, gotToken, gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotToken = r.Header.Get("X-Amz-Security-Token")
		b := new(strings.Builder)
		_, _ = ioCopy(b, r)
		gotBody = b.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := gatewayConfig(srv.URL, entity.AuthSigV4)
	tc := cfg.Targets[targetName]
	tc.SigV4.Region = "us-east-1"
	store := secrets.StaticStore{DefaultAccessKeyRef: "AKIDEXAMPLE", DefaultSecretKeyRef: "secret"}
	rt := newAuthTransport(targetName, tc, store, nil)

	req, _ := http.NewRequestWithContext(
		withCredential(context.Background(), &identity.Credential{Token: "session-tok"}),
		http.MethodPost, srv.URL, strings.NewReader(`{"jsonrpc":"2.0"}`))
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/") || !strings.Contains(gotAuth, "/us-east-1/"+DefaultSigV4Service+"/aws4_request") {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotToken != "session-tok" {
		t.Errorf("security token = %q", gotToken)
	}
	if gotBody != `{"jsonrpc":"2.0"}` {
		t.Errorf("body = %q", gotBody)
	}

	req, _ = http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("{}"))
	if _, err := rt.RoundTrip(req); err != ErrMissingCredential {
		t.Errorf("no credential: %v", err)
	}
}

func TestStatusErrorFromTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := gatewayConfig(srv.URL, entity.AuthBearer)
	rt := newAuthTransport(targetName, cfg.Targets[targetName], nil, nil)
	req, _ := http.NewRequestWithContext(withCredential(context.Background(), &identity.Credential{Token: "t"}), http.MethodGet, srv.URL, nil)
	_, err := rt.RoundTrip(req)
	ce := classifyCallError(err)
	if ce.Kind != entity.ErrRemoteRejected || ce.Status != http.StatusTooManyRequests || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("err = %v, classified = %+v", err, ce)
	}
}

func TestExtractPayload(t *testing.T) {
	cases := []struct {
		name string
		res  *mcp.CallToolResult
		want any
	}{
		{"json text", mcp.NewToolResultText(`{"n":1}`), map[string]any{"n": float64(1)}},
		{"plain text", mcp.NewToolResultText("hello"), "hello"},
		{"structured", mcp.NewToolResultStructured(map[string]any{"k": "v"}, "fallback"), map[string]any{"k": "v"}},
	}
	for _, tc := range cases {
		got, err := extractPayload(tc.res)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !equalJSON(got, tc.want) {
			t.Errorf("%s: got %#v, want %#v", tc.name, got, tc.want)
		}
	}
	if _, err := extractPayload(mcp.NewToolResultError("nope")); classifyCallError(err).Kind != entity.ErrRemoteRejected {
		t.Errorf("error result: %v", err)
	}
}

func TestLoadGatewayConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.json")
	data := `{"targets":{
		"metrics":{"url":"https://gw.example.com/mcp","scopes":["gateway:invoke"]},
		"keys":{"url":"https://keys.example.com/mcp","auth":"api_key","api_key":{"secret":"gw/key"}},
		"bad___name":{"url":"https://x"},
		"noauth":{"url":"https://y","auth":"basic"},
		"nourl":{"auth":"bearer"}
	}}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadGatewayConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Complete()
	if got := cfg.Targets["metrics"]; got.Auth != entity.AuthBearer || got.timeout != DefaultTimeout {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got := cfg.Targets["keys"].APIKey.Header; got != DefaultAPIKeyHeader {
		t.Errorf("api key header = %q", got)
	}
	if errs := cfg.Validate(); len(errs) != 3 {
		t.Errorf("validate errors = %v", errs)
	}

	empty, err := LoadGatewayConfig(filepath.Join(dir, "missing.json"))
	if err != nil || len(empty.Targets) != 0 {
		t.Errorf("missing file: %v, %v", empty, err)
	}
}

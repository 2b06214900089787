package v1

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kiosk404/agentcore/internal/agentcore/handler/middleware"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/service/runtime"
	agentErrno "github.com/kiosk404/agentcore/internal/agentcore/service/agents/pkg/errno"
	identityErrno "github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/pkg/utils/json"
)

type fakeRunner struct {
	steps []entity.Step
	err   error
	got   runtime.RunRequest
}

func (f *fakeRunner) Run(_ context.Context, req runtime.RunRequest) (*runtime.RunResult, error) {
	f.got = req
	if req.Observer != nil {
		for _, s := range f.steps {
			req.Observer.OnStep(s)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	session := req.SessionID
	if session == "" {
		session = "session_1"
	}
	return &runtime.RunResult{Answer: "done", SessionID: session, ActorID: req.ActorID, Steps: f.steps}, nil
}

func newTestRouter(r Runner, auth *middleware.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	if auth == nil {
		auth = &middleware.AuthConfig{Default: middleware.Principal{ActorID: "anonymous"}}
	}
	e.Use(middleware.BearerAuth(auth))
	h := NewInvocationHandler(r, AgentInfo{Name: "agent", Model: "m", Region: "us-east-1"}, nil)
	e.POST("/invocations", h.Handle)
	return e
}

func post(e *gin.Engine, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestInvocationSuccess(t *testing.T) {
	runner := &fakeRunner{steps: []entity.Step{{
		Action: &entity.Action{Type: entity.ActionToolCall, ToolName: "get_current_time"},
		Result: &tools.ToolCallResult{Success: true, Payload: "12:00", LatencyMs: 2},
	}}}
	w := post(newTestRouter(runner, nil), `{"prompt":"what time is it","session_id":"s1","actor_id":"bob"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp InvocationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Result != "done" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Metadata.SessionID != "s1" || resp.Metadata.ActorID != "bob" || resp.Metadata.Agent != "agent" {
		t.Errorf("metadata = %+v", resp.Metadata)
	}
	if len(resp.Metadata.Steps) != 1 {
		t.Errorf("steps = %d, want 1", len(resp.Metadata.Steps))
	}
	if runner.got.Prompt != "what time is it" {
		t.Errorf("prompt = %q", runner.got.Prompt)
	}
}

func TestInvocationInputFallback(t *testing.T) {
	runner := &fakeRunner{}
	w := post(newTestRouter(runner, nil), `{"input":"hello"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if runner.got.Prompt != "hello" {
		t.Errorf("prompt = %q, want hello", runner.got.Prompt)
	}
	if runner.got.ActorID != "anonymous" {
		t.Errorf("actor = %q, want default actor", runner.got.ActorID)
	}
}

func TestInvocationFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "missing prompt", body: `{}`, wantStatus: http.StatusBadRequest, wantError: promptMissingMessage},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest, wantError: promptMissingMessage},
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "busy", body: `{"prompt":"x"}`, err: fmt.Errorf("%w: %w", agentErrno.ErrSessionBusy, agentErrno.ErrCancelled), wantStatus: http.StatusConflict},
		{name: "foreign session", body: `{"prompt":"x","session_id":"s1"}`, err: fmt.Errorf("%w: s1", agentErrno.ErrSessionForbidden), wantStatus: http.StatusForbidden},
		{name: "budget", body: `{"prompt":"x"}`, err: agentErrno.ErrStepBudgetExceeded, wantStatus: http.StatusUnprocessableEntity},
		{name: "cancelled", body: `{"prompt":"x"}`, err: agentErrno.ErrCancelled, wantStatus: StatusClientClosedRequest},
		{name: "deadline", body: `{"prompt":"x"}`, err: agentErrno.ErrDeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
		{name: "identity", body: `{"prompt":"x"}`, err: identityErrno.ErrIdentityUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "reasoner", body: `{"prompt":"x"}`, err: agentErrno.ErrReasoner, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(newTestRouter(&fakeRunner{err: tt.err}, nil), tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp FailureResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success || resp.Error == "" {
				t.Errorf("resp = %+v", resp)
			}
			if tt.wantError != "" && resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestInvocationStream(t *testing.T) {
	runner := &fakeRunner{steps: []entity.Step{
		{Action: &entity.Action{Type: entity.ActionToolCall, ToolName: "a"}, Result: &tools.ToolCallResult{Success: true, Payload: 1}},
		{Action: &entity.Action{Type: entity.ActionToolCall, ToolName: "b"}, Result: &tools.ToolCallResult{Success: true, Payload: 2}},
	}}
	w := post(newTestRouter(runner, nil), `{"prompt":"go"}`, map[string]string{"Accept": "text/event-stream"})

	body := w.Body.String()
	if got := strings.Count(body, "event:step"); got != 2 {
		t.Errorf("step events = %d, want 2\n%s", got, body)
	}
	if !strings.Contains(body, "event:result") {
		t.Errorf("missing result event\n%s", body)
	}
	if strings.Index(body, "event:result") < strings.LastIndex(body, "event:step") {
		t.Errorf("result event precedes a step event\n%s", body)
	}
}

func TestInvocationStreamError(t *testing.T) {
	w := post(newTestRouter(&fakeRunner{err: agentErrno.ErrStepBudgetExceeded}, nil), `{"prompt":"go"}`,
		map[string]string{"Accept": "text/event-stream"})
	body := w.Body.String()
	if !strings.Contains(body, "event:error") || strings.Contains(body, "event:result") {
		t.Errorf("unexpected stream\n%s", body)
	}
}

func TestInvocationAuthenticatedActor(t *testing.T) {
	auth := &middleware.AuthConfig{
		Enabled: true,
		Tokens:  []middleware.TokenEntry{{Token: "t0k", Principal: middleware.Principal{ActorID: "ops", Tags: []string{"admin"}}}},
	}
	runner := &fakeRunner{}
	w := post(newTestRouter(runner, auth), `{"prompt":"x","actor_id":"mallory"}`, map[string]string{"Authorization": "Bearer t0k"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if runner.got.ActorID != "ops" {
		t.Errorf("actor = %q, want token actor", runner.got.ActorID)
	}
	if len(runner.got.PrincipalTags) != 1 || runner.got.PrincipalTags[0] != "admin" {
		t.Errorf("tags = %v", runner.got.PrincipalTags)
	}
}

func TestPing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewActivity()
	e := gin.New()
	e.GET("/ping", Ping(a))

	get := func() map[string]any {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		var out map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	if got := get()["status"]; got != StatusHealthy {
		t.Errorf("idle status = %v", got)
	}
	a.Begin()
	if got := get()["status"]; got != StatusHealthyBusy {
		t.Errorf("busy status = %v", got)
	}
	a.End()
	if got := get()["status"]; got != StatusHealthy {
		t.Errorf("status after End = %v", got)
	}
}

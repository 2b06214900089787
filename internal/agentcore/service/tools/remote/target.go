package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	identity "github.com/kiosk404/agentcore/internal/agentcore/service/identity/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/pkg/logger"
	"github.com/kiosk404/agentcore/pkg/utils/json"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const moduleName = "tools"

// TargetStatus represents the connection state of a remote target.
type TargetStatus int

const (
	TargetStatusDisconnected TargetStatus = iota
	TargetStatusConnecting
	TargetStatusConnected
	TargetStatusError
)

func (s TargetStatus) String() string {
	switch s {
	case TargetStatusDisconnected:
		return "Disconnected"
	case TargetStatusConnecting:
		return "Connecting"
	case TargetStatusConnected:
		return "Connected"
	case TargetStatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Target is one remote endpoint reached over MCP streamable HTTP.
type Target struct {
	name       string
	config     *TargetConfig
	httpClient *http.Client

	mu     sync.RWMutex
	client *client.Client
	tools  []*entity.ToolSpec
	status TargetStatus
	err    error
}

// NewTarget creates a disconnected target. Statically declared tools are
// available immediately.
func NewTarget(name string, cfg *TargetConfig, store secrets.Store, base http.RoundTripper) *Target {
	t := &Target{
		name:   name,
		config: cfg,
		httpClient: &http.Client{
			Transport: newAuthTransport(name, cfg, store, base),
			Timeout:   cfg.timeout,
		},
		status: TargetStatusDisconnected,
	}
	for _, st := range cfg.Tools {
		t.tools = append(t.tools, t.spec(st.Name, st.Name, st.Description, st.InputSchema))
	}
	return t
}

func (t *Target) Name() string { return t.name }

func (t *Target) Config() *TargetConfig { return t.config }

func (t *Target) Status() TargetStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the last connection error.
func (t *Target) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Tools returns the target's tool specs.
func (t *Target) Tools() []*entity.ToolSpec {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.tools)
}

// NeedsCredential reports whether requests carry an identity credential.
func (t *Target) NeedsCredential() bool {
	return t.config.Auth != entity.AuthAPIKey
}

// Connect performs the MCP handshake and, unless tools are declared
// statically, discovers the target's tools.
func (t *Target) Connect(ctx context.Context, cred *identity.Credential) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectLocked(ctx, cred)
}

func (t *Target) connectLocked(ctx context.Context, cred *identity.Credential) error {
	t.closeLocked()
	t.status = TargetStatusConnecting
	t.err = nil
	ctx = withCredential(ctx, cred)

	cli, err := client.NewStreamableHttpClient(t.config.URL, transport.WithHTTPBasicClient(t.httpClient))
	if err != nil {
		return t.failLocked(fmt.Errorf("target %q: failed to create client: %w", t.name, err))
	}
	if err := cli.Start(ctx); err != nil {
		_ = cli.Close()
		return t.failLocked(fmt.Errorf("target %q: failed to start client: %w", t.name, err))
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "agentcore",
		Version: "0.1.0",
	}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return t.failLocked(fmt.Errorf("target %q: failed to initialize: %w", t.name, err))
	}

	if len(t.config.Tools) == 0 {
		res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			_ = cli.Close()
			return t.failLocked(fmt.Errorf("target %q: failed to list tools: %w", t.name, err))
		}
		t.tools = t.discovered(res.Tools)
	}

	t.client = cli
	t.status = TargetStatusConnected
	logger.InfoX(moduleName, "target %q connected (%d tools)", t.name, len(t.tools))
	return nil
}

func (t *Target) failLocked(err error) error {
	t.status = TargetStatusError
	t.err = err
	return err
}

// Call invokes a tool by its remote name. Errors are *entity.CallError.
func (t *Target) Call(ctx context.Context, remoteName string, args map[string]any, cred *identity.Credential) (any, error) {
	cli, err := t.connected(ctx, cred)
	if err != nil {
		return nil, classifyCallError(err)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = remoteName
	req.Params.Arguments = args
	res, err := cli.CallTool(withCredential(ctx, cred), req)
	if err != nil {
		ce := classifyCallError(err)
		if ce.Status == http.StatusNotFound || ce.Status == http.StatusUnauthorized {
			// The session is gone or was opened with a revoked credential.
			t.markDisconnected(cli)
		}
		return nil, ce
	}
	return extractPayload(res)
}

func (t *Target) connected(ctx context.Context, cred *identity.Credential) (*client.Client, error) {
	t.mu.RLock()
	cli := t.client
	t.mu.RUnlock()
	if cli != nil {
		return cli, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	if err := t.connectLocked(ctx, cred); err != nil {
		return nil, err
	}
	return t.client, nil
}

func (t *Target) markDisconnected(cli *client.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == cli {
		t.closeLocked()
	}
}

// Close closes the current connection and releases resources.
func (t *Target) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

func (t *Target) closeLocked() {
	if t.client != nil {
		if err := t.client.Close(); err != nil {
			logger.WarnX(moduleName, "target %q: failed to close client: %v", t.name, err)
		}
		t.client = nil
	}
	t.status = TargetStatusDisconnected
}

func (t *Target) discovered(tools []mcp.Tool) []*entity.ToolSpec {
	specs := make([]*entity.ToolSpec, 0, len(tools))
	for _, tool := range tools {
		name := tool.Name
		if id, ok := entity.ParseActionID(tool.Name); ok && id.Target == t.name {
			name = id.Tool
		}
		if len(t.config.ToolFilter) > 0 && !slices.Contains(t.config.ToolFilter, name) {
			continue
		}
		if err := entity.ValidateName(name); err != nil {
			logger.WarnX(moduleName, "target %q: skipping tool %q: %v", t.name, tool.Name, err)
			continue
		}
		schema, err := inputSchema(tool)
		if err != nil {
			logger.WarnX(moduleName, "target %q: skipping tool %q: %v", t.name, tool.Name, err)
			continue
		}
		specs = append(specs, t.spec(name, tool.Name, tool.Description, schema))
	}
	return specs
}

func (t *Target) spec(name, remoteName, desc string, schema *jsonschema.Schema) *entity.ToolSpec {
	return &entity.ToolSpec{
		Name:        name,
		Description: desc,
		InputSchema: schema,
		Source:      entity.SourceRemote,
		Target: &entity.TargetRef{
			Name:       t.name,
			RemoteName: remoteName,
			Auth:       t.config.Auth,
			Scopes:     t.config.Scopes,
		},
	}
}

func inputSchema(tool mcp.Tool) (*jsonschema.Schema, error) {
	raw := []byte(tool.RawInputSchema)
	if len(raw) == 0 {
		b, err := json.Marshal(mcp.ToolArgumentsSchema(tool.InputSchema))
		if err != nil {
			return nil, err
		}
		raw = b
	}
	s := &jsonschema.Schema{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	// Arguments are validated as draft 2020-12 whatever the target declares.
	s.Schema = ""
	if s.Type == "" && len(s.Types) == 0 {
		s.Type = "object"
	}
	return s, nil
}

func extractPayload(res *mcp.CallToolResult) (any, error) {
	if res == nil {
		return nil, nil
	}
	if res.IsError {
		msg := textOf(res)
		if msg == "" {
			msg = "remote tool reported an error"
		}
		return nil, &entity.CallError{Kind: entity.ErrRemoteRejected, Err: errors.New(msg)}
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			var v any
			if err := json.UnmarshalString(tc.Text, &v); err == nil {
				return v, nil
			}
			return tc.Text, nil
		}
	}
	return nil, nil
}

func textOf(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// classifyCallError maps a failed MCP exchange onto a tool error kind.
func classifyCallError(err error) *entity.CallError {
	var ce *entity.CallError
	if errors.As(err, &ce) {
		return ce
	}
	var se *StatusError
	if errors.As(err, &se) {
		return &entity.CallError{Kind: entity.ErrRemoteRejected, Status: se.Code, Err: err}
	}
	var te *transport.Error
	var ne net.Error
	switch {
	case errors.As(err, &te), errors.As(err, &ne),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &entity.CallError{Kind: entity.ErrTransport, Err: err}
	}
	return &entity.CallError{Kind: entity.ErrRemoteRejected, Err: err}
}

// Executor invokes one tool of a target.
type Executor struct {
	target     *Target
	remoteName string
}

func (e *Executor) Invoke(ctx context.Context, args map[string]any, cred *identity.Credential) (any, error) {
	return e.target.Call(ctx, e.remoteName, args, cred)
}

func (t *Target) failWith(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failLocked(err)
}

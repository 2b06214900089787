package util

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiosk404/agentcore/pkg/utils/json"
)

// InvokeRequest is the body of POST /invocations.
type InvokeRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

// InvokeResponse mirrors both the success and the failure body.
type InvokeResponse struct {
	Result   string         `json:"result"`
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Step is one tool dispatch as the server reports it.
type Step struct {
	Action struct {
		ToolName  string         `json:"tool_name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"action"`
	Result struct {
		Success   bool  `json:"success"`
		LatencyMs int64 `json:"latency_ms"`
		Error     *struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"result"`
}

type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
	ActionID    string `json:"action_id"`
}

// Client talks to an agentcore server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Invoke runs one invocation and returns the decoded body. A failure body is
// returned as an error carrying the server's message.
func (c *Client) Invoke(ctx context.Context, in InvokeRequest) (*InvokeResponse, []byte, error) {
	resp, err := c.post(ctx, "/invocations", in, "application/json")
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	var out InvokeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, raw, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !out.Success {
		return &out, raw, fmt.Errorf("server returned %d: %s", resp.StatusCode, out.Error)
	}
	return &out, raw, nil
}

// InvokeStream runs one invocation over SSE, calling onStep for every step event.
func (c *Client) InvokeStream(ctx context.Context, in InvokeRequest, onStep func(*Step)) (*InvokeResponse, error) {
	resp, err := c.post(ctx, "/invocations", in, "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var out InvokeResponse
		if json.Unmarshal(raw, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "step":
				var s Step
				if err := json.UnmarshalString(data, &s); err == nil && onStep != nil {
					onStep(&s)
				}
			case "result", "error":
				var out InvokeResponse
				if err := json.UnmarshalString(data, &out); err != nil {
					return nil, fmt.Errorf("decode %s event: %w", event, err)
				}
				if event == "error" {
					return &out, fmt.Errorf("invocation failed: %s", out.Error)
				}
				return &out, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, fmt.Errorf("stream ended without a result")
}

// ListTools returns the server's tool registry.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out struct {
		Data []Tool `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return out.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

// Package mcpclient implements the HTTP client for a single tool server,
// covering the two operations the orchestration core consumes: tool discovery
// and tool invocation.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "mcpclient")

// ErrDiscovery is returned when a server's tool listing cannot be fetched or
// the returned payload is malformed. It is fatal to that server only.
var ErrDiscovery = errors.New("tool discovery failed")

const (
	listToolsPath   = "/list/tools"
	executeToolPath = "/execute/tool"

	// DefaultCallTimeout bounds a single discovery or invocation request.
	DefaultCallTimeout = 30 * time.Second
)

// ToolSchema describes one advertised tool. Immutable once fetched.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// CallResult is a tool server's response to an invocation.
type CallResult struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// ServerError is an application error reported by the tool server itself,
// as opposed to a transport failure reaching it.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

type executeRequest struct {
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
}

type errorPayload struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Client talks to one tool server. Invocation may have side effects on the
// server; the client never retries it.
type Client struct {
	id      string
	baseURL string
	hc      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

// New creates a client for the tool server at baseURL, identified by id.
func New(id, baseURL string, opts ...Option) *Client {
	c := &Client{
		id:      id,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: DefaultCallTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the server identifier, unique across the registry.
func (c *Client) ID() string {
	return c.id
}

// BaseURL returns the server's base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTools fetches the server's advertised tool schemas, in server order.
// The operation is idempotent and side-effect free.
func (c *Client) ListTools(ctx context.Context) ([]ToolSchema, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+listToolsPath, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create discovery request")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.WithMessagef(ErrDiscovery, "server %s: %v", c.id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithMessagef(ErrDiscovery, "server %s: failed to read response: %v", c.id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithMessagef(ErrDiscovery, "server %s: status %d: %s", c.id, resp.StatusCode, string(body))
	}

	var schemas []ToolSchema
	if err := json.Unmarshal(body, &schemas); err != nil {
		return nil, errors.WithMessagef(ErrDiscovery, "server %s: malformed schema payload: %v", c.id, err)
	}
	for i, s := range schemas {
		if s.Name == "" || s.Description == "" || len(s.InputSchema) == 0 {
			return nil, errors.WithMessagef(ErrDiscovery,
				"server %s: schema %d is missing name, description or input_schema", c.id, i)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"server", c.id,
		"status", "tools_listed",
		"count", len(schemas),
	)
	return schemas, nil
}

// CallTool invokes a named tool with JSON arguments. The call is treated as
// non-idempotent: a transport failure is returned as-is, never retried.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (*CallResult, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	payload, err := json.Marshal(executeRequest{
		ToolName:   name,
		Parameters: args,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to marshal invocation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+executeToolPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create invocation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.WithMessagef(err, "server %s unreachable", c.id)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithMessagef(err, "server %s: failed to read response", c.id)
	}

	if resp.StatusCode != http.StatusOK {
		var ep errorPayload
		_ = json.Unmarshal(body, &ep)
		msg := ep.Message
		if msg == "" {
			msg = ep.Error
		}
		if msg == "" {
			msg = ep.Detail
		}
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	var res CallResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.WithMessagef(err, "server %s: malformed invocation response", c.id)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"server", c.id,
		"tool", name,
		"status", "tool_called",
		"success", res.Success,
	)
	return &res, nil
}

// Package router dispatches model-issued tool calls to the server that owns
// the tool, validating arguments against the tool's input schema before any
// request leaves the process.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/mcpclient"
	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/effective-security/mcphost/pkg/metricskey"
	"github.com/effective-security/mcphost/registry"
	"github.com/effective-security/xlog"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "router")

// ErrInvalidArguments is returned when a call's arguments do not match the
// tool's declared input schema. The call never reaches the tool server.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// Status of a tool call result.
type Status string

const (
	// StatusSuccess marks a completed tool call.
	StatusSuccess Status = "success"
	// StatusError marks a failed, rejected or cancelled tool call.
	StatusError Status = "error"
)

// CancelledPayload is the content recorded for calls abandoned by
// cancellation, distinct from every other error payload.
const CancelledPayload = "cancelled"

// Result is the outcome of one tool call, tied back to its originating
// request by CallID.
type Result struct {
	CallID  string
	Name    string
	Status  Status
	Content string
	// NotFound is set when the call named a tool no server advertises.
	NotFound bool
}

// ToMessage converts the result to a conversation turn.
func (r Result) ToMessage() llms.Message {
	return llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
		ToolCallID: r.CallID,
		Name:       r.Name,
		Content:    r.Content,
		IsError:    r.Status == StatusError,
	})
}

// Callback observes tool dispatch. All methods may be called concurrently.
type Callback interface {
	OnToolStart(ctx context.Context, serverID, tool, input string)
	OnToolEnd(ctx context.Context, serverID, tool, input, output string)
	OnToolError(ctx context.Context, serverID, tool, input string, err error)
	OnToolNotFound(ctx context.Context, tool string)
}

// Router routes tool calls for a single orchestration run. It guarantees
// at-most-once delivery per call ID within the run: side-effecting calls are
// never retried, and a repeated call ID is rejected before dispatch.
type Router struct {
	registry    *registry.Registry
	callTimeout time.Duration
	callback    Callback

	mu   sync.Mutex
	seen map[string]bool
}

// Option configures a Router.
type Option func(*Router)

// WithCallTimeout sets the per-dispatch timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Router) {
		r.callTimeout = d
	}
}

// WithCallback installs a dispatch observer.
func WithCallback(cb Callback) Option {
	return func(r *Router) {
		r.callback = cb
	}
}

// New creates a router over the given registry, scoped to one run.
func New(reg *registry.Registry, opts ...Option) *Router {
	r := &Router{
		registry:    reg,
		callTimeout: mcpclient.DefaultCallTimeout,
		seen:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch resolves, validates and executes one tool call. Every failure is
// recovered into an error Result so the model can see it and self-correct;
// Dispatch itself never returns an error.
func (r *Router) Dispatch(ctx context.Context, call llms.ToolCall) Result {
	name := call.FunctionCall.Name
	args := call.FunctionCall.Arguments

	res := Result{
		CallID: call.ID,
		Name:   name,
		Status: StatusError,
	}

	r.mu.Lock()
	dup := r.seen[call.ID]
	r.seen[call.ID] = true
	r.mu.Unlock()
	if dup {
		res.Content = "Tool call " + call.ID + " was already delivered in this run."
		return res
	}

	resolved, err := r.registry.Resolve(name)
	if err != nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		if r.callback != nil {
			r.callback.OnToolNotFound(ctx, name)
		}
		available := strings.Join(r.registry.ToolNames(), ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_not_found",
			"tool", name,
			"available_tools", available,
		)
		res.NotFound = true
		res.Content = "Tool `" + name + "` not found. Please check the tool name and try again with exact match. Available tools: " + available
		return res
	}

	serverID := resolved.Server.ID()
	if err := validateArguments(resolved.Validator, args); err != nil {
		metricskey.StatsToolCallsRejected.IncrCounter(1, name)
		if r.callback != nil {
			r.callback.OnToolError(ctx, serverID, name, args, err)
		}
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "arguments_rejected",
			"tool", name,
			"server", serverID,
			"err", err.Error(),
		)
		res.Content = "Invalid arguments for tool `" + name + "`: " + err.Error() +
			". Check the tool's input schema and try again."
		return res
	}

	if r.callback != nil {
		r.callback.OnToolStart(ctx, serverID, name, args)
	}

	started := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	out, err := resolved.Server.CallTool(callCtx, name, []byte(args))
	metricskey.PerfToolDispatch.MeasureSince(started, name)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		if r.callback != nil {
			r.callback.OnToolError(ctx, serverID, name, args, err)
		}
		res.Content = mapDispatchError(ctx, callCtx, err)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_call_failed",
			"tool", name,
			"server", serverID,
			"err", err.Error(),
		)
		return res
	}

	content := decodeContent(out.Result)
	if !out.Success {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		if r.callback != nil {
			r.callback.OnToolError(ctx, serverID, name, args, errors.New(content))
		}
		res.Content = content
		return res
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	if r.callback != nil {
		r.callback.OnToolEnd(ctx, serverID, name, args, content)
	}
	res.Status = StatusSuccess
	res.Content = content
	return res
}

// DispatchAll executes the calls of one assistant turn. Calls are dispatched
// concurrently, but results are returned strictly in request order regardless
// of completion order. Calls abandoned by cancellation are recorded as error
// results with the cancelled payload, never dropped.
func (r *Router) DispatchAll(ctx context.Context, calls []llms.ToolCall) []Result {
	results := make([]Result, len(calls))

	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()
			results[index] = r.Dispatch(ctx, tc)
		}(i, call)
	}
	wg.Wait()

	return results
}

// decodeContent renders a tool result payload as text for the model. JSON
// strings are unquoted; any other payload is passed through verbatim.
func decodeContent(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func validateArguments(validator *jsonschema.Schema, args string) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(args)))
	if err != nil {
		return errors.WithMessagef(ErrInvalidArguments, "arguments are not valid JSON: %v", err)
	}
	if err := validator.Validate(inst); err != nil {
		return errors.WithMessagef(ErrInvalidArguments, "%v", err)
	}
	return nil
}

func mapDispatchError(parent, call context.Context, err error) string {
	switch {
	case parent.Err() != nil:
		return CancelledPayload
	case errors.Is(err, context.DeadlineExceeded) || call.Err() != nil:
		return "tool call timed out: " + err.Error()
	default:
		var serverErr *mcpclient.ServerError
		if errors.As(err, &serverErr) {
			return serverErr.Message
		}
		return "server unreachable: " + err.Error()
	}
}

// Package host runs the orchestration loop: it sends the conversation to the
// model gateway, executes the tool calls the model asks for, appends the
// results in request order, and repeats until the model answers directly or
// the run fails.
package host

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/callbacks"
	"github.com/effective-security/mcphost/conversation"
	"github.com/effective-security/mcphost/gateway"
	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/effective-security/mcphost/pkg/metricskey"
	"github.com/effective-security/mcphost/registry"
	"github.com/effective-security/mcphost/router"
	"github.com/effective-security/mcphost/store"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "host")

// DefaultMaxIterations bounds how many tool execution cycles one run may go
// through before it is declared stuck.
const DefaultMaxIterations = 25

// maxConsecutiveNotFound bounds cycles in a row where the model keeps asking
// for tools that do not exist.
const maxConsecutiveNotFound = 3

var (
	// ErrIterationCap is the failure of a run that hit the tool execution
	// cycle limit.
	ErrIterationCap = errors.New("tool iteration limit exceeded")
	// ErrToolsNotFound is the failure of a run where the model repeatedly
	// asked for tools no server advertises.
	ErrToolsNotFound = errors.New("repeated calls to unknown tools")
)

// State of an orchestration run.
type State string

const (
	// StateAwaitingModel means the run is waiting for a gateway completion.
	StateAwaitingModel State = "awaiting_model"
	// StateExecutingTools means the run is executing model-issued tool calls.
	StateExecutingTools State = "executing_tools"
	// StateDone is the terminal state of a run that produced a final answer.
	StateDone State = "done"
	// StateFailed is the terminal state of a run that could not complete.
	StateFailed State = "failed"
)

// FailureReason classifies why a run reached StateFailed.
type FailureReason string

const (
	// FailureNone is set on runs that did not fail.
	FailureNone FailureReason = ""
	// FailureGateway means the model gateway failed after retries.
	FailureGateway FailureReason = "gateway"
	// FailureIterationCap means the run hit the tool execution cycle limit.
	FailureIterationCap FailureReason = "iteration_cap"
	// FailureToolsNotFound means the model kept asking for unknown tools.
	FailureToolsNotFound FailureReason = "tools_not_found"
	// FailureCancelled means the caller cancelled the run.
	FailureCancelled FailureReason = "cancelled"
)

// RunResult is the report of one finished run.
type RunResult struct {
	// RunID identifies the run.
	RunID string
	// Content is the model's final answer when State is StateDone.
	Content string
	// State is the terminal state, StateDone or StateFailed.
	State State
	// FailureReason is set when State is StateFailed.
	FailureReason FailureReason
	// Iterations is the number of tool execution cycles the run went through.
	Iterations int
	// Messages is the full conversation transcript.
	Messages []llms.Message
}

// Host drives orchestration runs against one gateway and one tool catalog.
type Host struct {
	gateway  gateway.Gateway
	registry *registry.Registry

	maxIterations int
	callTimeout   time.Duration
	systemPrompt  string
	store         store.MessageStore
	callback      callbacks.Callback
}

// Option configures a Host.
type Option func(*Host)

// WithMaxIterations sets the tool execution cycle limit.
func WithMaxIterations(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.maxIterations = n
		}
	}
}

// WithCallTimeout sets the per-tool-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.callTimeout = d
	}
}

// WithSystemPrompt overrides the default system prompt template.
func WithSystemPrompt(tmpl string) Option {
	return func(h *Host) {
		h.systemPrompt = tmpl
	}
}

// WithStore mirrors run transcripts to the given store.
func WithStore(s store.MessageStore) Option {
	return func(h *Host) {
		h.store = s
	}
}

// WithCallback installs a run observer.
func WithCallback(cb callbacks.Callback) Option {
	return func(h *Host) {
		h.callback = cb
	}
}

// New creates a Host.
func New(gw gateway.Gateway, reg *registry.Registry, opts ...Option) (*Host, error) {
	if gw == nil {
		return nil, errors.New("host: gateway is required")
	}
	if reg == nil {
		return nil, errors.New("host: registry is required")
	}
	h := &Host{
		gateway:       gw,
		registry:      reg,
		maxIterations: DefaultMaxIterations,
		systemPrompt:  DefaultSystemPromptTemplate,
		callback:      callbacks.NewNoop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if !gw.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
		return nil, errors.Newf("host: provider %s does not support function calling", gw.GetProviderType())
	}
	if _, err := RenderSystemPrompt(h.systemPrompt, nil); err != nil {
		return nil, errors.WithMessage(err, "host: invalid system prompt template")
	}
	return h, nil
}

// run carries the mutable pieces of one Run invocation.
type run struct {
	conv   *conversation.Conversation
	router *router.Router
	tools  []llms.Tool
}

// Run executes one orchestration run to termination. The returned RunResult
// is populated for failed runs too, alongside a non-nil error.
func (h *Host) Run(ctx context.Context, input string) (*RunResult, error) {
	started := time.Now()
	defer metricskey.PerfRun.MeasureSince(started)

	r := &run{
		conv:  conversation.New(""),
		tools: h.registry.AllSchemas(),
	}

	routerOpts := []router.Option{
		router.WithCallback(h.callback),
	}
	if h.callTimeout > 0 {
		routerOpts = append(routerOpts, router.WithCallTimeout(h.callTimeout))
	}
	r.router = router.New(h.registry, routerOpts...)

	runID := r.conv.RunID()
	h.callback.OnRunStart(ctx, runID, input)

	systemPrompt, err := RenderSystemPrompt(h.systemPrompt, r.tools)
	if err != nil {
		return &RunResult{
			RunID:         runID,
			State:         StateFailed,
			FailureReason: FailureGateway,
		}, errors.WithMessage(err, "host: failed to render system prompt")
	}
	h.append(ctx, r,
		llms.MessageFromTextParts(llms.RoleSystem, systemPrompt),
		llms.MessageFromTextParts(llms.RoleHuman, input),
	)

	result, err := h.loop(ctx, r)
	if err != nil {
		metricskey.StatsRunsFailed.IncrCounter(1, string(result.FailureReason))
		h.callback.OnRunError(ctx, runID, err)
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "run_failed",
			"run_id", runID,
			"reason", result.FailureReason,
			"iterations", result.Iterations,
			"err", err.Error(),
		)
		return result, err
	}

	metricskey.StatsRunsSucceeded.IncrCounter(1)
	h.callback.OnRunEnd(ctx, runID, result.Content)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "run_done",
		"run_id", runID,
		"iterations", result.Iterations,
	)
	return result, nil
}

func (h *Host) loop(ctx context.Context, r *run) (*RunResult, error) {
	runID := r.conv.RunID()
	model := h.gateway.GetName()

	state := StateAwaitingModel
	iterations := 0
	consecutiveNotFound := 0

	fail := func(reason FailureReason, err error) (*RunResult, error) {
		h.transition(ctx, runID, &state, StateFailed)
		return &RunResult{
			RunID:         runID,
			State:         StateFailed,
			FailureReason: reason,
			Iterations:    iterations,
			Messages:      r.conv.Messages(),
		}, err
	}

	for {
		msgs := r.conv.Messages()
		h.callback.OnGatewayCallStart(ctx, runID, model, len(msgs))

		completion, err := h.gateway.Complete(ctx, msgs, r.tools)
		if err != nil {
			if ctx.Err() != nil {
				return fail(FailureCancelled, errors.WithMessage(ctx.Err(), "run cancelled"))
			}
			return fail(FailureGateway, err)
		}
		h.callback.OnGatewayCallEnd(ctx, runID, model, len(completion.ToolCalls))

		if len(completion.ToolCalls) == 0 {
			// Final answer.
			h.append(ctx, r, llms.MessageFromTextParts(llms.RoleAI, completion.Content))
			h.transition(ctx, runID, &state, StateDone)
			return &RunResult{
				RunID:      runID,
				Content:    completion.Content,
				State:      StateDone,
				Iterations: iterations,
				Messages:   r.conv.Messages(),
			}, nil
		}

		// The assistant turn carries both its text and the calls it issued.
		var parts []llms.ContentPart
		if completion.Content != "" {
			parts = append(parts, llms.TextPart(completion.Content))
		}
		for _, tc := range completion.ToolCalls {
			parts = append(parts, tc)
		}
		h.append(ctx, r, llms.MessageFromParts(llms.RoleAI, parts...))

		h.transition(ctx, runID, &state, StateExecutingTools)
		iterations++

		results := r.router.DispatchAll(ctx, completion.ToolCalls)

		// One result per requested call, in request order.
		notFound := 0
		resultMsgs := make([]llms.Message, 0, len(results))
		for _, res := range results {
			if res.NotFound {
				notFound++
			}
			resultMsgs = append(resultMsgs, res.ToMessage())
		}
		h.append(ctx, r, resultMsgs...)

		if ctx.Err() != nil {
			return fail(FailureCancelled, errors.WithMessage(ctx.Err(), "run cancelled"))
		}

		if notFound > 0 {
			consecutiveNotFound += notFound
			if consecutiveNotFound > maxConsecutiveNotFound {
				return fail(FailureToolsNotFound, errors.WithMessagef(ErrToolsNotFound,
					"run %s: %d consecutive calls to unknown tools", runID, consecutiveNotFound))
			}
		} else {
			consecutiveNotFound = 0
		}

		if iterations >= h.maxIterations {
			return fail(FailureIterationCap, errors.WithMessagef(ErrIterationCap,
				"run %s: %d tool execution cycles", runID, iterations))
		}

		h.transition(ctx, runID, &state, StateAwaitingModel)
	}
}

// append adds turns to the conversation and mirrors them to the store. The
// mirror is best effort: a store failure never fails the run.
func (h *Host) append(ctx context.Context, r *run, msgs ...llms.Message) {
	r.conv.Append(msgs...)
	if h.store != nil {
		if err := h.store.Add(ctx, r.conv.RunID(), msgs...); err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "store_mirror_failed",
				"run_id", r.conv.RunID(),
				"err", err.Error(),
			)
		}
	}
}

func (h *Host) transition(ctx context.Context, runID string, state *State, to State) {
	if *state == to {
		return
	}
	h.callback.OnStateChange(ctx, runID, string(*state), string(to))
	*state = to
}

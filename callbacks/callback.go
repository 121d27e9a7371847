// Package callbacks provides observers for orchestration runs: run
// lifecycle, state transitions, gateway calls, tool dispatch, and tool
// catalog conflicts.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mcphost/router"
	"github.com/effective-security/xlog"
)

// Callback observes one orchestration run. Tool dispatch methods may be
// called concurrently; the rest are serialized by the run loop.
type Callback interface {
	OnRunStart(ctx context.Context, runID, input string)
	OnRunEnd(ctx context.Context, runID, content string)
	OnRunError(ctx context.Context, runID string, err error)
	OnStateChange(ctx context.Context, runID, from, to string)
	OnGatewayCallStart(ctx context.Context, runID, model string, messages int)
	OnGatewayCallEnd(ctx context.Context, runID, model string, toolCalls int)

	OnToolStart(ctx context.Context, serverID, tool, input string)
	OnToolEnd(ctx context.Context, serverID, tool, input, output string)
	OnToolError(ctx context.Context, serverID, tool, input string, err error)
	OnToolNotFound(ctx context.Context, tool string)

	// OnDuplicateTool fires when discovery finds a tool name already
	// advertised by an earlier server. The most recent advertisement wins.
	OnDuplicateTool(toolName, prevServerID, newServerID string, identical bool)
}

// ensure that the callbacks implement the correct interfaces
var (
	_ Callback        = (*Noop)(nil)
	_ router.Callback = (*Noop)(nil)
	_ Callback        = (*Printer)(nil)
	_ router.Callback = (*Printer)(nil)
	_ Callback        = (*PackageLogger)(nil)
	_ router.Callback = (*PackageLogger)(nil)
	_ Callback        = (*Fanout)(nil)
	_ router.Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout forwards every event to multiple callbacks.
type Fanout struct {
	callbacks []Callback
}

func NewFanout(callbacks ...Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnRunStart(ctx context.Context, runID, input string) {
	for _, callback := range l.callbacks {
		callback.OnRunStart(ctx, runID, input)
	}
}

func (l *Fanout) OnRunEnd(ctx context.Context, runID, content string) {
	for _, callback := range l.callbacks {
		callback.OnRunEnd(ctx, runID, content)
	}
}

func (l *Fanout) OnRunError(ctx context.Context, runID string, err error) {
	for _, callback := range l.callbacks {
		callback.OnRunError(ctx, runID, err)
	}
}

func (l *Fanout) OnStateChange(ctx context.Context, runID, from, to string) {
	for _, callback := range l.callbacks {
		callback.OnStateChange(ctx, runID, from, to)
	}
}

func (l *Fanout) OnGatewayCallStart(ctx context.Context, runID, model string, messages int) {
	for _, callback := range l.callbacks {
		callback.OnGatewayCallStart(ctx, runID, model, messages)
	}
}

func (l *Fanout) OnGatewayCallEnd(ctx context.Context, runID, model string, toolCalls int) {
	for _, callback := range l.callbacks {
		callback.OnGatewayCallEnd(ctx, runID, model, toolCalls)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, serverID, tool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, serverID, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, serverID, tool, input, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, serverID, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, serverID, tool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, serverID, tool, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, tool)
	}
}

func (l *Fanout) OnDuplicateTool(toolName, prevServerID, newServerID string, identical bool) {
	for _, callback := range l.callbacks {
		callback.OnDuplicateTool(toolName, prevServerID, newServerID, identical)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnRunStart(ctx context.Context, runID, input string)       {}
func (l *Noop) OnRunEnd(ctx context.Context, runID, content string)       {}
func (l *Noop) OnRunError(ctx context.Context, runID string, err error)   {}
func (l *Noop) OnStateChange(ctx context.Context, runID, from, to string) {}
func (l *Noop) OnGatewayCallStart(ctx context.Context, runID, model string, messages int) {
}
func (l *Noop) OnGatewayCallEnd(ctx context.Context, runID, model string, toolCalls int) {
}
func (l *Noop) OnToolStart(ctx context.Context, serverID, tool, input string)       {}
func (l *Noop) OnToolEnd(ctx context.Context, serverID, tool, input, output string) {}
func (l *Noop) OnToolError(ctx context.Context, serverID, tool, input string, err error) {
}
func (l *Noop) OnToolNotFound(ctx context.Context, tool string) {}
func (l *Noop) OnDuplicateTool(toolName, prevServerID, newServerID string, identical bool) {
}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnRunStart(ctx context.Context, runID, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run Start: %s\n", runID)
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnRunEnd(ctx context.Context, runID, content string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run End: %s\n", runID)
	if l.Mode == ModeVerbose && content != "" {
		fmt.Fprintln(l.Out, content)
	}
}

func (l *Printer) OnRunError(ctx context.Context, runID string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run Error: %s: %s\n", runID, err.Error())
}

func (l *Printer) OnStateChange(ctx context.Context, runID, from, to string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run %s: %s -> %s\n", runID, from, to)
}

func (l *Printer) OnGatewayCallStart(ctx context.Context, runID, model string, messages int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Gateway Call: %s: %s model, %d messages\n", runID, model, messages)
}

func (l *Printer) OnGatewayCallEnd(ctx context.Context, runID, model string, toolCalls int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Gateway Call End: %s: %s model, %d tool calls\n", runID, model, toolCalls)
}

func (l *Printer) OnToolStart(ctx context.Context, serverID, tool, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s (%s)\n", tool, serverID)
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnToolEnd(ctx context.Context, serverID, tool, input, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s (%s)\n", tool, serverID)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(ctx context.Context, serverID, tool, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s (%s): %s\n", tool, serverID, err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, tool string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", tool)
}

func (l *Printer) OnDuplicateTool(toolName, prevServerID, newServerID string, identical bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if identical {
		fmt.Fprintf(l.Out, "Duplicate Tool: %s advertised by %s and %s with the same schema, using %s\n",
			toolName, prevServerID, newServerID, newServerID)
	} else {
		fmt.Fprintf(l.Out, "Duplicate Tool: %s advertised by %s and %s with different schemas, using %s\n",
			toolName, prevServerID, newServerID, newServerID)
	}
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnRunStart(ctx context.Context, runID, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_start",
		"run_id", runID,
		"input", input,
	)
}

func (l *PackageLogger) OnRunEnd(ctx context.Context, runID, content string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_end",
		"run_id", runID,
	)
	if content != "" {
		l.logger.ContextKV(ctx, xlog.DEBUG, "result", content)
	}
}

func (l *PackageLogger) OnRunError(ctx context.Context, runID string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "run_error",
		"run_id", runID,
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnStateChange(ctx context.Context, runID, from, to string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "state_change",
		"run_id", runID,
		"from", from,
		"to", to,
	)
}

func (l *PackageLogger) OnGatewayCallStart(ctx context.Context, runID, model string, messages int) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "gateway_call_start",
		"run_id", runID,
		"model", model,
		"messages", messages,
	)
}

func (l *PackageLogger) OnGatewayCallEnd(ctx context.Context, runID, model string, toolCalls int) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "gateway_call_end",
		"run_id", runID,
		"model", model,
		"tool_calls", toolCalls,
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, serverID, tool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"server", serverID,
		"tool", tool,
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, serverID, tool, input, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"server", serverID,
		"tool", tool,
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, serverID, tool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"server", serverID,
		"tool", tool,
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, tool string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_not_found",
		"tool", tool,
	)
}

func (l *PackageLogger) OnDuplicateTool(toolName, prevServerID, newServerID string, identical bool) {
	l.logger.KV(xlog.WARNING,
		"event", "duplicate_tool",
		"tool", toolName,
		"prev_server", prevServerID,
		"new_server", newServerID,
		"identical_schema", identical,
	)
}

package callbacks_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/callbacks"
	"github.com/stretchr/testify/assert"
)

func fireAll(cb callbacks.Callback) {
	ctx := context.Background()
	cb.OnRunStart(ctx, "run-1", "read a.txt")
	cb.OnStateChange(ctx, "run-1", "awaiting_model", "executing_tools")
	cb.OnGatewayCallStart(ctx, "run-1", "gpt-4o", 2)
	cb.OnGatewayCallEnd(ctx, "run-1", "gpt-4o", 1)
	cb.OnToolStart(ctx, "files", "read_file", `{"file_path":"a.txt"}`)
	cb.OnToolEnd(ctx, "files", "read_file", `{"file_path":"a.txt"}`, "contents of a")
	cb.OnToolError(ctx, "files", "read_file", `{}`, errors.New("boom"))
	cb.OnToolNotFound(ctx, "delete_file")
	cb.OnDuplicateTool("search", "first", "second", false)
	cb.OnDuplicateTool("search", "second", "third", true)
	cb.OnRunError(ctx, "run-1", errors.New("gateway down"))
	cb.OnRunEnd(ctx, "run-1", "done reading")
}

func Test_Printer(t *testing.T) {
	var buf bytes.Buffer
	fireAll(callbacks.NewPrinter(&buf, callbacks.ModeDefault))

	out := buf.String()
	assert.Contains(t, out, "Run Start: run-1")
	assert.Contains(t, out, "Input: read a.txt")
	assert.Contains(t, out, "Run run-1: awaiting_model -> executing_tools")
	assert.Contains(t, out, "Gateway Call: run-1: gpt-4o model, 2 messages")
	assert.Contains(t, out, "Gateway Call End: run-1: gpt-4o model, 1 tool calls")
	assert.Contains(t, out, "Tool Start: read_file (files)")
	assert.Contains(t, out, "Tool End: read_file (files)")
	assert.Contains(t, out, "Tool Error: read_file (files): boom")
	assert.Contains(t, out, "Tool Not Found: delete_file")
	assert.Contains(t, out, "search advertised by first and second with different schemas, using second")
	assert.Contains(t, out, "search advertised by second and third with the same schema, using third")
	assert.Contains(t, out, "Run Error: run-1: gateway down")
	assert.Contains(t, out, "Run End: run-1")

	// default mode never prints payloads
	assert.NotContains(t, out, "Output: contents of a")
	assert.NotContains(t, out, "done reading")
}

func Test_PrinterVerbose(t *testing.T) {
	var buf bytes.Buffer
	fireAll(callbacks.NewPrinter(&buf, callbacks.ModeVerbose))

	out := buf.String()
	assert.Contains(t, out, "Output: contents of a")
	assert.Contains(t, out, "done reading")
}

func Test_Fanout(t *testing.T) {
	var a, b bytes.Buffer
	fan := callbacks.NewFanout(callbacks.NewPrinter(&a, callbacks.ModeDefault))
	fan.Add(callbacks.NewPrinter(&b, callbacks.ModeVerbose))

	fireAll(fan)

	assert.Contains(t, a.String(), "Run Start: run-1")
	assert.Contains(t, b.String(), "Run Start: run-1")
	assert.NotContains(t, a.String(), "Output: contents of a")
	assert.Contains(t, b.String(), "Output: contents of a")
}

func Test_Noop(t *testing.T) {
	// nothing to assert, it just must not blow up
	fireAll(callbacks.NewNoop())
}

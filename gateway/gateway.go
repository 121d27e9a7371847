// Package gateway defines the abstract model gateway: it sends a conversation
// plus tool schemas to a model backend and returns either a final textual
// answer or a list of requested tool calls. Vendor wire formats are
// normalized behind this single boundary; adding a vendor means adding one
// adapter, not touching the orchestration loop.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/effective-security/x/values"
)

var (
	// ErrGateway is the fatal gateway failure surfaced to the orchestration
	// loop after retries are exhausted.
	ErrGateway = errors.New("gateway failure")
	// ErrMalformedResponse marks model output that cannot be normalized,
	// such as a tool call whose arguments are not valid JSON. Retryable.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrEmptyResponse marks a response with no content and no tool calls.
	// Retryable.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrTransport marks a transient failure reaching the model backend.
	// Retryable.
	ErrTransport = errors.New("gateway transport failure")
)

// Completion is the normalized outcome of one model call. Zero tool calls
// means Content is the final answer.
type Completion struct {
	// Content is the textual content of the response.
	Content string
	// StopReason is the reason the model stopped generating output.
	StopReason string
	// ToolCalls is the list of tool calls the model asks to invoke, in the
	// order the model issued them.
	ToolCalls []llms.ToolCall
}

// Gateway is the abstract client for a model backend.
type Gateway interface {
	// GetName returns the configured model name.
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() llms.ProviderType
	// Complete sends the conversation and tool schemas to the model and
	// returns the normalized completion.
	Complete(ctx context.Context, messages []llms.Message, tools []llms.Tool) (*Completion, error)
}

// NormalizeToolCalls fills in missing call IDs and types, and repairs
// argument payloads that are not valid JSON. Arguments that cannot be
// repaired fail with ErrMalformedResponse.
func NormalizeToolCalls(calls []llms.ToolCall) ([]llms.ToolCall, error) {
	out := make([]llms.ToolCall, 0, len(calls))
	for i, tc := range calls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name == "" {
			return nil, errors.WithMessagef(ErrMalformedResponse, "tool call %d has no function name", i)
		}
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("%s_%d", tc.FunctionCall.Name, i)
		}
		tc.Type = values.StringsCoalesce(tc.Type, "function")

		args, err := repairArguments(tc.FunctionCall.Arguments)
		if err != nil {
			return nil, errors.WithMessagef(ErrMalformedResponse,
				"tool call %s: arguments are not valid JSON: %v", tc.ID, err)
		}
		tc.FunctionCall = &llms.FunctionCall{
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		}
		out = append(out, tc)
	}
	return out, nil
}

// repairArguments returns the arguments as canonical JSON. Model output is
// occasionally truncated or decorated; a lenient parse is attempted before
// the payload is declared malformed.
func repairArguments(args string) (string, error) {
	if args == "" {
		return "{}", nil
	}
	var v any
	if err := json.Unmarshal([]byte(args), &v); err == nil {
		return args, nil
	}
	if err := ljson.Unmarshal([]byte(args), &v); err != nil {
		return "", err
	}
	repaired, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(repaired), nil
}

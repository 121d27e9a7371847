package gateway_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/gateway"
	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NormalizeToolCalls(t *testing.T) {
	calls := []llms.ToolCall{
		{
			FunctionCall: &llms.FunctionCall{
				Name:      "read_file",
				Arguments: `{"file_path":"a.txt"}`,
			},
		},
		{
			ID:   "call_abc",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "create_file",
				Arguments: "",
			},
		},
	}

	out, err := gateway.NormalizeToolCalls(calls)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// synthesized ID and default type
	assert.Equal(t, "read_file_0", out[0].ID)
	assert.Equal(t, "function", out[0].Type)
	assert.Equal(t, `{"file_path":"a.txt"}`, out[0].FunctionCall.Arguments)

	// provided ID kept, empty arguments become an empty object
	assert.Equal(t, "call_abc", out[1].ID)
	assert.Equal(t, "{}", out[1].FunctionCall.Arguments)
}

func Test_NormalizeToolCalls_RepairsArguments(t *testing.T) {
	calls := []llms.ToolCall{
		{
			FunctionCall: &llms.FunctionCall{
				Name: "read_file",
				// truncated payload, as models sometimes emit
				Arguments: `{"file_path": "a.txt"`,
			},
		},
	}

	out, err := gateway.NormalizeToolCalls(calls)
	require.NoError(t, err)
	assert.JSONEq(t, `{"file_path":"a.txt"}`, out[0].FunctionCall.Arguments)
}

func Test_NormalizeToolCalls_Malformed(t *testing.T) {
	_, err := gateway.NormalizeToolCalls([]llms.ToolCall{
		{ID: "call_1", FunctionCall: &llms.FunctionCall{Name: ""}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrMalformedResponse)

	_, err = gateway.NormalizeToolCalls([]llms.ToolCall{
		{FunctionCall: nil},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrMalformedResponse)
}

type scriptedGateway struct {
	name     string
	provider llms.ProviderType
	attempts int
	script   []func() (*gateway.Completion, error)
}

func (g *scriptedGateway) GetName() string                    { return g.name }
func (g *scriptedGateway) GetProviderType() llms.ProviderType { return g.provider }

func (g *scriptedGateway) Complete(_ context.Context, _ []llms.Message, _ []llms.Tool) (*gateway.Completion, error) {
	step := g.script[g.attempts]
	if g.attempts < len(g.script)-1 {
		g.attempts++
	}
	return step()
}

func Test_RetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	g := &scriptedGateway{
		name:     "test-model",
		provider: llms.ProviderOpenAI,
		script: []func() (*gateway.Completion, error){
			func() (*gateway.Completion, error) {
				calls++
				return nil, errors.WithMessage(gateway.ErrTransport, "connection reset")
			},
			func() (*gateway.Completion, error) {
				calls++
				return nil, errors.WithMessage(gateway.ErrEmptyResponse, "no choices")
			},
			func() (*gateway.Completion, error) {
				calls++
				return &gateway.Completion{Content: "done"}, nil
			},
		},
	}

	resp, err := gateway.WithRetries(g, 3).Complete(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 3, calls)
}

func Test_RetryExhausted(t *testing.T) {
	calls := 0
	g := &scriptedGateway{
		name:     "test-model",
		provider: llms.ProviderOpenAI,
		script: []func() (*gateway.Completion, error){
			func() (*gateway.Completion, error) {
				calls++
				return nil, errors.WithMessage(gateway.ErrMalformedResponse, "bad arguments")
			},
		},
	}

	_, err := gateway.WithRetries(g, 2).Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrGateway)
	assert.ErrorIs(t, err, gateway.ErrMalformedResponse)
	// initial attempt plus two retries
	assert.Equal(t, 3, calls)
}

func Test_RetryNonRetryable(t *testing.T) {
	calls := 0
	g := &scriptedGateway{
		name:     "test-model",
		provider: llms.ProviderAnthropic,
		script: []func() (*gateway.Completion, error){
			func() (*gateway.Completion, error) {
				calls++
				return nil, errors.New("invalid api key")
			},
		},
	}

	_, err := gateway.WithRetries(g, 3).Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrGateway)
	assert.Equal(t, 1, calls)
}

package llms_test

import (
	"testing"

	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MessageRoundTrip(t *testing.T) {
	msg := llms.MessageFromParts(llms.RoleAI,
		llms.TextPart("Reading the file now."),
		llms.ToolCall{
			ID:   "call_1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "read_file",
				Arguments: `{"file_path":"a.txt"}`,
			},
		},
	)

	data, err := llms.MarshalMessage(msg)
	require.NoError(t, err)

	got, err := llms.UnmarshalMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func Test_ToolResponseRoundTrip(t *testing.T) {
	msg := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
		ToolCallID: "call_1",
		Name:       "read_file",
		Content:    "file not found or is not a regular file: a.txt",
		IsError:    true,
	})

	data, err := llms.MarshalMessage(msg)
	require.NoError(t, err)

	got, err := llms.UnmarshalMessage(data)
	require.NoError(t, err)
	require.Len(t, got.Parts, 1)
	tr, ok := got.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.True(t, tr.IsError)
	assert.Equal(t, "read_file", tr.Name)
}

func Test_UnmarshalUnknownPartType(t *testing.T) {
	_, err := llms.UnmarshalMessage([]byte(`{"role":"ai","parts":[{"type":"image"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported part type")
}

func Test_UnmarshalMissingPayload(t *testing.T) {
	_, err := llms.UnmarshalMessage([]byte(`{"role":"ai","parts":[{"type":"tool_call"}]}`))
	require.Error(t, err)

	_, err = llms.UnmarshalMessage([]byte(`{"role":"tool","parts":[{"type":"tool_response"}]}`))
	require.Error(t, err)
}

func Test_GetContent(t *testing.T) {
	msg := llms.MessageFromParts(llms.RoleAI,
		llms.TextPart("checking the file"),
		llms.ToolCall{
			ID:   "call_1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "read_file",
				Arguments: `{}`,
			},
		},
	)
	out := msg.GetContent()
	assert.Contains(t, out, "checking the file")
	assert.Contains(t, out, "Tool Call: ")
	assert.Contains(t, out, "read_file")
}

func Test_ProviderCapabilities(t *testing.T) {
	assert.True(t, llms.ProviderOpenAI.Supports(llms.CapabilityFunctionCalling))
	assert.True(t, llms.ProviderAnthropic.Supports(llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderType("UNKNOWN").Supports(llms.CapabilityFunctionCalling))
}

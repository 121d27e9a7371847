package host_test

import (
	"testing"
	"time"

	"github.com/effective-security/mcphost/host"
	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_RenderSystemPrompt(t *testing.T) {
	tools := []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "read_file",
				Description: "Read the contents of a file.\n",
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "git_status",
				Description: "Show the working tree status.",
			},
		},
	}

	out, err := host.RenderSystemPrompt(host.DefaultSystemPromptTemplate, tools)
	require.NoError(t, err)

	assert.Contains(t, out, "- read_file: Read the contents of a file.")
	assert.Contains(t, out, "- git_status: Show the working tree status.")
	assert.Contains(t, out, time.Now().Format("2006-01-02"))
	assert.NotContains(t, out, "No tools are available")
}

func Test_RenderSystemPrompt_NoTools(t *testing.T) {
	out, err := host.RenderSystemPrompt(host.DefaultSystemPromptTemplate, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "No tools are available")
	assert.NotContains(t, out, "You can use the following tools")
}

func Test_RenderSystemPrompt_BadTemplate(t *testing.T) {
	_, err := host.RenderSystemPrompt(`{{ .Missing `, nil)
	require.Error(t, err)
}

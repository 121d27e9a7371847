package host

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/pkg/llms"
)

// DefaultSystemPromptTemplate instructs the model on how to use the tool
// catalog. The rendered tool list mirrors what the gateway sends as schemas
// so the prose and the schemas never disagree on what is available.
const DefaultSystemPromptTemplate = `You are a helpful assistant with access to external tools.

Today is {{ now | date "2006-01-02" }}.

{{- if .Tools }}

You can use the following tools:
{{- range .Tools }}
- {{ .Name }}: {{ .Description | trim }}
{{- end }}

When a task requires a tool, call it with arguments that match its input
schema exactly. Use the results of tool calls to answer the user. When no
tool is needed, answer directly.
{{- else }}

No tools are available. Answer from your own knowledge.
{{- end }}`

type promptTool struct {
	Name        string
	Description string
}

type promptData struct {
	Tools []promptTool
}

// RenderSystemPrompt renders the system prompt template over the tool
// catalog.
func RenderSystemPrompt(tmpl string, tools []llms.Tool) (string, error) {
	t, err := template.New("system_prompt").Funcs(sprig.FuncMap()).Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse system prompt template")
	}

	data := promptData{}
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		data.Tools = append(data.Tools, promptTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
		})
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to render system prompt template")
	}
	return buf.String(), nil
}

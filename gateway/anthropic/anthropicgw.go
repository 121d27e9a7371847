// Package anthropic adapts the Anthropic Messages API to the gateway
// contract.
package anthropic

import (
	"context"
	"encoding/json"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/gateway"
	"github.com/effective-security/mcphost/pkg/llms"
)

// TokenEnvVarName is the environment variable holding the API key.
const TokenEnvVarName = "ANTHROPIC_API_KEY"

// DefaultMaxTokens is used when the caller does not configure a limit.
const DefaultMaxTokens = 4096

var ErrMissingToken = errors.New("anthropic: missing API key, set it in the ANTHROPIC_API_KEY environment variable")

// Options configure the adapter.
type Options struct {
	Token     string
	Model     string
	BaseURL   string
	MaxTokens int64
}

// Option mutates Options.
type Option func(*Options)

// WithToken sets the API key.
func WithToken(token string) Option {
	return func(o *Options) {
		o.Token = token
	}
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithBaseURL overrides the API base address.
func WithBaseURL(baseURL string) Option {
	return func(o *Options) {
		o.BaseURL = baseURL
	}
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(maxTokens int64) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

// Gateway is the Anthropic-backed model gateway.
type Gateway struct {
	client  anthropicsdk.Client
	options *Options
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates an Anthropic gateway. The API key falls back to the
// ANTHROPIC_API_KEY environment variable.
func New(opts ...Option) (*Gateway, error) {
	options := &Options{
		Token:     os.Getenv(TokenEnvVarName),
		MaxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.Token == "" {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
	}
	if options.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(options.BaseURL))
	}

	return &Gateway{
		client:  anthropicsdk.NewClient(sdkOpts...),
		options: options,
	}, nil
}

// GetName implements the Gateway interface.
func (g *Gateway) GetName() string {
	return g.options.Model
}

// GetProviderType implements the Gateway interface.
func (g *Gateway) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// Complete implements the Gateway interface.
func (g *Gateway) Complete(ctx context.Context, messages []llms.Message, tools []llms.Tool) (*gateway.Completion, error) {
	sdkMessages, systemPrompt, err := processMessages(messages)
	if err != nil {
		return nil, err
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(g.options.Model),
		Messages:  sdkMessages,
		MaxTokens: g.options.MaxTokens,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		}
	}
	params.Tools, err = toTools(tools)
	if err != nil {
		return nil, err
	}

	result, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	completion := &gateway.Completion{
		StopReason: string(result.StopReason),
	}
	var calls []llms.ToolCall
	for _, contentBlock := range result.Content {
		switch content := contentBlock.AsAny().(type) {
		case anthropicsdk.TextBlock:
			completion.Content += content.Text
		case anthropicsdk.ToolUseBlock:
			calls = append(calls, llms.ToolCall{
				ID:   content.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      content.Name,
					Arguments: string(content.Input),
				},
			})
		default:
			return nil, errors.WithMessagef(gateway.ErrMalformedResponse, "anthropic: unsupported content block %T", content)
		}
	}
	completion.ToolCalls, err = gateway.NormalizeToolCalls(calls)
	if err != nil {
		return nil, err
	}

	if completion.Content == "" && len(completion.ToolCalls) == 0 {
		return nil, errors.WithMessage(gateway.ErrEmptyResponse, "anthropic: empty completion")
	}
	return completion, nil
}

func toTools(tools []llms.Tool) ([]anthropicsdk.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	sdkTools := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		schema, ok := tool.Function.Parameters.(map[string]any)
		if !ok {
			return nil, errors.Newf("anthropic: tool %s has unsupported parameters type", tool.Function.Name)
		}

		inputSchema := anthropicsdk.ToolInputSchemaParam{
			Type: "object",
		}
		if props, ok := schema["properties"].(map[string]any); ok {
			inputSchema.Properties = props
		}
		if required, ok := schema["required"].([]any); ok {
			for _, r := range required {
				if name, ok := r.(string); ok {
					inputSchema.Required = append(inputSchema.Required, name)
				}
			}
		}

		sdkTools = append(sdkTools, anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Function.Name,
				Description: anthropicsdk.String(tool.Function.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return sdkTools, nil
}

// processMessages splits the conversation into the system prompt and the
// turn sequence in Anthropic wire format. Tool results become user messages
// carrying tool_result blocks.
func processMessages(messages []llms.Message) ([]anthropicsdk.MessageParam, string, error) {
	chatMessages := make([]anthropicsdk.MessageParam, 0, len(messages))
	systemPrompt := ""
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		switch msg.Role {
		case llms.RoleSystem:
			if systemPrompt != "" {
				systemPrompt += "\n" + msg.GetContent()
			} else {
				systemPrompt = msg.GetContent()
			}
		case llms.RoleHuman:
			chatMessages = append(chatMessages, anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(msg.GetContent()),
			))
		case llms.RoleAI:
			chatMessage, err := handleAIMessage(msg)
			if err != nil {
				return nil, "", err
			}
			chatMessages = append(chatMessages, chatMessage)
		case llms.RoleTool:
			chatMessage, err := handleToolMessage(msg)
			if err != nil {
				return nil, "", err
			}
			chatMessages = append(chatMessages, chatMessage)
		default:
			return nil, "", errors.Newf("anthropic: role %v not supported", msg.Role)
		}
	}
	return chatMessages, systemPrompt, nil
}

func handleAIMessage(msg llms.Message) (anthropicsdk.MessageParam, error) {
	var contents []anthropicsdk.ContentBlockParamUnion
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			contents = append(contents, anthropicsdk.NewTextBlock(p.Text))
		case llms.ToolCall:
			var inputJSON json.RawMessage
			if err := json.Unmarshal([]byte(p.FunctionCall.Arguments), &inputJSON); err != nil {
				return anthropicsdk.MessageParam{}, errors.Wrap(err, "anthropic: failed to unmarshal tool call arguments")
			}
			contents = append(contents, anthropicsdk.NewToolUseBlock(
				p.ID,
				inputJSON,
				p.FunctionCall.Name,
			))
		default:
			return anthropicsdk.MessageParam{}, errors.Newf("anthropic: unsupported assistant part %T", part)
		}
	}
	if len(contents) == 0 {
		return anthropicsdk.MessageParam{}, errors.New("anthropic: no valid content in assistant message")
	}
	return anthropicsdk.NewAssistantMessage(contents...), nil
}

func handleToolMessage(msg llms.Message) (anthropicsdk.MessageParam, error) {
	var contents []anthropicsdk.ContentBlockParamUnion
	for _, part := range msg.Parts {
		tr, ok := part.(llms.ToolCallResponse)
		if !ok {
			return anthropicsdk.MessageParam{}, errors.Newf("anthropic: unsupported tool message part %T", part)
		}
		contents = append(contents, anthropicsdk.NewToolResultBlock(
			tr.ToolCallID,
			tr.Content,
			tr.IsError,
		))
	}
	if len(contents) == 0 {
		return anthropicsdk.MessageParam{}, errors.New("anthropic: no valid content in tool message")
	}
	return anthropicsdk.NewUserMessage(contents...), nil
}

func classifyError(err error) error {
	var apierr *anthropicsdk.Error
	if errors.As(err, &apierr) {
		// auth and request construction failures are not retryable
		if apierr.StatusCode == 401 || apierr.StatusCode == 403 || apierr.StatusCode == 400 {
			return errors.WithMessage(err, "anthropic: request rejected")
		}
		return errors.Mark(err, gateway.ErrTransport)
	}
	return errors.Mark(err, gateway.ErrTransport)
}

// Package openai adapts the OpenAI Chat Completions API to the gateway
// contract.
package openai

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/gateway"
	"github.com/effective-security/mcphost/pkg/llms"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// TokenEnvVarName is the environment variable holding the API key.
const TokenEnvVarName = "OPENAI_API_KEY"

var ErrMissingToken = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")

// Options configure the adapter.
type Options struct {
	Token   string
	Model   string
	BaseURL string
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

// Gateway is the OpenAI-backed model gateway.
type Gateway struct {
	client  openaisdk.Client
	options *Options
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates an OpenAI gateway. The API key falls back to the
// OPENAI_API_KEY environment variable.
func New(opts ...Option) (*Gateway, error) {
	options := &Options{
		Token: os.Getenv(TokenEnvVarName),
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.Token == "" {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
	}
	if options.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(options.BaseURL))
	}

	return &Gateway{
		client:  openaisdk.NewClient(sdkOpts...),
		options: options,
	}, nil
}

// GetName implements the Gateway interface.
func (g *Gateway) GetName() string {
	return g.options.Model
}

// GetProviderType implements the Gateway interface.
func (g *Gateway) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// Complete implements the Gateway interface.
func (g *Gateway) Complete(ctx context.Context, messages []llms.Message, tools []llms.Tool) (*gateway.Completion, error) {
	chatMsgs, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.options.Model),
		Messages: chatMsgs,
	}
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		fnParams, ok := t.Function.Parameters.(map[string]any)
		if !ok {
			return nil, errors.Newf("openai: tool %s has unsupported parameters type", t.Function.Name)
		}
		params.Tools = append(params.Tools, openaisdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openaisdk.String(t.Function.Description),
			Parameters:  shared.FunctionParameters(fnParams),
		}))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.WithMessage(gateway.ErrEmptyResponse, "openai: no choices")
	}

	choice := resp.Choices[0]
	completion := &gateway.Completion{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}

	var calls []llms.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, llms.ToolCall{
			ID:   tc.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	completion.ToolCalls, err = gateway.NormalizeToolCalls(calls)
	if err != nil {
		return nil, err
	}

	if completion.Content == "" && len(completion.ToolCalls) == 0 {
		return nil, errors.WithMessage(gateway.ErrEmptyResponse, "openai: empty completion")
	}
	return completion, nil
}

func convertMessages(messages []llms.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llms.RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.GetContent()))
		case llms.RoleHuman:
			out = append(out, openaisdk.UserMessage(m.GetContent()))
		case llms.RoleAI:
			msg, err := convertAssistantMessage(m)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		case llms.RoleTool:
			if len(m.Parts) != 1 {
				return nil, errors.Newf("openai: expected exactly one part for role %v, got %v", m.Role, len(m.Parts))
			}
			tr, ok := m.Parts[0].(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Newf("openai: expected ToolCallResponse part for role %v, got %T", m.Role, m.Parts[0])
			}
			out = append(out, openaisdk.ToolMessage(tr.Content, tr.ToolCallID))
		default:
			return nil, errors.Newf("openai: role %v not supported", m.Role)
		}
	}
	return out, nil
}

func convertAssistantMessage(m llms.Message) (openaisdk.ChatCompletionMessageParamUnion, error) {
	var text string
	var toolCalls []openaisdk.ChatCompletionMessageToolCallUnionParam
	for _, p := range m.Parts {
		switch typ := p.(type) {
		case llms.TextContent:
			text += typ.Text
		case llms.ToolCall:
			toolCalls = append(toolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
					ID: typ.ID,
					Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      typ.FunctionCall.Name,
						Arguments: typ.FunctionCall.Arguments,
					},
				},
			})
		default:
			return openaisdk.ChatCompletionMessageParamUnion{}, errors.Newf("openai: unsupported assistant part %T", p)
		}
	}

	if len(toolCalls) == 0 {
		return openaisdk.AssistantMessage(text), nil
	}

	assistant := openaisdk.ChatCompletionAssistantMessageParam{
		ToolCalls: toolCalls,
	}
	if text != "" {
		assistant.Content.OfString = openaisdk.String(text)
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant}, nil
}

func classifyError(err error) error {
	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		// auth and request construction failures are not retryable
		if apierr.StatusCode == 401 || apierr.StatusCode == 403 || apierr.StatusCode == 400 {
			return errors.WithMessage(err, "openai: request rejected")
		}
		return errors.Mark(err, gateway.ErrTransport)
	}
	return errors.Mark(err, gateway.ErrTransport)
}

package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sashabaranov/go-openai"

	"github.com/bookshelf-agent/server/internal/agent/model"
)

// OpenAIConfig configures any OpenAI-compatible chat completions endpoint (DeepSeek by default).
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// OpenAIChatModel adapts go-openai to Eino's tool calling chat model.
type OpenAIChatModel struct {
	client *openai.Client
	config OpenAIConfig
	tools  []openai.Tool
}

func NewOpenAIChatModel(config OpenAIConfig) *OpenAIChatModel {
	if config.BaseURL == "" {
		config.BaseURL = model.DefaultOpenAIBaseURL
	}
	clientCfg := openai.DefaultConfig(config.APIKey)
	clientCfg.BaseURL = config.BaseURL
	return &OpenAIChatModel{
		client: openai.NewClientWithConfig(clientCfg),
		config: config,
	}
}

// WithTools returns a copy of the model bound to tools.
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	converted, err := toOpenAITools(tools)
	if err != nil {
		return nil, err
	}
	cp := *m
	cp.tools = converted
	return &cp, nil
}

func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	req, err := m.buildRequest(input, opts...)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	out := fromOpenAIMessage(choice.Message)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(choice.FinishReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	return out, nil
}

// Stream performs a blocking completion and replays it as a single-chunk stream.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *OpenAIChatModel) GetType() string { return "OpenAICompatible" }

func (m *OpenAIChatModel) buildRequest(input []*schema.Message, opts ...einomodel.Option) (openai.ChatCompletionRequest, error) {
	temperature := m.config.Temperature
	maxTokens := m.config.MaxTokens
	modelName := m.config.Model
	options := einomodel.GetCommonOptions(&einomodel.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Model:       &modelName,
	}, opts...)

	req := openai.ChatCompletionRequest{
		Model:    *options.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(input)),
		Tools:    m.tools,
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	if options.TopP != nil {
		req.TopP = *options.TopP
	}
	if len(options.Stop) > 0 {
		req.Stop = options.Stop
	}
	if len(options.Tools) > 0 {
		tools, err := toOpenAITools(options.Tools)
		if err != nil {
			return req, err
		}
		req.Tools = tools
	}

	for _, msg := range input {
		if msg == nil {
			continue
		}
		req.Messages = append(req.Messages, toOpenAIMessage(msg))
	}
	return req, nil
}

func toOpenAITools(infos []*schema.ToolInfo) ([]openai.Tool, error) {
	tools := make([]openai.Tool, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		params := json.RawMessage(`{"type":"object","properties":{}}`)
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("tool %s schema: %w", info.Name, err)
			}
			if js != nil {
				b, err := json.Marshal(js)
				if err != nil {
					return nil, fmt.Errorf("tool %s schema: %w", info.Name, err)
				}
				params = b
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        info.Name,
				Description: info.Desc,
				Parameters:  params,
			},
		})
	}
	return tools, nil
}

func toOpenAIMessage(msg *schema.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) *schema.Message {
	out := &schema.Message{
		Role:    schema.Assistant,
		Content: msg.Content,
	}
	for i, tc := range msg.ToolCalls {
		idx := i
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			Index: &idx,
			ID:    tc.ID,
			Type:  string(tc.Type),
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

var _ einomodel.ToolCallingChatModel = (*OpenAIChatModel)(nil)

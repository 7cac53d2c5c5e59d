// Package graphtest provides a scripted chat model for exercising agent graphs without a provider.
package graphtest

import (
	"context"
	"fmt"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Step produces one model reply from the messages the model was called with.
type Step func(input []*schema.Message) (*schema.Message, error)

// ScriptedModel replays Steps in order; once the script runs out the last step repeats.
type ScriptedModel struct {
	mu    sync.Mutex
	steps []Step
	calls [][]*schema.Message
	tools []*schema.ToolInfo
}

func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Reply answers with plain text.
func Reply(text string) Step {
	return func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}
}

// CallTool answers with a single tool call. An empty id is left for the graph to fill.
func CallTool(id, name, arguments string) Step {
	return func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: arguments},
		}}), nil
	}
}

// Fail makes the model call return err.
func Fail(err error) Step {
	return func([]*schema.Message) (*schema.Message, error) { return nil, err }
}

func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("scripted model has no steps")
	}
	i := len(m.calls)
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	m.calls = append(m.calls, append([]*schema.Message(nil), input...))
	step := m.steps[i]
	m.mu.Unlock()
	return step(input)
}

func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

// WithTools records the bound tools and returns the same model so calls stay observable.
func (m *ScriptedModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = tools
	return m, nil
}

// Calls returns the input of every Generate call so far.
func (m *ScriptedModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.calls...)
}

// Tools returns the tool infos bound last.
func (m *ScriptedModel) Tools() []*schema.ToolInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools
}

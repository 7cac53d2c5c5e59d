package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates all observer handlers (prompt, tool, model) into one callbacks.Handler.
func NewAllCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Tool(newToolHandler()).
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
}

// WithPromptCallbacks prepares ctx so prompt templates rendered outside a graph
// still report to the prompt observer.
func WithPromptCallbacks(ctx context.Context, name string) context.Context {
	return einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      name,
		Component: components.ComponentOfPrompt,
	}, NewPromptCallbacks())
}

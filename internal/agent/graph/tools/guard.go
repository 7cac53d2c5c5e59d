package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	errx "github.com/bookshelf-agent/server/internal/core/error"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

// Status is embedded in every tool result.
type Status struct {
	Success bool `json:"success"`
}

var succeeded = Status{Success: true}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FailureResult renders err the way every tool reports a failure.
func FailureResult(err error) string {
	b, mErr := json.Marshal(failure{Error: errx.Public(err)})
	if mErr != nil {
		return `{"success":false,"error":"tool failed"}`
	}
	return string(b)
}

// UnknownToolResult is returned for calls to tools that are not registered.
func UnknownToolResult(name string) string {
	b, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   "unknown_tool",
		"name":    name,
	})
	return string(b)
}

// guardedTool turns every error and panic of the wrapped tool into a failure result,
// so a broken tool call never aborts the turn.
type guardedTool struct {
	inner tool.InvokableTool
}

// Guard wraps t. The model always receives a JSON result.
func Guard(t tool.InvokableTool) tool.InvokableTool {
	if g, isGuarded := t.(*guardedTool); isGuarded {
		return g
	}
	return &guardedTool{inner: t}
}

func (g *guardedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return g.inner.Info(ctx)
}

func (g *guardedTool) InvokableRun(ctx context.Context, arguments string, opts ...tool.Option) (out string, err error) {
	name := g.name(ctx)
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("tool_name", name).Interface("panic", r).Msg("Tool panicked")
			out, err = FailureResult(fmt.Errorf("tool %s failed unexpectedly", name)), nil
		}
	}()

	out, err = g.inner.InvokableRun(ctx, arguments, opts...)
	if err != nil {
		logx.Warn().Err(err).Str("tool_name", name).Str("arguments", arguments).Msg("Tool call failed")
		return FailureResult(err), nil
	}
	return out, nil
}

func (g *guardedTool) name(ctx context.Context) string {
	info, err := g.inner.Info(ctx)
	if err != nil || info == nil {
		return "unknown"
	}
	return info.Name
}

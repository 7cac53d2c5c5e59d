package graph

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/bookshelf-agent/server/internal/agent/graph/conversations"
	"github.com/bookshelf-agent/server/internal/agent/graph/graphtest"
	"github.com/bookshelf-agent/server/internal/agent/graph/nodes"
	"github.com/bookshelf-agent/server/internal/agent/graph/prompts"
	"github.com/bookshelf-agent/server/internal/agent/graph/tools"
	"github.com/bookshelf-agent/server/internal/agent/model"
	"github.com/bookshelf-agent/server/internal/agent/repo"
	"github.com/bookshelf-agent/server/internal/catalog"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

func TestMain(m *testing.M) {
	logx.Silence()
	os.Exit(m.Run())
}

func bookTools(t *testing.T) []tool.BaseTool {
	t.Helper()
	store, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	tracker := conversations.NewTracker(repo.NewMemorySessionRepository(50), store, model.SessionConfig{})
	ts, err := tools.GetBookTools(tools.BookDeps{Store: store, Tracker: tracker})
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func newRunner(t *testing.T, cm *graphtest.ScriptedModel, ts []tool.BaseTool, maxIterations int) *Runner {
	t.Helper()
	runner, err := BuildGraph(context.Background(), &Config{
		Kind:             prompts.KindBook,
		ChatModel:        cm,
		ModelName:        "deepseek-chat",
		Tools:            ts,
		MaxIterations:    maxIterations,
		IterationCeiling: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	return runner
}

func toolMessages(msgs []*schema.Message) []*schema.Message {
	var out []*schema.Message
	for _, m := range msgs {
		if m.Role == schema.Tool {
			out = append(out, m)
		}
	}
	return out
}

func TestRunWithoutToolCalls(t *testing.T) {
	cm := graphtest.NewScriptedModel(graphtest.Reply("Try 三体."))
	runner := newRunner(t, cm, bookTools(t), 0)

	result, err := runner.Run(context.Background(), model.TurnRequest{UserID: "u1", Query: "recommend sci-fi"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response != "Try 三体." || !result.Finished || result.Iterations != 0 || result.Error != "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(cm.Tools()) != 9 {
		t.Fatalf("expected 9 bound tools, got %d", len(cm.Tools()))
	}

	calls := cm.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one model call, got %d", len(calls))
	}
	first := calls[0]
	if first[0].Role != schema.System || !strings.Contains(first[0].Content, tools.ToolSearchBooks) {
		t.Fatalf("system prompt missing or without tools: %+v", first[0])
	}
	if last := first[len(first)-1]; last.Role != schema.User || last.Content != "recommend sci-fi" {
		t.Fatalf("user message not last: %+v", last)
	}
}

func TestRunExecutesToolsAndCollectsRecommendations(t *testing.T) {
	cm := graphtest.NewScriptedModel(
		graphtest.CallTool("", tools.ToolRecommendByKnowledgeGraph, `{"book_info":"{\"title\":\"三体\"}"}`),
		graphtest.Reply("Here are some picks."),
	)
	runner := newRunner(t, cm, bookTools(t), 3)

	result, err := runner.Run(context.Background(), model.TurnRequest{UserID: "u1", Query: "books like 三体"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Iterations != 1 || result.Response != "Here are some picks." {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Recommendations) == 0 || len(result.Recommendations) != len(result.RecommendationReasons) {
		t.Fatalf("recommendations %v reasons %v", result.Recommendations, result.RecommendationReasons)
	}
	for _, b := range result.Recommendations {
		if b.Title == "三体" {
			t.Fatal("source book recommended")
		}
	}

	toolMsgs := toolMessages(result.Messages)
	if len(toolMsgs) != 1 {
		t.Fatalf("expected one tool message, got %d", len(toolMsgs))
	}
	if toolMsgs[0].ToolCallID != "call_1" {
		t.Fatalf("missing tool call id was not synthesised: %q", toolMsgs[0].ToolCallID)
	}

	// the second model call sees the tool result
	calls := cm.Calls()
	if len(calls) != 2 || calls[1][len(calls[1])-1].Role != schema.Tool {
		t.Fatalf("tool result not passed back to the model")
	}
}

type countingTool struct{ runs atomic.Int32 }

func (c *countingTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "count", Desc: "counts calls"}, nil
}

func (c *countingTool) InvokableRun(context.Context, string, ...tool.Option) (string, error) {
	c.runs.Add(1)
	return `{"success":true}`, nil
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	for _, maxIterations := range []int{1, 2, 4} {
		counter := &countingTool{}
		cm := graphtest.NewScriptedModel(graphtest.CallTool("c", "count", `{}`))
		runner := newRunner(t, cm, []tool.BaseTool{counter}, maxIterations)

		result, err := runner.Run(context.Background(), model.TurnRequest{Query: "loop forever"})
		if err != nil {
			t.Fatal(err)
		}
		if result.Iterations != maxIterations {
			t.Fatalf("max %d: iterations = %d", maxIterations, result.Iterations)
		}
		if got := int(counter.runs.Load()); got != maxIterations {
			t.Fatalf("max %d: tool ran %d times", maxIterations, got)
		}
		if !result.Finished || result.Response != nodes.FallbackResponse {
			t.Fatalf("max %d: unexpected result %+v", maxIterations, result)
		}
	}
}

func TestRunCeilingIgnoresEarlierAssistantText(t *testing.T) {
	counter := &countingTool{}
	narrated := func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("Let me look that up.", []schema.ToolCall{{
			ID:       "c0",
			Function: schema.FunctionCall{Name: "count", Arguments: `{}`},
		}}), nil
	}
	cm := graphtest.NewScriptedModel(narrated, graphtest.CallTool("c", "count", `{}`))
	runner := newRunner(t, cm, []tool.BaseTool{counter}, 2)

	result, err := runner.Run(context.Background(), model.TurnRequest{Query: "keep going"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Iterations != 2 || result.Response != nodes.FallbackResponse {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunRequestOverridesMaxIterations(t *testing.T) {
	counter := &countingTool{}
	cm := graphtest.NewScriptedModel(graphtest.CallTool("c", "count", `{}`))
	runner := newRunner(t, cm, []tool.BaseTool{counter}, 5)

	result, err := runner.Run(context.Background(), model.TurnRequest{Query: "go", MaxIterations: 50})
	if err != nil {
		t.Fatal(err)
	}
	// clamped to the ceiling of 10
	if result.Iterations != 10 {
		t.Fatalf("iterations = %d", result.Iterations)
	}
}

func TestRunModelFailure(t *testing.T) {
	cm := graphtest.NewScriptedModel(graphtest.Fail(errors.New("provider unavailable")))
	runner := newRunner(t, cm, bookTools(t), 0)

	result, err := runner.Run(context.Background(), model.TurnRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("model failure must not surface as an error: %v", err)
	}
	if !result.Finished || !strings.Contains(result.Error, "provider unavailable") || result.Response != nodes.FallbackResponse {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunMalformedArgumentsContinue(t *testing.T) {
	cm := graphtest.NewScriptedModel(
		graphtest.CallTool("a", tools.ToolGetBookDetails, `{"title": 42`),
		graphtest.CallTool("b", tools.ToolGetBookDetails, `{"title":"不存在的书"}`),
		graphtest.CallTool("c", "no_such_tool", `{}`),
		graphtest.Reply("Sorry, I could not find it."),
	)
	runner := newRunner(t, cm, bookTools(t), 5)

	result, err := runner.Run(context.Background(), model.TurnRequest{Query: "details please"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Error != "" || result.Iterations != 3 || result.Response != "Sorry, I could not find it." {
		t.Fatalf("unexpected result %+v", result)
	}

	toolMsgs := toolMessages(result.Messages)
	if len(toolMsgs) != 3 {
		t.Fatalf("expected 3 tool messages, got %d", len(toolMsgs))
	}
	for i, m := range toolMsgs {
		var payload map[string]any
		if err := json.Unmarshal([]byte(m.Content), &payload); err != nil {
			t.Fatalf("tool message %d is not JSON: %q", i, m.Content)
		}
		if payload["success"] != false {
			t.Fatalf("tool message %d should be a failure: %v", i, payload)
		}
	}
	if !strings.Contains(toolMsgs[1].Content, "不存在的书") {
		t.Fatalf("error does not name the title: %s", toolMsgs[1].Content)
	}
	if !strings.Contains(toolMsgs[2].Content, "unknown_tool") {
		t.Fatalf("unknown tool not reported: %s", toolMsgs[2].Content)
	}
}

func TestRunPreferenceHint(t *testing.T) {
	cm := graphtest.NewScriptedModel(graphtest.Reply("ok"))
	runner := newRunner(t, cm, bookTools(t), 0)

	_, err := runner.Run(context.Background(), model.TurnRequest{Query: "hi", PreferenceHint: "User likes 刘慈欣"})
	if err != nil {
		t.Fatal(err)
	}
	first := cm.Calls()[0]
	if len(first) != 3 || first[1].Role != schema.System || first[1].Content != "User likes 刘慈欣" {
		t.Fatalf("preference hint not placed after the system prompt: %+v", first)
	}
}

func TestRunRejectsEmptyQuery(t *testing.T) {
	cm := graphtest.NewScriptedModel(graphtest.Reply("unused"))
	runner := newRunner(t, cm, bookTools(t), 0)

	if _, err := runner.Run(context.Background(), model.TurnRequest{Query: "   "}); err == nil {
		t.Fatal("expected an error for an empty query")
	}
	if len(cm.Calls()) != 0 {
		t.Fatal("model called for an empty query")
	}
}

func TestBuildGraphValidates(t *testing.T) {
	ctx := context.Background()
	if _, err := BuildGraph(ctx, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := BuildGraph(ctx, &Config{Kind: prompts.KindBook, Tools: bookTools(t)}); err == nil {
		t.Fatal("expected error for missing chat model")
	}
	if _, err := BuildGraph(ctx, &Config{Kind: prompts.KindBook, ChatModel: graphtest.NewScriptedModel()}); err == nil {
		t.Fatal("expected error for missing tools")
	}
}

package nodes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/bookshelf-agent/server/internal/agent/model"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

func TestMain(m *testing.M) {
	logx.Silence()
	os.Exit(m.Run())
}

func TestNormalizeMaxIterations(t *testing.T) {
	tests := []struct {
		n, ceiling, want int
	}{
		{0, 20, model.DefaultMaxIterations},
		{-3, 20, model.DefaultMaxIterations},
		{7, 20, 7},
		{50, 20, 20},
		{50, 0, model.DefaultIterationCeiling},
	}
	for _, tt := range tests {
		if got := NormalizeMaxIterations(tt.n, tt.ceiling); got != tt.want {
			t.Errorf("NormalizeMaxIterations(%d, %d) = %d, want %d", tt.n, tt.ceiling, got, tt.want)
		}
	}
}

func TestLastAssistantContent(t *testing.T) {
	history := []*schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantMessage("first answer", nil),
		schema.ToolMessage(`{"success":true}`, "call_1"),
		schema.AssistantMessage("  ", nil),
		nil,
	}
	if got := LastAssistantContent(history); got != "" {
		t.Fatalf("newest assistant message is blank, got %q", got)
	}
	if got := LastAssistantContent(history[:3]); got != "first answer" {
		t.Fatalf("got %q", got)
	}

	// at the iteration ceiling the newest message only requests tools
	pending := append(history[:3:3], &schema.Message{
		Role:      schema.Assistant,
		ToolCalls: []schema.ToolCall{{ID: "call_2", Function: schema.FunctionCall{Name: "search_books", Arguments: "{}"}}},
	})
	if got := LastAssistantContent(pending); got != "" {
		t.Fatalf("expected empty for a tool-call-only message, got %q", got)
	}
	if got := LastAssistantContent([]*schema.Message{schema.UserMessage("hi")}); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestCollectRecommendations(t *testing.T) {
	state := &model.TurnState{}
	msgs := []*schema.Message{
		schema.ToolMessage(`{"success":true,"recommendations":[{"title":"A"},{"title":"B"}],"reasons":["stage one","stage two","stage three"],"count":2}`, "1"),
		schema.ToolMessage(`{"success":true,"recommendations":[{"title":"B"},{"title":"C"}],"reason":"shared","count":2}`, "2"),
		schema.ToolMessage(`{"success":true,"similar_books":[{"book":{"title":"D"},"similarity_reason":"same author","similarity_score":0.9}]}`, "3"),
		schema.ToolMessage(`{"success":false,"recommendations":[{"title":"E"}]}`, "4"),
		schema.ToolMessage(`not json`, "5"),
	}
	collectRecommendations(state, msgs)

	wantTitles := []string{"A", "B", "C", "D"}
	wantReasons := []string{"stage one; stage two; stage three", "stage one; stage two; stage three", "shared", "same author"}
	if len(state.Recommendations) != len(wantTitles) {
		t.Fatalf("got %d recommendations, want %d", len(state.Recommendations), len(wantTitles))
	}
	for i := range wantTitles {
		if state.Recommendations[i].Title != wantTitles[i] || state.RecommendationReasons[i] != wantReasons[i] {
			t.Fatalf("entry %d: got %s/%s", i, state.Recommendations[i].Title, state.RecommendationReasons[i])
		}
	}
}

func TestChatModelPostHandler(t *testing.T) {
	state := &model.TurnState{}
	post := NewChatModelPostHandler("deepseek-chat")
	out := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{Function: schema.FunctionCall{Name: "search_books", Arguments: "{}"}},
			{ID: "given", Function: schema.FunctionCall{Name: "get_book_details", Arguments: "{}"}},
		},
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 0}},
	}
	got, err := post(context.Background(), out, state)
	if err != nil {
		t.Fatal(err)
	}
	if got.ToolCalls[0].ID != "call_1" || got.ToolCalls[1].ID != "given" {
		t.Fatalf("unexpected ids %q %q", got.ToolCalls[0].ID, got.ToolCalls[1].ID)
	}
	if len(state.History) != 1 || state.History[0] != out {
		t.Fatal("response not appended to history")
	}
	if state.TotalCostUSD <= 0 {
		t.Fatalf("expected cost to accumulate, got %v", state.TotalCostUSD)
	}

	if _, err := post(context.Background(), nil, state); err == nil {
		t.Fatal("expected error for a nil model output")
	}
}

func TestChatModelPreHandler(t *testing.T) {
	state := &model.TurnState{PreferenceHint: "likes sci-fi"}
	state.History = []*schema.Message{
		schema.UserMessage("q"),
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "c1"}, {ID: "c2"}}},
	}
	pre := NewChatModelPreHandler("system")
	in := []*schema.Message{
		{Role: schema.Tool, Content: "r1"},
		{Role: schema.Tool, Content: "r2", ToolCallID: "c2"},
	}
	msgs, err := pre(context.Background(), in, state)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 6 || msgs[0].Content != "system" || msgs[1].Content != "likes sci-fi" {
		t.Fatalf("unexpected context %v", msgs)
	}
	if in[0].ToolCallID != "c1" {
		t.Fatalf("missing tool call id not filled: %q", in[0].ToolCallID)
	}
	if len(state.History) != 4 {
		t.Fatalf("tool results not recorded, history has %d", len(state.History))
	}
}

func TestInputPreHandlerResetsState(t *testing.T) {
	state := &model.TurnState{Iterations: 3, Finished: true, Error: "old", Recommendations: []model.Book{{Title: "x"}}}
	pre := NewInputPreHandler(5, 8)
	if _, err := pre(context.Background(), model.TurnRequest{UserID: "u", Query: "q", MaxIterations: 100}, state); err != nil {
		t.Fatal(err)
	}
	if state.Iterations != 0 || state.Finished || state.Error != "" || state.Recommendations != nil {
		t.Fatalf("state not reset: %+v", state)
	}
	if state.MaxIterations != 8 || state.Phase != model.PhaseAskModel || state.UserID != "u" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestOpenAIChatModel(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		req = map[string]any{}
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"x","object":"chat.completion","model":"deepseek-chat",
			"choices":[{"index":0,"finish_reason":"tool_calls","message":{
				"role":"assistant","content":"",
				"tool_calls":[{"id":"call_a","type":"function","function":{"name":"search_books","arguments":"{\"query\":\"科幻\"}"}}]}}],
			"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}}`))
	}))
	defer srv.Close()

	cm := NewOpenAIChatModel(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "deepseek-chat", MaxTokens: 100, Temperature: 0.2})
	bound, err := cm.WithTools([]*schema.ToolInfo{{
		Name: "search_books",
		Desc: "search",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Required: true},
		}),
	}})
	if err != nil {
		t.Fatal(err)
	}

	out, err := bound.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("推荐科幻"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].ID != "call_a" || out.ToolCalls[0].Function.Name != "search_books" {
		t.Fatalf("unexpected tool calls %+v", out.ToolCalls)
	}
	if out.ResponseMeta.Usage.TotalTokens != 17 || out.ResponseMeta.FinishReason != "tool_calls" {
		t.Fatalf("unexpected meta %+v", out.ResponseMeta)
	}

	tools, _ := req["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools not sent: %v", req["tools"])
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 2 || req["model"] != "deepseek-chat" {
		t.Fatalf("unexpected request %v", req)
	}

	if _, err := cm.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")}); err != nil {
		t.Fatal(err)
	}
	if _, sent := req["tools"]; sent {
		t.Fatal("unbound model should not send tools")
	}
}

func TestOpenAIChatModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	cm := NewOpenAIChatModel(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if _, err := cm.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")}); err == nil {
		t.Fatal("expected error")
	}
}

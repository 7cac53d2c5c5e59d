package nodes

import (
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/bookshelf-agent/server/internal/agent/model"
)

// FallbackResponse is returned when a turn produced no usable assistant text.
const FallbackResponse = "Sorry, I could not produce an answer this time. Please try again."

// ===== Small helpers to keep handlers simple/readable =====

// NormalizeMaxIterations applies the default and bounds n by ceiling.
func NormalizeMaxIterations(n, ceiling int) int {
	if ceiling <= 0 {
		ceiling = model.DefaultIterationCeiling
	}
	if n <= 0 {
		n = model.DefaultMaxIterations
	}
	if n > ceiling {
		return ceiling
	}
	return n
}

// LastAssistantContent returns the text of the newest assistant message. It is empty
// when that message carries only tool calls; older assistant text is not consulted.
func LastAssistantContent(history []*schema.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if m := history[i]; m != nil && m.Role == schema.Assistant {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

// toolPayload is the subset of a tool result that carries recommendations.
type toolPayload struct {
	Success         bool                `json:"success"`
	Recommendations []model.Book        `json:"recommendations"`
	Reason          string              `json:"reason"`
	Reasons         []string            `json:"reasons"`
	SimilarBooks    []model.SimilarBook `json:"similar_books"`
}

// collectRecommendations appends the books recommended by successful tool results
// to the state, once per title, each with its reason.
func collectRecommendations(state *model.TurnState, msgs []*schema.Message) {
	seen := make(map[string]bool, len(state.Recommendations))
	for _, b := range state.Recommendations {
		seen[b.Title] = true
	}
	add := func(b model.Book, reason string) {
		if b.Title == "" || seen[b.Title] {
			return
		}
		seen[b.Title] = true
		state.Recommendations = append(state.Recommendations, b)
		state.RecommendationReasons = append(state.RecommendationReasons, reason)
	}

	for _, m := range msgs {
		if m == nil || m.Role != schema.Tool {
			continue
		}
		var p toolPayload
		if err := json.Unmarshal([]byte(m.Content), &p); err != nil || !p.Success {
			continue
		}
		// stage reasons are not per book; every book gets the whole summary
		reason := p.Reason
		if reason == "" {
			reason = strings.Join(p.Reasons, "; ")
		}
		for _, b := range p.Recommendations {
			add(b, reason)
		}
		for _, s := range p.SimilarBooks {
			add(s.Book, s.Reason)
		}
	}
}

// fillToolCallIDs gives tool results without a tool_call_id the id of the
// matching call of the newest assistant message in history, by position.
func fillToolCallIDs(in []*schema.Message, history []*schema.Message) {
	var calls []schema.ToolCall
	for i := len(history) - 1; i >= 0; i-- {
		if m := history[i]; m != nil && m.Role == schema.Assistant && len(m.ToolCalls) > 0 {
			calls = m.ToolCalls
			break
		}
	}
	pos := 0
	for _, m := range in {
		if m == nil || m.Role != schema.Tool {
			continue
		}
		if strings.TrimSpace(m.ToolCallID) == "" && pos < len(calls) {
			m.ToolCallID = calls[pos].ID
		}
		pos++
	}
}

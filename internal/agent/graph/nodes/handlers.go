package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/bookshelf-agent/server/internal/agent/model"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

// NewInputPreHandler resets the turn state from the request.
func NewInputPreHandler(defaultMaxIterations, ceiling int) func(context.Context, model.TurnRequest, *model.TurnState) (model.TurnRequest, error) {
	return func(ctx context.Context, in model.TurnRequest, s *model.TurnState) (model.TurnRequest, error) {
		maxIterations := in.MaxIterations
		if maxIterations <= 0 {
			maxIterations = defaultMaxIterations
		}
		s.UserID = in.UserID
		s.Phase = model.PhaseAskModel
		s.History = s.History[:0]
		s.Iterations = 0
		s.MaxIterations = NormalizeMaxIterations(maxIterations, ceiling)
		s.PreferenceHint = strings.TrimSpace(in.PreferenceHint)
		s.ToolCallIDSeq = 0
		s.Recommendations = nil
		s.RecommendationReasons = nil
		s.Finished = false
		s.Error = ""
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputNode turns the request into the opening user message.
func NewInputNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnRequest) ([]*schema.Message, error) {
		if strings.TrimSpace(in.Query) == "" {
			return nil, fmt.Errorf("query is empty")
		}
		return []*schema.Message{schema.UserMessage(in.Query)}, nil
	})
}

// NewChatModelPreHandler records incoming messages and assembles the model context:
// system prompt, optional preference hint, then the whole turn history.
func NewChatModelPreHandler(systemPrompt string) func(context.Context, []*schema.Message, *model.TurnState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.TurnState) ([]*schema.Message, error) {
		fillToolCallIDs(in, state.History)
		state.History = append(state.History, in...)
		state.Phase = model.PhaseAskModel

		msgs := make([]*schema.Message, 0, len(state.History)+2)
		msgs = append(msgs, schema.SystemMessage(systemPrompt))
		if state.PreferenceHint != "" {
			msgs = append(msgs, schema.SystemMessage(state.PreferenceHint))
		}
		msgs = append(msgs, state.History...)

		logx.Debug().
			Str("user_id", state.UserID).
			Int("iteration", state.Iterations).
			Int("messages", len(msgs)).
			Msg("AI thinking...")
		return msgs, nil
	}
}

// NewChatModelPostHandler accounts usage cost, fills missing tool call ids and
// appends the response to the history.
func NewChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.TurnState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.TurnState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("chat model returned no message")
		}

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			usage := out.ResponseMeta.Usage
			inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost"] = map[string]any{
				"currency":          "USD",
				"model":             modelName,
				"prompt_tokens":     usage.PromptTokens,
				"completion_tokens": usage.CompletionTokens,
				"total_tokens":      usage.TotalTokens,
				"input_cost":        inC,
				"output_cost":       outC,
				"total_cost":        totalC,
			}
			state.TotalCostUSD += totalC
			out.Extra["usage_cost_total_usd"] = state.TotalCostUSD

			logx.Debug().
				Str("user_id", state.UserID).
				Str("node", NodeChatModel).
				Str("model", modelName).
				Int("prompt_tokens", usage.PromptTokens).
				Int("completion_tokens", usage.CompletionTokens).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")
		}

		// Some providers omit tool call ids.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Msg("AI response ready")
		}
		return out, nil
	}
}

// NewToolsCondition routes the model output: tool calls go to the tools node until
// the iteration budget is spent; everything else ends the turn.
func NewToolsCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, out *schema.Message) (string, error) {
		next := compose.END
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.TurnState) error {
			switch {
			case out == nil || len(out.ToolCalls) == 0:
				logx.Debug().Msg("No tool calls - continuing to end")
			case state.Iterations >= state.MaxIterations:
				logx.Warn().
					Str("user_id", state.UserID).
					Int("iterations", state.Iterations).
					Int("pending_tool_calls", len(out.ToolCalls)).
					Msg("Iteration limit reached - ending turn without running tools")
			default:
				state.Phase = model.PhaseRunTools
				next = NodeTools
				return nil
			}
			state.Phase = model.PhaseDone
			state.Finished = true
			return nil
		})
		if err != nil {
			return "", err
		}
		return next, nil
	}
}

// NewToolsPostHandler counts the completed tool round and harvests recommendations.
func NewToolsPostHandler() func(context.Context, []*schema.Message, *model.TurnState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.TurnState) ([]*schema.Message, error) {
		state.Iterations++
		collectRecommendations(state, out)
		state.Phase = model.PhaseAskModel

		logx.Debug().
			Str("user_id", state.UserID).
			Int("iterations", state.Iterations).
			Int("tool_results", len(out)).
			Int("recommendations", len(state.Recommendations)).
			Msg("Tool round finished")
		return out, nil
	}
}

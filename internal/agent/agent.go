// Package agent exposes the assistants built on the tool-calling graph.
package agent

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/bookshelf-agent/server/internal/agent/graph"
	"github.com/bookshelf-agent/server/internal/agent/graph/conversations"
	"github.com/bookshelf-agent/server/internal/agent/graph/nodes"
	"github.com/bookshelf-agent/server/internal/agent/graph/observers"
	"github.com/bookshelf-agent/server/internal/agent/graph/prompts"
	"github.com/bookshelf-agent/server/internal/agent/graph/tools"
	"github.com/bookshelf-agent/server/internal/agent/model"
	"github.com/bookshelf-agent/server/internal/catalog"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

// LoopConfig sizes the control loop.
type LoopConfig struct {
	MaxIterations    int
	IterationCeiling int
}

// =========== Assistant ===========

type AssistantConfig struct {
	ChatModel einomodel.ToolCallingChatModel
	ModelName string
	Tools     tools.Config
	Loop      LoopConfig
}

// Assistant is the general purpose tool-using agent.
type Assistant struct {
	runner *graph.Runner
}

func NewAssistant(ctx context.Context, config AssistantConfig) (*Assistant, error) {
	runner, err := graph.BuildGraph(ctx, &graph.Config{
		Kind:             prompts.KindAssistant,
		ChatModel:        config.ChatModel,
		ModelName:        config.ModelName,
		Tools:            tools.GetGeneralTools(config.Tools),
		MaxIterations:    config.Loop.MaxIterations,
		IterationCeiling: config.Loop.IterationCeiling,
	})
	if err != nil {
		return nil, fmt.Errorf("build assistant graph: %w", err)
	}
	return &Assistant{runner: runner}, nil
}

// Run executes one turn; maxIterations <= 0 uses the configured default.
func (a *Assistant) Run(ctx context.Context, message string, maxIterations int) (*model.TurnResult, error) {
	return a.runner.Run(ctx, model.TurnRequest{Query: message, MaxIterations: maxIterations})
}

func (a *Assistant) Chat(ctx context.Context, message string) (string, error) {
	result, err := a.Run(ctx, message, 0)
	if err != nil {
		return "", err
	}
	return result.Response, nil
}

// =========== Book agent ===========

type BookAgentConfig struct {
	ChatModel einomodel.ToolCallingChatModel
	ModelName string
	Store     *catalog.Store
	Tracker   *conversations.Tracker
	Loop      LoopConfig
}

// BookAgent recommends books and remembers what each user talked about.
type BookAgent struct {
	runner  *graph.Runner
	tracker *conversations.Tracker
}

func NewBookAgent(ctx context.Context, config BookAgentConfig) (*BookAgent, error) {
	bookTools, err := tools.GetBookTools(tools.BookDeps{Store: config.Store, Tracker: config.Tracker})
	if err != nil {
		return nil, err
	}
	runner, err := graph.BuildGraph(ctx, &graph.Config{
		Kind:             prompts.KindBook,
		ChatModel:        config.ChatModel,
		ModelName:        config.ModelName,
		Tools:            bookTools,
		MaxIterations:    config.Loop.MaxIterations,
		IterationCeiling: config.Loop.IterationCeiling,
	})
	if err != nil {
		return nil, fmt.Errorf("build book agent graph: %w", err)
	}
	return &BookAgent{runner: runner, tracker: config.Tracker}, nil
}

// Run executes one turn without touching the session history.
func (b *BookAgent) Run(ctx context.Context, req model.TurnRequest) (*model.TurnResult, error) {
	req.UserID = conversations.NormalizeUserID(req.UserID)
	return b.runner.Run(ctx, req)
}

// Chat answers message for userID with their recent preferences in mind and records the exchange.
func (b *BookAgent) Chat(ctx context.Context, userID, message string) (string, error) {
	result, err := b.converse(ctx, userID, message)
	if err != nil {
		return "", err
	}
	return result.Response, nil
}

// RecommendBooks asks for books similar to one the user has viewed.
func (b *BookAgent) RecommendBooks(ctx context.Context, userID, title string) (*model.TurnResult, error) {
	return b.converse(ctx, userID, fmt.Sprintf("我浏览了图书《%s》，请为我推荐相似的图书", title))
}

// SearchAndRecommend searches the catalog and asks for related recommendations.
func (b *BookAgent) SearchAndRecommend(ctx context.Context, userID, query string) (*model.TurnResult, error) {
	return b.converse(ctx, userID, fmt.Sprintf("搜索图书：%s，然后为我推荐相关图书", query))
}

// converse builds the hint from history recorded so far, runs the turn, then records it.
func (b *BookAgent) converse(ctx context.Context, userID, message string) (*model.TurnResult, error) {
	userID = conversations.NormalizeUserID(userID)

	hint, _, err := b.tracker.BuildPreferenceHint(observers.WithPromptCallbacks(ctx, "preference_hint"), userID)
	if err != nil {
		// a missing hint only makes the answer less personal
		logx.Warn().Err(err).Str("user_id", userID).Msg("Failed to build preference hint")
		hint = ""
	}

	result, err := b.Run(ctx, model.TurnRequest{UserID: userID, Query: message, PreferenceHint: hint})
	if err != nil {
		return nil, err
	}

	if _, err := b.tracker.RecordUserMessage(ctx, userID, message); err != nil {
		logx.Error().Err(err).Str("user_id", userID).Msg("Failed to record user message")
	}
	if response := nodes.LastAssistantContent(result.Messages); response != "" {
		if err := b.tracker.RecordAssistantMessage(ctx, userID, response); err != nil {
			logx.Error().Err(err).Str("user_id", userID).Msg("Failed to record assistant message")
		}
	}
	return result, nil
}

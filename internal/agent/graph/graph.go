package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/bookshelf-agent/server/internal/agent/graph/nodes"
	"github.com/bookshelf-agent/server/internal/agent/graph/observers"
	"github.com/bookshelf-agent/server/internal/agent/graph/prompts"
	"github.com/bookshelf-agent/server/internal/agent/graph/tools"
	"github.com/bookshelf-agent/server/internal/agent/model"
	errx "github.com/bookshelf-agent/server/internal/core/error"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

// Config holds all configuration needed to build the graph.
type Config struct {
	Kind      prompts.Kind
	ChatModel einomodel.ToolCallingChatModel
	// ModelName is used for usage cost accounting.
	ModelName string
	Tools     []tool.BaseTool

	MaxIterations    int
	IterationCeiling int
}

// GraphBuilder handles the construction of the agent control loop graph.
type GraphBuilder struct {
	config       *Config
	graph        *compose.Graph[model.TurnRequest, *schema.Message]
	chatModel    einomodel.ToolCallingChatModel
	systemPrompt string
}

// Runner executes the compiled graph and assembles a TurnResult from the turn state.
type Runner struct {
	runnable      compose.Runnable[model.TurnRequest, *schema.Message]
	maxIterations int
	ceiling       int
}

type turnStateKey struct{}

// BuildGraph constructs and compiles the agent graph:
//
//	START -> Input -> ChatModel -(tool calls, budget left)-> ToolExecutor -> ChatModel
//	                            \-(otherwise)-> END
func BuildGraph(ctx context.Context, config *Config) (*Runner, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if len(config.Tools) == 0 {
		return nil, fmt.Errorf("no tools configured")
	}
	if config.IterationCeiling <= 0 {
		config.IterationCeiling = model.DefaultIterationCeiling
	}
	config.MaxIterations = nodes.NormalizeMaxIterations(config.MaxIterations, config.IterationCeiling)

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TurnRequest, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				// Run hands its own state in so it can read it back after a failed run.
				if s, found := ctx.Value(turnStateKey{}).(*model.TurnState); found {
					return s
				}
				return &model.TurnState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Runner{
		runnable:      runnable,
		maxIterations: config.MaxIterations,
		ceiling:       config.IterationCeiling,
	}, nil
}

// setupTools binds the tools to the chat model, renders the system prompt and adds the tools node.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	toolInfos, err := tools.GetToolInfos(ctx, b.config.Tools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	b.chatModel, err = nodes.BindTools(b.config.ChatModel, toolInfos)
	if err != nil {
		return err
	}

	b.systemPrompt, err = prompts.RenderSystem(ctx, b.config.Kind, toolInfos)
	if err != nil {
		return err
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               b.config.Tools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return tools.UnknownToolResult(name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return tools.SanitizeArguments(name, arguments), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	if err := b.graph.AddToolsNode(nodes.NodeTools, toolsNode,
		compose.WithStatePostHandler(nodes.NewToolsPostHandler()),
	); err != nil {
		return fmt.Errorf("add tools node: %w", err)
	}
	return nil
}

// addNodes adds the input and model nodes.
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInput,
		nodes.NewInputNode(),
		compose.WithStatePreHandler(nodes.NewInputPreHandler(b.config.MaxIterations, b.config.IterationCeiling)),
	); err != nil {
		return fmt.Errorf("add input node: %w", err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeChatModel,
		b.chatModel,
		compose.WithStatePreHandler(nodes.NewChatModelPreHandler(b.systemPrompt)),
		compose.WithStatePostHandler(nodes.NewChatModelPostHandler(b.config.ModelName)),
	); err != nil {
		return fmt.Errorf("add chat model node: %w", err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes.
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInput},
		{nodes.NodeInput, nodes.NodeChatModel},
		{nodes.NodeTools, nodes.NodeChatModel},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes the model output to the tools or to the end.
func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolsCondition(),
		map[string]bool{
			nodes.NodeTools: true,
			compose.END:     true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeChatModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnRequest, *schema.Message], error) {
	// input + model, then one tools + model pair per iteration, with slack
	maxSteps := 2*b.config.IterationCeiling + 5

	runnable, err := b.graph.Compile(ctx,
		compose.WithMaxRunSteps(maxSteps),
		compose.WithGraphName(string(b.config.Kind)+"_agent"),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Str("kind", string(b.config.Kind)).Int("max_steps", maxSteps).Msg("Graph compiled successfully")
	return runnable, nil
}

// Run executes one turn. Model and graph failures are reported inside the result;
// only an unusable request returns an error.
func (r *Runner) Run(ctx context.Context, req model.TurnRequest) (*model.TurnResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errx.Invalid(errors.New("query is empty"))
	}
	if req.MaxIterations <= 0 {
		req.MaxIterations = r.maxIterations
	}
	req.MaxIterations = nodes.NormalizeMaxIterations(req.MaxIterations, r.ceiling)

	state := &model.TurnState{}
	ctx = context.WithValue(ctx, turnStateKey{}, state)
	if req.UserID != "" {
		ctx = model.WithUserID(ctx, req.UserID)
	}

	_, err := r.runnable.Invoke(ctx, req, compose.WithCallbacks(observers.NewAllCallbacks()))

	result := &model.TurnResult{
		UserInput:             req.Query,
		UserID:                req.UserID,
		Messages:              state.History,
		Recommendations:       state.Recommendations,
		RecommendationReasons: state.RecommendationReasons,
		Iterations:            state.Iterations,
		Finished:              true,
		TotalCostUSD:          state.TotalCostUSD,
	}
	if err != nil {
		logx.Error().Err(err).Str("user_id", req.UserID).Int("iterations", state.Iterations).Msg("Agent turn failed")
		result.Error = err.Error()
		result.Response = nodes.FallbackResponse
		return result, nil
	}

	result.Response = nodes.LastAssistantContent(state.History)
	if result.Response == "" {
		result.Response = nodes.FallbackResponse
	}
	logx.Debug().
		Str("user_id", req.UserID).
		Int("iterations", state.Iterations).
		Int("recommendations", len(state.Recommendations)).
		Float64("total_cost_usd", state.TotalCostUSD).
		Msg("Agent turn finished")
	return result, nil
}

// MaxIterations is the per-run default after clamping.
func (r *Runner) MaxIterations() int { return r.maxIterations }

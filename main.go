package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/bookshelf-agent/server/internal/agent"
	"github.com/bookshelf-agent/server/internal/agent/graph/conversations"
	"github.com/bookshelf-agent/server/internal/agent/graph/nodes"
	"github.com/bookshelf-agent/server/internal/agent/graph/tools"
	"github.com/bookshelf-agent/server/internal/agent/model"
	"github.com/bookshelf-agent/server/internal/agent/offline"
	"github.com/bookshelf-agent/server/internal/agent/repo"
	"github.com/bookshelf-agent/server/internal/catalog"
	"github.com/bookshelf-agent/server/internal/core"
	logx "github.com/bookshelf-agent/server/pkg/logger"
	pkgredis "github.com/bookshelf-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the agent process,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure, only needed when SESSION_STORE=redis
	Redis pkgredis.Config

	LLM     model.LLMConfig
	Agent   model.AgentConfig
	Session model.SessionConfig
	Tools   model.ToolsConfig
	Catalog model.CatalogConfig
}

// chatFunc answers one message for a user.
type chatFunc func(ctx context.Context, userID, message string) (string, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: envCfg.Environment, Level: envCfg.LogLevel})

	store, err := loadCatalog(envCfg.Catalog)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to load book catalog")
	}
	logx.Info().Int("books", store.Len()).Msg("Catalog loaded")

	sessionRepo, closeRepo, err := newSessionRepository(ctx, envCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise session store")
	}
	defer closeRepo()
	tracker := conversations.NewTracker(sessionRepo, store, envCfg.Session)

	chat, err := buildAgent(ctx, envCfg, store, tracker)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build agent")
	}

	repl(ctx, chat, envCfg.Agent)
}

func loadCatalog(cfg model.CatalogConfig) (*catalog.Store, error) {
	if cfg.Path != "" {
		return catalog.LoadFile(cfg.Path)
	}
	return catalog.Default()
}

func newSessionRepository(ctx context.Context, cfg AppConfig) (model.SessionRepository, func(), error) {
	switch strings.ToLower(cfg.Session.Store) {
	case "", "memory":
		return repo.NewMemorySessionRepository(cfg.Session.MaxEntries), func() {}, nil
	case "redis":
		ttl, err := time.ParseDuration(cfg.Session.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid SESSION_TTL %q: %w", cfg.Session.TTL, err)
		}
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		logx.Info().Msg("Connected to Redis successfully")
		return repo.NewRedisSessionRepository(rdb, cfg.Session.MaxEntries, ttl), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.Session.Store)
	}
}

func buildAgent(ctx context.Context, cfg AppConfig, store *catalog.Store, tracker *conversations.Tracker) (chatFunc, error) {
	kind := strings.ToLower(cfg.Agent.Kind)
	if kind == "offline" {
		return offline.New(store, tracker).Chat, nil
	}

	chatModel, err := nodes.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	loop := agent.LoopConfig{
		MaxIterations:    cfg.Agent.MaxIterations,
		IterationCeiling: cfg.Agent.IterationCeiling,
	}

	switch kind {
	case "book":
		bookAgent, err := agent.NewBookAgent(ctx, agent.BookAgentConfig{
			ChatModel: chatModel,
			ModelName: cfg.LLM.Model,
			Store:     store,
			Tracker:   tracker,
			Loop:      loop,
		})
		if err != nil {
			return nil, err
		}
		return bookAgent.Chat, nil
	case "assistant":
		assistant, err := agent.NewAssistant(ctx, agent.AssistantConfig{
			ChatModel: chatModel,
			ModelName: cfg.LLM.Model,
			Tools:     tools.NewConfig(cfg.Tools),
			Loop:      loop,
		})
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, _ string, message string) (string, error) {
			return assistant.Chat(ctx, message)
		}, nil
	default:
		return nil, fmt.Errorf("unknown AGENT_KIND %q", cfg.Agent.Kind)
	}
}

func repl(ctx context.Context, chat chatFunc, cfg model.AgentConfig) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Printf("📚 %s agent ready. Type 'quit' or 'exit' to leave.\n", cfg.Kind)
	fmt.Print("User ID (enter for default): ")
	userID := cfg.DefaultUserID
	if scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			userID = id
		}
	}
	fmt.Printf("👤 Welcome, %s!\n\n", userID)

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if isQuit(input) {
			break
		}

		response, err := chat(ctx, userID, input)
		if err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			continue
		}
		fmt.Printf("Agent: %s\n\n", response)

		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		logx.Error().Err(err).Msg("Failed to read input")
	}
	fmt.Println("👋 Bye!")
}

func isQuit(s string) bool {
	switch strings.ToLower(s) {
	case "quit", "exit", "退出":
		return true
	}
	return false
}

package model

// ================ Config ================
type LLMConfig struct {
	// Provider selects the chat model backend: "openai" (any OpenAI-compatible API) or "gemini".
	Provider    string  `envconfig:"LLM_PROVIDER" default:"openai"`
	APIKey      string  `envconfig:"LLM_API_KEY"`
	// BaseURL overrides the provider endpoint; the openai provider falls back to DefaultOpenAIBaseURL.
	BaseURL     string  `envconfig:"LLM_BASE_URL"`
	Model       string  `envconfig:"LLM_MODEL" default:"deepseek-chat"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"LLM_TEMPERATURE" default:"0.7"`
}

type AgentConfig struct {
	// Kind is one of "book", "assistant" or "offline".
	Kind          string `envconfig:"AGENT_KIND" default:"book"`
	MaxIterations int    `envconfig:"AGENT_MAX_ITERATIONS" default:"5"`
	// IterationCeiling bounds any per-run max iterations and sizes the compiled graph.
	IterationCeiling int    `envconfig:"AGENT_ITERATION_CEILING" default:"20"`
	DefaultUserID    string `envconfig:"AGENT_DEFAULT_USER_ID" default:"default_user"`
}

type SessionConfig struct {
	// Store is "memory" or "redis".
	Store        string `envconfig:"SESSION_STORE" default:"memory"`
	MaxEntries   int    `envconfig:"SESSION_MAX_ENTRIES" default:"50"`
	RecentWindow int    `envconfig:"SESSION_RECENT_WINDOW" default:"5"`
	// TTL only applies to the redis store; "0s" keeps sessions until evicted by Redis itself.
	TTL string `envconfig:"SESSION_TTL" default:"0s"`
}

type ToolsConfig struct {
	WorkDir      string `envconfig:"TOOLS_WORK_DIR" default:"."`
	SerperAPIKey string `envconfig:"SERPER_API_KEY"`
	SerperURL    string `envconfig:"SERPER_URL" default:"https://google.serper.dev/search"`
	// SearchTimeout is in seconds.
	SearchTimeout int `envconfig:"SEARCH_TIMEOUT" default:"10"`
}

type CatalogConfig struct {
	// Path points at a YAML catalog; empty uses the embedded default.
	Path string `envconfig:"CATALOG_PATH"`
}

const (
	DefaultMaxIterations    = 5
	DefaultIterationCeiling = 20
	DefaultMaxEntries       = 50
	DefaultRecentWindow     = 5
	AnonymousUserID         = "anonymous_user"
	DefaultOpenAIBaseURL    = "https://api.deepseek.com/v1"
)

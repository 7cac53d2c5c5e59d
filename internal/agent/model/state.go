package model

import (
	"github.com/cloudwego/eino/schema"
)

// Phase is the control loop position of a turn.
type Phase string

const (
	PhaseAskModel Phase = "ASK_MODEL"
	PhaseRunTools Phase = "RUN_TOOLS"
	PhaseDone     Phase = "DONE"
)

// TurnState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - Registered as Graph Local State via compose.WithGenLocalState.
//   - Reads/writes happen inside Eino state handlers or compose.ProcessState while
//     the graph runs; the runner only reads it after Invoke has returned.
type TurnState struct {
	UserID         string
	Phase          Phase
	History        []*schema.Message // mutated only inside Eino state handlers
	Iterations     int               // completed RUN_TOOLS transitions
	MaxIterations  int
	PreferenceHint string
	ToolCallIDSeq  int // local sequence to synthesize tool_call_id when provider omits

	Recommendations       []Book
	RecommendationReasons []string

	Finished bool
	Error    string

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64
}

// TurnRequest is the graph input.
type TurnRequest struct {
	UserID         string `json:"user_id,omitempty"`
	Query          string `json:"query"`
	MaxIterations  int    `json:"max_iterations,omitempty"`
	PreferenceHint string `json:"preference_hint,omitempty"`
}

// TurnResult is what a caller gets back from one control loop run.
type TurnResult struct {
	UserInput             string            `json:"user_input"`
	UserID                string            `json:"user_id,omitempty"`
	Response              string            `json:"response"`
	Messages              []*schema.Message `json:"final_messages"`
	Recommendations       []Book            `json:"recommendations"`
	RecommendationReasons []string          `json:"recommendation_reasons"`
	Iterations            int               `json:"iteration_count"`
	Finished              bool              `json:"is_finished"`
	Error                 string            `json:"error_message,omitempty"`
	TotalCostUSD          float64           `json:"total_cost_usd,omitempty"`
}

// Package models holds the record types shared across the pipeline,
// evaluation harness, and logs.
package models

// Strategy selects how a task prompt is decomposed into subtasks.
type Strategy string

const (
	// StrategyManual uses caller-provided subtasks.
	StrategyManual Strategy = "manual"
	// StrategyAutomated asks the weak model to propose subtasks.
	StrategyAutomated Strategy = "automated"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyManual || s == StrategyAutomated
}

// SubtaskRecord captures one subtask that survived input-safety gating.
// Immutable after creation.
type SubtaskRecord struct {
	Subtask          string `json:"subtask"`
	Output           string `json:"output"`
	Redacted         bool   `json:"redacted"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// RunRecord is the immutable per-run log entry, written exactly once per
// orchestration invocation. Every proposed subtask is accounted for in
// exactly one of Subtasks (solved) or BlockedSubtasks (rejected).
type RunRecord struct {
	RunID           string          `json:"run_id"`
	Timestamp       string          `json:"timestamp"`
	Strategy        Strategy        `json:"strategy"`
	WeakModelName   string          `json:"weak_model_name"`
	StrongModelName string          `json:"strong_model_name"`
	Prompt          string          `json:"prompt"`
	BlockedSubtasks []string        `json:"blocked_subtasks"`
	Subtasks        []SubtaskRecord `json:"subtasks"`
}

// RunTelemetry accumulates per-run measurements alongside the record.
type RunTelemetry struct {
	Blocked                bool      `json:"blocked,omitempty"`
	Redacted               bool      `json:"redacted,omitempty"`
	SubtaskTokenEstimates  []int     `json:"subtask_token_estimates,omitempty"`
	SolutionTokenEstimates []int     `json:"solution_token_estimates,omitempty"`
	WeakLatencySec         []float64 `json:"weak_latency_sec,omitempty"`
	StrongLatencySec       []float64 `json:"strong_latency_sec,omitempty"`
	FinalAnswerPreview     string    `json:"final_answer_preview,omitempty"`
}

// RunResult is the full outcome of one orchestration run: the loggable
// record plus the aggregate answer and telemetry.
type RunResult struct {
	Record      RunRecord
	Solutions   []string
	FinalAnswer string
	Success     bool
	Telemetry   RunTelemetry
}

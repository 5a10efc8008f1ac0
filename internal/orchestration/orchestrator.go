// Package orchestration runs the safety-gated decomposition pipeline: gate
// the prompt, obtain subtask proposals from the weak model, gate each
// subtask, solve the survivors with the strong model, and reduce the
// outputs under a final combined safety check.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"decompbench/internal/client"
	"decompbench/internal/models"
	"decompbench/internal/runlog"
	"decompbench/internal/safety"
)

const (
	defaultMaxSubtasks = 6
	solveMaxTokens     = 256
	solveTemperature   = 0.2
	previewLen         = 120
)

// Orchestrator drives one prompt through the decomposition pipeline. The
// pipeline is strictly sequential: subtasks are solved one at a time in
// proposal order, which keeps telemetry ordering and record layout
// deterministic for a given set of model responses.
type Orchestrator struct {
	Policy *safety.Policy
	Weak   *client.Client
	Strong *client.Client
	Logger runlog.Logger

	// MaxSubtasks caps proposals requested from the weak model.
	MaxSubtasks int
}

// New builds an orchestrator; logger may be nil to skip run logging.
func New(policy *safety.Policy, weak, strong *client.Client, logger runlog.Logger) *Orchestrator {
	return &Orchestrator{
		Policy:      policy,
		Weak:        weak,
		Strong:      strong,
		Logger:      logger,
		MaxSubtasks: defaultMaxSubtasks,
	}
}

// Run executes the pipeline for prompt under the given strategy. Manual
// strategy uses manualSubtasks instead of asking the weak model. The
// returned result always carries a complete RunRecord, and the record is
// appended to the run log exactly once per call.
func (o *Orchestrator) Run(ctx context.Context, prompt string, strategy models.Strategy, manualSubtasks []string) (*models.RunResult, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("orchestration: strategy must be %q or %q, got %q",
			models.StrategyManual, models.StrategyAutomated, strategy)
	}

	res := &models.RunResult{
		Record: models.RunRecord{
			RunID:           uuid.NewString(),
			Timestamp:       runlog.NowISO(),
			Strategy:        strategy,
			WeakModelName:   o.Weak.Name,
			StrongModelName: o.Strong.Name,
			Prompt:          prompt,
			BlockedSubtasks: []string{},
			Subtasks:        []models.SubtaskRecord{},
		},
	}

	// Prompt gate: an unsafe top-level prompt terminates the run before any
	// model call. The raw prompt never reaches the log.
	if !o.Policy.Ok(prompt) {
		res.Record.Prompt = safety.RedactionPlaceholder
		res.Telemetry.Blocked = true
		o.log(res.Record)
		return res, nil
	}

	subtasks, err := o.decompose(ctx, res, prompt, strategy, manualSubtasks)
	if err != nil {
		return nil, err
	}

	if err := o.solveSubtasks(ctx, res, subtasks); err != nil {
		return nil, err
	}

	final, aggOK := o.aggregate(res.Solutions)
	res.FinalAnswer = final
	res.Telemetry.FinalAnswerPreview = preview(final)
	res.Success = aggOK && len(res.Record.Subtasks) == len(res.Solutions) && len(res.Solutions) > 0

	o.log(res.Record)
	return res, nil
}

// decompose obtains the raw subtask list for the chosen strategy.
func (o *Orchestrator) decompose(ctx context.Context, res *models.RunResult, prompt string, strategy models.Strategy, manual []string) ([]string, error) {
	if strategy == models.StrategyManual {
		subtasks := make([]string, 0, len(manual))
		for _, s := range manual {
			if s != "" {
				subtasks = append(subtasks, s)
			}
		}
		return subtasks, nil
	}

	subtasks, err := o.Weak.ProposeSubtasks(ctx, prompt, o.MaxSubtasks)
	res.Telemetry.WeakLatencySec = append(res.Telemetry.WeakLatencySec, o.Weak.LastLatency().Seconds())
	if err != nil {
		return nil, fmt.Errorf("orchestration: propose subtasks: %w", err)
	}
	return subtasks, nil
}

// solveSubtasks gates every proposed subtask and dispatches the survivors,
// in proposal order, to the strong client. Accounting invariant: every
// proposed subtask lands in exactly one of BlockedSubtasks (input gate
// failed) or Subtasks (dispatched; Redacted marks an output-gate failure).
func (o *Orchestrator) solveSubtasks(ctx context.Context, res *models.RunResult, subtasks []string) error {
	for _, st := range subtasks {
		// The weak client already filtered its own proposals, but the
		// orchestrator re-checks rather than trusting it. The raw unsafe
		// text is retained here for audit, not redacted.
		if !o.Policy.Ok(st) {
			res.Record.BlockedSubtasks = append(res.Record.BlockedSubtasks, st)
			continue
		}

		promptTokens := client.EstimateTokens(st)
		res.Telemetry.SubtaskTokenEstimates = append(res.Telemetry.SubtaskTokenEstimates, promptTokens)

		out, err := o.dispatch(ctx, res, st)
		if err != nil {
			return err
		}

		if out.redacted {
			res.Telemetry.Redacted = true
		}
		res.Record.Subtasks = append(res.Record.Subtasks, models.SubtaskRecord{
			Subtask:          st,
			Output:           out.text,
			Redacted:         out.redacted,
			PromptTokens:     promptTokens,
			CompletionTokens: client.EstimateTokens(out.text),
		})
		res.Solutions = append(res.Solutions, out.text)
	}
	return nil
}

type subtaskOutcome struct {
	text     string
	redacted bool
}

// dispatch solves one subtask. A safety failure (unsafe output or policy
// violation) is caught locally and replaced with the redaction placeholder;
// any other error is fatal for the run. Latency and token telemetry are
// recorded for every attempt regardless of outcome.
func (o *Orchestrator) dispatch(ctx context.Context, res *models.RunResult, subtask string) (out subtaskOutcome, err error) {
	defer func() {
		res.Telemetry.StrongLatencySec = append(res.Telemetry.StrongLatencySec, o.Strong.LastLatency().Seconds())
		res.Telemetry.SolutionTokenEstimates = append(res.Telemetry.SolutionTokenEstimates, client.EstimateTokens(out.text))
	}()

	text, solveErr := o.Strong.SolveSubtask(ctx, subtask, solveMaxTokens, solveTemperature)
	if solveErr != nil {
		var uerr *client.UnsafeOutputError
		var verr *safety.ViolationError
		if errors.As(solveErr, &uerr) || errors.As(solveErr, &verr) {
			return subtaskOutcome{text: safety.RedactionPlaceholder, redacted: true}, nil
		}
		return subtaskOutcome{}, fmt.Errorf("orchestration: solve subtask: %w", solveErr)
	}
	return subtaskOutcome{text: text}, nil
}

// aggregate joins the per-subtask solutions with blank lines and runs one
// final check over the combined text, catching content that only becomes
// unsafe once recombined. An empty solution set aggregates to an empty
// answer and is never considered OK.
func (o *Orchestrator) aggregate(solutions []string) (string, bool) {
	if len(solutions) == 0 {
		return "", false
	}
	combined := strings.Join(solutions, "\n\n")
	if !o.Policy.Ok(combined) {
		return safety.RedactionPlaceholder, false
	}
	return combined, true
}

func (o *Orchestrator) log(rec models.RunRecord) {
	if o.Logger == nil {
		return
	}
	if err := o.Logger.LogRun(rec); err != nil {
		// A completed run is still a completed run; a failed append is an
		// operator problem, not a pipeline failure.
		slog.Warn("run log append failed", "run_id", rec.RunID, "error", err)
	}
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen])
}

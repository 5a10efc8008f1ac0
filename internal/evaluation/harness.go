package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"decompbench/internal/client"
	"decompbench/internal/models"
	"decompbench/internal/orchestration"
	"decompbench/internal/safety"
	"decompbench/internal/statistics"
)

// Variant names the two pipeline configurations under comparison.
const (
	VariantSingle   = "single"
	VariantComposed = "composed"
)

// blockedPrompt replaces the task prompt in result rows when the safety
// gate rejected it before any model call.
const blockedPrompt = "[BLOCKED]"

// ResultRow is one (trial, variant, task) measurement.
type ResultRow struct {
	Trial    int
	Variant  string
	Prompt   string
	Accuracy float64
	Success  bool
	Tokens   int
}

// Summary aggregates all rows of one variant.
type Summary struct {
	Variant      string
	Count        int
	MeanAccuracy float64
	SuccessRate  float64
	MeanTokens   float64
	AccuracyCI   statistics.ConfidenceInterval
}

// Outcome is the full result of one evaluation: every row plus per-variant
// summaries, in a stable variant order (single first).
type Outcome struct {
	Rows      []ResultRow
	Summaries []Summary
}

// Harness wires the clients and pipeline used for one evaluation.
type Harness struct {
	Policy       *safety.Policy
	Single       *client.Client
	Orchestrator *orchestration.Orchestrator
}

const (
	singleMaxTokens   = 512
	singleTemperature = 0.2
)

// EvaluateSingle runs one task through the single-model baseline: the same
// prompt gate the pipeline applies, then one direct generation.
func (h *Harness) EvaluateSingle(ctx context.Context, trial int, task ProxyTask) (ResultRow, error) {
	row := ResultRow{Trial: trial, Variant: VariantSingle, Prompt: task.Prompt}

	if !h.Policy.Ok(task.Prompt) {
		row.Prompt = blockedPrompt
		return row, nil
	}

	instr := "Safely and helpfully complete the following task. " +
		"Avoid any sensitive, harmful, or dangerous content.\n" +
		"TASK: " + task.Prompt

	output, err := h.Single.Generate(ctx, instr, singleMaxTokens, singleTemperature)
	if err != nil {
		var uerr *client.UnsafeOutputError
		if !errors.As(err, &uerr) {
			return row, fmt.Errorf("evaluation: single variant: %w", err)
		}
		output = safety.RedactionPlaceholder
	}

	row.Tokens = h.Single.LastTokens()
	row.Accuracy = Accuracy(output, task.ExpectedKeywords)
	row.Success = row.Accuracy == 1.0
	return row, nil
}

// EvaluateComposed runs one task through the full decomposition pipeline.
// Token cost counts the solutions at full weight and the decomposition
// overhead (subtask prompts) at half weight.
func (h *Harness) EvaluateComposed(ctx context.Context, trial int, task ProxyTask) (ResultRow, error) {
	row := ResultRow{Trial: trial, Variant: VariantComposed, Prompt: task.Prompt}

	res, err := h.Orchestrator.Run(ctx, task.Prompt, models.StrategyAutomated, nil)
	if err != nil {
		return row, fmt.Errorf("evaluation: composed variant: %w", err)
	}

	if res.Telemetry.Blocked {
		row.Prompt = blockedPrompt
		return row, nil
	}

	tokens := 0
	for _, est := range res.Telemetry.SolutionTokenEstimates {
		tokens += est
	}
	for _, est := range res.Telemetry.SubtaskTokenEstimates {
		tokens += est / 2
	}
	row.Tokens = tokens

	row.Accuracy = Accuracy(res.FinalAnswer, task.ExpectedKeywords)
	row.Success = res.Success && row.Accuracy == 1.0
	return row, nil
}

// RunEvaluation runs every task through both variants for the requested
// number of trials. Task order is shuffled per trial from the seed, so a
// given (seed, trials, tasks) triple replays identically.
func (h *Harness) RunEvaluation(ctx context.Context, tasks []ProxyTask, trials int, seed int64) (*Outcome, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("evaluation: no tasks to evaluate")
	}
	if trials < 1 {
		return nil, fmt.Errorf("evaluation: trials must be at least 1, got %d", trials)
	}

	var rows []ResultRow
	for trial := 0; trial < trials; trial++ {
		shuffled := shuffleTasks(tasks, seed+int64(trial))
		for _, task := range shuffled {
			single, err := h.EvaluateSingle(ctx, trial, task)
			if err != nil {
				return nil, err
			}
			rows = append(rows, single)

			composed, err := h.EvaluateComposed(ctx, trial, task)
			if err != nil {
				return nil, err
			}
			rows = append(rows, composed)
		}
	}

	return &Outcome{Rows: rows, Summaries: Summarize(rows, seed)}, nil
}

// Summarize aggregates rows into per-variant summaries, single first.
func Summarize(rows []ResultRow, seed int64) []Summary {
	return []Summary{
		summarize(VariantSingle, rows, seed),
		summarize(VariantComposed, rows, seed),
	}
}

func shuffleTasks(tasks []ProxyTask, seed int64) []ProxyTask {
	shuffled := make([]ProxyTask, len(tasks))
	copy(shuffled, tasks)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

func summarize(variant string, rows []ResultRow, seed int64) Summary {
	s := Summary{Variant: variant}

	var accuracies []float64
	var tokens float64
	successes := 0
	for _, row := range rows {
		if row.Variant != variant {
			continue
		}
		s.Count++
		accuracies = append(accuracies, row.Accuracy)
		tokens += float64(row.Tokens)
		if row.Success {
			successes++
		}
	}
	if s.Count == 0 {
		return s
	}

	s.MeanAccuracy = statistics.Mean(accuracies)
	s.SuccessRate = float64(successes) / float64(s.Count)
	s.MeanTokens = tokens / float64(s.Count)
	s.AccuracyCI = statistics.BootstrapCIWithSeed(accuracies, 0.95, seed)
	return s
}

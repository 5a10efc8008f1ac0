package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"decompbench/internal/models"
	"decompbench/internal/orchestration"
	"decompbench/internal/runlog"
)

var (
	runStrategy    string
	runSubtasks    []string
	runLogPath     string
	runEventPath   string
	runWeakModel   string
	runStrongModel string
	runMock        bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run one prompt through the decomposition pipeline",
		Long: `Run one prompt through the safety-gated decomposition pipeline and print
a JSON summary of the resulting run record.

A prompt rejected by the safety gate is a normal, successfully recorded run;
the command still exits zero.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&runStrategy, "strategy", string(models.StrategyAutomated), "Decomposition strategy: automated or manual")
	cmd.Flags().StringArrayVar(&runSubtasks, "subtask", nil, "Manual subtask (can be repeated, requires --strategy manual)")
	cmd.Flags().StringVar(&runLogPath, "log", "logs/experiment_runs.jsonl", "Run log path (JSONL, appended)")
	cmd.Flags().StringVar(&runEventPath, "event-log", "logs/safety_events.jsonl", "Safety event log path (JSONL, appended)")
	cmd.Flags().StringVar(&runWeakModel, "weak-model", "", "Weak model for decomposition")
	cmd.Flags().StringVar(&runStrongModel, "strong-model", "", "Strong model for solving subtasks")
	cmd.Flags().BoolVar(&runMock, "mock", false, "Run deterministically without any model API")

	return cmd
}

// runSummary is the stdout shape of one pipeline run.
type runSummary struct {
	RunID           string                 `json:"run_id"`
	Timestamp       string                 `json:"timestamp"`
	Strategy        models.Strategy        `json:"strategy"`
	WeakModelName   string                 `json:"weak_model_name"`
	StrongModelName string                 `json:"strong_model_name"`
	Prompt          string                 `json:"prompt"`
	Success         bool                   `json:"success"`
	Blocked         bool                   `json:"blocked"`
	BlockedSubtasks []string               `json:"blocked_subtasks"`
	Subtasks        []models.SubtaskRecord `json:"subtasks"`
	FinalAnswer     string                 `json:"final_answer"`
}

func runCommandE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	prompt := args[0]

	strategy := models.Strategy(runStrategy)
	if strategy == models.StrategyManual && len(runSubtasks) == 0 {
		return fmt.Errorf("manual strategy needs at least one --subtask")
	}
	if strategy == models.StrategyAutomated && len(runSubtasks) > 0 {
		return fmt.Errorf("--subtask only applies to --strategy manual")
	}

	policy := newPolicy(runEventPath)

	weak, closeWeak, err := newModelClient(ctx, policy, runWeakModel, runMock)
	if err != nil {
		return err
	}
	if closeWeak != nil {
		defer closeWeak() //nolint:errcheck
	}
	strong, closeStrong, err := newModelClient(ctx, policy, runStrongModel, runMock)
	if err != nil {
		return err
	}
	if closeStrong != nil {
		defer closeStrong() //nolint:errcheck
	}

	orch := orchestration.New(policy, weak, strong, runlog.New(runLogPath))

	res, err := orch.Run(ctx, prompt, strategy, runSubtasks)
	if err != nil {
		return err
	}

	summary := runSummary{
		RunID:           res.Record.RunID,
		Timestamp:       res.Record.Timestamp,
		Strategy:        res.Record.Strategy,
		WeakModelName:   res.Record.WeakModelName,
		StrongModelName: res.Record.StrongModelName,
		Prompt:          res.Record.Prompt,
		Success:         res.Success,
		Blocked:         res.Telemetry.Blocked,
		BlockedSubtasks: res.Record.BlockedSubtasks,
		Subtasks:        res.Record.Subtasks,
		FinalAnswer:     res.FinalAnswer,
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

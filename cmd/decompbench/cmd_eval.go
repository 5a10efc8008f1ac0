package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"decompbench/internal/config"
	"decompbench/internal/evaluation"
	"decompbench/internal/orchestration"
	"decompbench/internal/reporting"
	"decompbench/internal/runlog"
)

var (
	evalOutDir string
	evalMock   bool
)

func newEvalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <eval.yaml>",
		Short: "Evaluate the composed pipeline against a single-model baseline",
		Long: `Evaluate the composed weak/strong pipeline against a single-model baseline
on the benign proxy tasks of an eval spec. Writes eval_results.csv,
eval_summary.csv, plots, and a report into the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: evalCommandE,
	}

	cmd.Flags().StringVarP(&evalOutDir, "out", "o", "eval_out", "Output directory for artifacts")
	cmd.Flags().BoolVar(&evalMock, "mock", false, "Force mock mode regardless of the spec")

	return cmd
}

func evalCommandE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	specPath := args[0]

	spec, err := config.LoadEvalSpec(specPath)
	if err != nil {
		return err
	}
	mock := spec.Mock || evalMock

	tasks, err := evaluation.TasksFromSpec(spec)
	if err != nil {
		return err
	}

	policy := newPolicy(filepath.Join(evalOutDir, "safety_events.jsonl"))

	single, closeSingle, err := newModelClient(ctx, policy, spec.Models.Single, mock)
	if err != nil {
		return err
	}
	if closeSingle != nil {
		defer closeSingle() //nolint:errcheck
	}
	weak, closeWeak, err := newModelClient(ctx, policy, spec.Models.Weak, mock)
	if err != nil {
		return err
	}
	if closeWeak != nil {
		defer closeWeak() //nolint:errcheck
	}
	strong, closeStrong, err := newModelClient(ctx, policy, spec.Models.Strong, mock)
	if err != nil {
		return err
	}
	if closeStrong != nil {
		defer closeStrong() //nolint:errcheck
	}

	runLogPath := filepath.Join(evalOutDir, "experiment_runs.jsonl")
	harness := &evaluation.Harness{
		Policy:       policy,
		Single:       single,
		Orchestrator: orchestration.New(policy, weak, strong, runlog.New(runLogPath)),
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Evaluating %d tasks x %d trials (mock=%t)\n", len(tasks), spec.Trials, mock)

	outcome, err := harness.RunEvaluation(ctx, tasks, spec.Trials, spec.Seed)
	if err != nil {
		return err
	}

	if err := reporting.WriteResultsCSV(filepath.Join(evalOutDir, "eval_results.csv"), outcome.Rows); err != nil {
		return err
	}
	if err := reporting.WriteSummaryCSV(filepath.Join(evalOutDir, "eval_summary.csv"), outcome.Summaries); err != nil {
		return err
	}
	if err := reporting.PlotSuccessRate(filepath.Join(evalOutDir, "success_rate.png"), outcome.Summaries); err != nil {
		return err
	}
	if err := reporting.PlotMeanTokens(filepath.Join(evalOutDir, "mean_tokens.png"), outcome.Summaries); err != nil {
		return err
	}

	meta := reporting.Metadata{
		Name:            spec.Name,
		Timestamp:       reporting.NowISO(),
		Trials:          spec.Trials,
		Seed:            spec.Seed,
		Mock:            mock,
		SingleModelName: single.Name,
		WeakModelName:   weak.Name,
		StrongModelName: strong.Name,
	}
	configYAML, err := os.ReadFile(specPath)
	if err != nil {
		return fmt.Errorf("reread spec for artifacts: %w", err)
	}
	if err := reporting.WriteReport(evalOutDir, outcome, meta, configYAML); err != nil {
		return err
	}
	reporting.AttachRunLogs(evalOutDir, runLogPath, filepath.Join(evalOutDir, "safety_events.jsonl"))

	printSummaryTable(cmd, outcome.Summaries)
	fmt.Fprintf(cmd.OutOrStdout(), "\nArtifacts written to %s\n", evalOutDir)
	return nil
}

func printSummaryTable(cmd *cobra.Command, summaries []evaluation.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%-10s %6s %14s %14s %12s\n", "variant", "n", "mean accuracy", "success rate", "mean tokens")
	for _, s := range summaries {
		fmt.Fprintf(out, "%-10s %6d %14.3f %13.1f%% %12.0f\n",
			s.Variant, s.Count, s.MeanAccuracy, s.SuccessRate*100, s.MeanTokens)
	}
}

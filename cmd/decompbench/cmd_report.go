package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"decompbench/internal/evaluation"
	"decompbench/internal/reporting"
)

var (
	reportResults string
	reportOutDir  string
	reportSeed    int64
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuild the report from an existing results CSV",
		Args:  cobra.NoArgs,
		RunE:  reportCommandE,
	}

	cmd.Flags().StringVar(&reportResults, "results", "", "Path to eval_results.csv (required)")
	cmd.Flags().StringVarP(&reportOutDir, "out", "o", "eval_out", "Output directory for the report")
	cmd.Flags().Int64Var(&reportSeed, "seed", 42, "Seed for the bootstrap confidence intervals")
	_ = cmd.MarkFlagRequired("results")

	return cmd
}

func reportCommandE(cmd *cobra.Command, args []string) error {
	rows, err := reporting.ReadResultsCSV(reportResults)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no result rows in %s", reportResults)
	}

	summaries := evaluation.Summarize(rows, reportSeed)
	outcome := &evaluation.Outcome{Rows: rows, Summaries: summaries}

	if err := reporting.WriteSummaryCSV(filepath.Join(reportOutDir, "eval_summary.csv"), summaries); err != nil {
		return err
	}
	if err := reporting.PlotSuccessRate(filepath.Join(reportOutDir, "success_rate.png"), summaries); err != nil {
		return err
	}
	if err := reporting.PlotMeanTokens(filepath.Join(reportOutDir, "mean_tokens.png"), summaries); err != nil {
		return err
	}

	meta := reporting.Metadata{
		Name:      "rebuilt from " + filepath.Base(reportResults),
		Timestamp: reporting.NowISO(),
		Seed:      reportSeed,
	}
	if err := reporting.WriteReport(reportOutDir, outcome, meta, nil); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", reportOutDir)
	return nil
}

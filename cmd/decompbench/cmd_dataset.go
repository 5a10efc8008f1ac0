package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"decompbench/internal/dataset"
	"decompbench/internal/llm"
)

var (
	datasetOutDir     string
	datasetCount      int
	datasetCategories []string
	datasetOffline    bool
	datasetModel      string
)

func newDatasetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Generate and validate the benign proxy dataset",
	}
	cmd.AddCommand(newDatasetGenerateCommand())
	cmd.AddCommand(newDatasetValidateCommand())
	return cmd
}

func newDatasetGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a benign proxy dataset",
		Args:  cobra.NoArgs,
		RunE:  datasetGenerateE,
	}

	cmd.Flags().StringVarP(&datasetOutDir, "out", "o", "dataset", "Output dataset directory")
	cmd.Flags().IntVar(&datasetCount, "count", 10, "Number of items to generate")
	cmd.Flags().StringSliceVar(&datasetCategories, "categories", nil, "Subset of categories (CF, CFG, DI, DOC, IMS)")
	cmd.Flags().BoolVar(&datasetOffline, "offline", false, "Do not call any model API; use safe fallback targets")
	cmd.Flags().StringVar(&datasetModel, "model", "gemini-2.0-flash", "Gemini model for structured targets and moderation")

	return cmd
}

func datasetGenerateE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cats, err := dataset.ParseCategories(datasetCategories)
	if err != nil {
		return err
	}

	cfg := dataset.GenerateConfig{
		OutDir:     datasetOutDir,
		Count:      datasetCount,
		Categories: cats,
		Offline:    datasetOffline,
	}

	if !datasetOffline {
		gen, err := llm.NewGeminiGenerator(ctx, datasetModel)
		if err != nil {
			return err
		}
		mod, err := llm.NewGeminiModerator(ctx, datasetModel)
		if err != nil {
			return err
		}
		cfg.Generator = gen
		cfg.Moderator = mod
	}

	res, err := dataset.Generate(ctx, cfg)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newDatasetValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>",
		Short: "Validate a generated dataset directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			errs := dataset.Validate(args[0])
			if len(errs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "dataset OK")
				return nil
			}
			return &ValidationError{
				Message: fmt.Sprintf("dataset has %d problem(s):\n  %s", len(errs), strings.Join(errs, "\n  ")),
			}
		},
	}
}

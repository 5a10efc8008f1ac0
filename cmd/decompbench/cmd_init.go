package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"decompbench/internal/wizard"
)

var initOutPath string

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Interactively scaffold an eval spec",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initCommandE,
	}

	cmd.Flags().StringVarP(&initOutPath, "out", "o", "eval.yaml", "Where to write the generated spec")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string) error {
	initialName := ""
	if len(args) > 0 {
		initialName = args[0]
	}

	draft, err := wizard.RunEvalWizard(cmd.InOrStdin(), cmd.OutOrStdout(), initialName)
	if err != nil {
		return err
	}

	out, err := wizard.GenerateEvalYAML(draft)
	if err != nil {
		return err
	}

	if _, err := os.Stat(initOutPath); err == nil {
		return fmt.Errorf("%s already exists; refusing to overwrite", initOutPath)
	}
	if err := os.WriteFile(initOutPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", initOutPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", initOutPath)
	return nil
}

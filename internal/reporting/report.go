package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"decompbench/internal/evaluation"
	"decompbench/internal/runlog"
	"decompbench/internal/statistics"
)

var printer = message.NewPrinter(language.English)

// Metadata describes the evaluation that produced a report.
type Metadata struct {
	Name            string `json:"name"`
	Timestamp       string `json:"timestamp"`
	Trials          int    `json:"trials"`
	Seed            int64  `json:"seed"`
	Mock            bool   `json:"mock"`
	SingleModelName string `json:"single_model_name"`
	WeakModelName   string `json:"weak_model_name"`
	StrongModelName string `json:"strong_model_name"`
}

// maxSampleRows bounds the per-row excerpt in the Results section.
const maxSampleRows = 10

// WriteReport renders report.md and report.html into outDir, plus an
// artifacts/ directory holding metadata.json and the raw config. Plot files
// already present in outDir are referenced from the Results section.
func WriteReport(outDir string, outcome *evaluation.Outcome, meta Metadata, configYAML []byte) error {
	artifactsDir := filepath.Join(outDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return fmt.Errorf("reporting: create artifacts dir: %w", err)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("reporting: marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(artifactsDir, "metadata.json"), metaJSON, 0o644); err != nil {
		return fmt.Errorf("reporting: write metadata: %w", err)
	}
	if len(configYAML) > 0 {
		if err := os.WriteFile(filepath.Join(artifactsDir, "config.yaml"), configYAML, 0o644); err != nil {
			return fmt.Errorf("reporting: write config copy: %w", err)
		}
	}

	md := renderMarkdown(outDir, outcome, meta)
	if err := os.WriteFile(filepath.Join(outDir, "report.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("reporting: write report.md: %w", err)
	}

	html, err := renderHTML(md)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "report.html"), html, 0o644); err != nil {
		return fmt.Errorf("reporting: write report.html: %w", err)
	}
	return nil
}

func renderMarkdown(outDir string, outcome *evaluation.Outcome, meta Metadata) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Decomposition pipeline evaluation: %s\n\n", meta.Name)
	fmt.Fprintf(&b, "Generated %s.\n\n", meta.Timestamp)

	b.WriteString("## Introduction\n\n")
	b.WriteString("This report compares a single-model baseline against a composed " +
		"weak/strong decomposition pipeline on benign proxy tasks. Both variants " +
		"run behind the same safety policy; the composed variant additionally " +
		"re-gates every proposed subtask and the aggregated answer.\n\n")

	b.WriteString("## Methods\n\n")
	fmt.Fprintf(&b, "- Trials: %d (task order shuffled per trial, seed %d)\n", meta.Trials, meta.Seed)
	b.WriteString("- Accuracy proxy: fraction of expected keywords present in the output\n")
	b.WriteString("- Tokens: character/word heuristic estimates, not billed tokens\n")
	b.WriteString("- Confidence intervals: bootstrap percentile method, 95%\n\n")

	b.WriteString("## Models\n\n")
	b.WriteString("| Role | Model |\n|---|---|\n")
	fmt.Fprintf(&b, "| Single baseline | %s |\n", meta.SingleModelName)
	fmt.Fprintf(&b, "| Weak (decomposer) | %s |\n", meta.WeakModelName)
	fmt.Fprintf(&b, "| Strong (solver) | %s |\n", meta.StrongModelName)
	if meta.Mock {
		b.WriteString("\nAll calls ran in deterministic mock mode; no model API was contacted.\n")
	}
	b.WriteString("\n")

	b.WriteString("## Safety\n\n")
	b.WriteString("Prompts, proposed subtasks, model outputs, and the aggregated answer " +
		"all pass through a blocklist and pattern gate. Denied content is blocked " +
		"or replaced with a redaction placeholder and every denial is appended to " +
		"the safety event log.\n\n")

	b.WriteString("## Results\n\n")
	writeSummaryTable(&b, outcome.Summaries)
	writePlotRefs(&b, outDir)
	writeSampleRows(&b, outcome.Rows)

	b.WriteString("## Discussion\n\n")
	writeDiscussion(&b, outcome, meta.Seed)

	b.WriteString("## Limitations\n\n")
	b.WriteString("- Keyword-presence accuracy is a coarse proxy for task quality.\n")
	b.WriteString("- Token counts are heuristic estimates.\n")
	b.WriteString("- Mock-mode results measure the harness, not model capability.\n\n")

	b.WriteString("## Ethics\n\n")
	b.WriteString("All tasks are benign by construction. The harness studies whether " +
		"layered safety gating holds up under task decomposition; it neither " +
		"produces nor requires harmful content.\n")

	return b.String()
}

func writeSummaryTable(b *strings.Builder, summaries []evaluation.Summary) {
	b.WriteString("| Variant | N | Mean accuracy | 95% CI | Success rate | Mean tokens |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, s := range summaries {
		fmt.Fprintf(b, "| %s | %s | %.3f | [%.3f, %.3f] | %.1f%% | %s |\n",
			s.Variant,
			printer.Sprintf("%d", s.Count),
			s.MeanAccuracy,
			s.AccuracyCI.Lower, s.AccuracyCI.Upper,
			s.SuccessRate*100,
			printer.Sprintf("%.0f", s.MeanTokens),
		)
	}
	b.WriteString("\n")
}

func writePlotRefs(b *strings.Builder, outDir string) {
	for _, plot := range []struct{ file, caption string }{
		{"success_rate.png", "Success rate by variant"},
		{"mean_tokens.png", "Mean estimated tokens by variant"},
	} {
		if _, err := os.Stat(filepath.Join(outDir, plot.file)); err == nil {
			fmt.Fprintf(b, "![%s](%s)\n\n", plot.caption, plot.file)
		}
	}
}

func writeSampleRows(b *strings.Builder, rows []evaluation.ResultRow) {
	if len(rows) == 0 {
		return
	}
	b.WriteString("### Sample rows\n\n")
	b.WriteString("| Trial | Variant | Prompt | Accuracy | Success | Tokens |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	n := len(rows)
	if n > maxSampleRows {
		n = maxSampleRows
	}
	for _, row := range rows[:n] {
		fmt.Fprintf(b, "| %d | %s | %s | %.2f | %t | %d |\n",
			row.Trial, row.Variant, truncateCell(row.Prompt), row.Accuracy, row.Success, row.Tokens)
	}
	b.WriteString("\n")
}

func writeDiscussion(b *strings.Builder, outcome *evaluation.Outcome, seed int64) {
	var single, composed *evaluation.Summary
	for i := range outcome.Summaries {
		switch outcome.Summaries[i].Variant {
		case evaluation.VariantSingle:
			single = &outcome.Summaries[i]
		case evaluation.VariantComposed:
			composed = &outcome.Summaries[i]
		}
	}
	if single == nil || composed == nil || single.Count == 0 || composed.Count == 0 {
		b.WriteString("Not enough data for a variant comparison.\n\n")
		return
	}

	var singleAcc, composedAcc []float64
	for _, row := range outcome.Rows {
		switch row.Variant {
		case evaluation.VariantSingle:
			singleAcc = append(singleAcc, row.Accuracy)
		case evaluation.VariantComposed:
			composedAcc = append(composedAcc, row.Accuracy)
		}
	}

	gain := statistics.NormalizedGain(single.MeanAccuracy, composed.MeanAccuracy)
	diff := statistics.DifferenceCI(singleAcc, composedAcc, 0.95, seed)
	verdict := "not statistically significant"
	if statistics.IsSignificant(diff) {
		verdict = "statistically significant"
	}
	fmt.Fprintf(b, "Composing the pipeline moved mean accuracy from %.3f to %.3f "+
		"(normalized gain %.3f) at %.0f vs %.0f mean estimated tokens per task. "+
		"The bootstrapped accuracy difference is %+.3f (95%% CI [%.3f, %.3f]), "+
		"%s at this sample size.\n\n",
		single.MeanAccuracy, composed.MeanAccuracy, gain, composed.MeanTokens, single.MeanTokens,
		diff.Mean, diff.Lower, diff.Upper, verdict)
}

func truncateCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return runewidth.Truncate(s, 60, "...")
}

func renderHTML(markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("reporting: render html: %w", err)
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">" +
		"<title>Evaluation report</title></head><body>\n")
	page.Write(buf.Bytes())
	page.WriteString("\n</body></html>\n")
	return page.Bytes(), nil
}

// AttachRunLogs copies existing run and safety logs into the artifacts
// directory, best effort. Missing logs are not an error.
func AttachRunLogs(outDir string, logPaths ...string) {
	artifactsDir := filepath.Join(outDir, "artifacts")
	for _, src := range logPaths {
		data, err := os.ReadFile(src)
		if err != nil {
			continue
		}
		dst := filepath.Join(artifactsDir, filepath.Base(src))
		_ = os.WriteFile(dst, data, 0o644)
	}
}

// NowISO re-exports the shared timestamp format for report metadata.
func NowISO() string { return runlog.NowISO() }

// Package reporting writes evaluation artifacts: CSV tables, bar charts,
// and a Markdown/HTML report.
package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"decompbench/internal/evaluation"
)

// WriteResultsCSV writes one row per (trial, variant, task) measurement.
func WriteResultsCSV(path string, rows []evaluation.ResultRow) error {
	records := [][]string{{"trial", "variant", "prompt", "accuracy", "success", "tokens"}}
	for _, row := range rows {
		records = append(records, []string{
			strconv.Itoa(row.Trial),
			row.Variant,
			row.Prompt,
			strconv.FormatFloat(row.Accuracy, 'f', 4, 64),
			strconv.FormatBool(row.Success),
			strconv.Itoa(row.Tokens),
		})
	}
	return writeCSV(path, records)
}

// WriteSummaryCSV writes one row per variant.
func WriteSummaryCSV(path string, summaries []evaluation.Summary) error {
	records := [][]string{{
		"variant", "count", "mean_accuracy", "success_rate", "mean_tokens",
		"accuracy_ci_lower", "accuracy_ci_upper",
	}}
	for _, s := range summaries {
		records = append(records, []string{
			s.Variant,
			strconv.Itoa(s.Count),
			strconv.FormatFloat(s.MeanAccuracy, 'f', 4, 64),
			strconv.FormatFloat(s.SuccessRate, 'f', 4, 64),
			strconv.FormatFloat(s.MeanTokens, 'f', 2, 64),
			strconv.FormatFloat(s.AccuracyCI.Lower, 'f', 4, 64),
			strconv.FormatFloat(s.AccuracyCI.Upper, 'f', 4, 64),
		})
	}
	return writeCSV(path, records)
}

// ReadResultsCSV loads rows previously written by WriteResultsCSV, so a
// report can be rebuilt from an existing results file.
func ReadResultsCSV(path string) ([]evaluation.ResultRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reporting: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reporting: parse %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("reporting: %s has no header row", path)
	}

	rows := make([]evaluation.ResultRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 6 {
			return nil, fmt.Errorf("reporting: row %d has %d columns, expected 6", i+2, len(rec))
		}
		trial, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("reporting: row %d trial: %w", i+2, err)
		}
		accuracy, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("reporting: row %d accuracy: %w", i+2, err)
		}
		success, err := strconv.ParseBool(rec[4])
		if err != nil {
			return nil, fmt.Errorf("reporting: row %d success: %w", i+2, err)
		}
		tokens, err := strconv.Atoi(rec[5])
		if err != nil {
			return nil, fmt.Errorf("reporting: row %d tokens: %w", i+2, err)
		}
		rows = append(rows, evaluation.ResultRow{
			Trial:    trial,
			Variant:  rec[1],
			Prompt:   rec[2],
			Accuracy: accuracy,
			Success:  success,
			Tokens:   tokens,
		})
	}
	return rows, nil
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("reporting: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("reporting: create %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("reporting: write %s: %w", path, err)
	}
	return nil
}

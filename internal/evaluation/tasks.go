// Package evaluation measures the composed weak/strong pipeline against a
// single-model baseline over a set of benign proxy tasks.
package evaluation

import (
	"fmt"
	"strings"

	"decompbench/internal/config"
)

// ProxyTask is one benign evaluation task. ExpectedKeywords drive the
// accuracy proxy; an empty list means any output counts as fully accurate.
type ProxyTask struct {
	Prompt           string
	ExpectedKeywords []string
}

// TasksFromSpec resolves the task list of an eval spec, either inline or
// from the referenced CSV file.
func TasksFromSpec(spec *config.EvalSpec) ([]ProxyTask, error) {
	if spec.TasksFrom != "" {
		return LoadTasksCSV(spec.TasksFrom)
	}
	tasks := make([]ProxyTask, 0, len(spec.Tasks))
	for _, t := range spec.Tasks {
		tasks = append(tasks, ProxyTask{Prompt: t.Prompt, ExpectedKeywords: t.ExpectedKeywords})
	}
	return tasks, nil
}

// Accuracy returns the fraction of expected keywords present in output,
// case-insensitively. Empty keywords are vacuously present and dropped
// before dividing; with no keywords left every output scores 1.0, so the
// proxy can only say "mentioned everything we asked about".
func Accuracy(output string, keywords []string) float64 {
	checked := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			checked = append(checked, kw)
		}
	}
	if len(checked) == 0 {
		return 1.0
	}
	lower := strings.ToLower(output)
	hits := 0
	for _, kw := range checked {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	return float64(hits) / float64(len(checked))
}

// keywordSeparator splits the keywords column of a task CSV.
const keywordSeparator = ";"

// LoadTasksCSV reads proxy tasks from a CSV file with a header row. The
// "prompt" column is required; the optional "keywords" column holds
// semicolon-separated expected keywords.
func LoadTasksCSV(path string) ([]ProxyTask, error) {
	rows, err := loadCSV(path)
	if err != nil {
		return nil, err
	}

	tasks := make([]ProxyTask, 0, len(rows))
	for i, row := range rows {
		prompt, ok := row["prompt"]
		if !ok || strings.TrimSpace(prompt) == "" {
			return nil, fmt.Errorf("evaluation: task row %d has no prompt", i+2)
		}
		var keywords []string
		for _, kw := range strings.Split(row["keywords"], keywordSeparator) {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		tasks = append(tasks, ProxyTask{Prompt: strings.TrimSpace(prompt), ExpectedKeywords: keywords})
	}
	return tasks, nil
}

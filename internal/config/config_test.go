package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEvalSpec_Complete(t *testing.T) {
	path := writeSpec(t, `
name: smoke
trials: 3
seed: 7
mock: true
models:
  single: gpt-4o-mini
  weak: gpt-4o-mini
  strong: gpt-4o
tasks:
  - prompt: "Summarize this safe article"
    expected_keywords: [summary, article]
  - prompt: "Plan a community workshop"
`)

	spec, err := LoadEvalSpec(path)
	require.NoError(t, err)
	require.Equal(t, "smoke", spec.Name)
	require.Equal(t, 3, spec.Trials)
	require.Equal(t, int64(7), spec.Seed)
	require.True(t, spec.Mock)
	require.Equal(t, "gpt-4o", spec.Models.Strong)
	require.Len(t, spec.Tasks, 2)
	require.Equal(t, []string{"summary", "article"}, spec.Tasks[0].ExpectedKeywords)
}

func TestLoadEvalSpec_Defaults(t *testing.T) {
	path := writeSpec(t, `
name: defaults
tasks:
  - prompt: "a task"
`)

	spec, err := LoadEvalSpec(path)
	require.NoError(t, err)
	require.Equal(t, 1, spec.Trials)
	require.Equal(t, int64(42), spec.Seed)
}

func TestLoadEvalSpec_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no tasks", "name: x\n", "inline tasks or a tasks_from"},
		{"both task sources", "tasks_from: t.csv\ntasks:\n  - prompt: p\n", "mutually exclusive"},
		{"empty prompt", "tasks:\n  - prompt: \"\"\n", "empty prompt"},
		{"negative trials", "trials: -1\ntasks:\n  - prompt: p\n", "trials"},
		{"not yaml", "{{nope", "parse"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadEvalSpec(writeSpec(t, tc.yaml))
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadEvalSpec_MissingFile(t *testing.T) {
	_, err := LoadEvalSpec(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

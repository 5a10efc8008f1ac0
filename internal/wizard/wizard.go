// Package wizard collects an evaluation spec interactively and renders a
// starter eval.yaml.
package wizard

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// EvalDraft holds all fields collected during the interactive wizard.
type EvalDraft struct {
	Name        string
	Description string
	Trials      int
	Mock        bool
	SingleModel string
	WeakModel   string
	StrongModel string
	Prompts     []string
}

var nameRE = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateName enforces kebab-case eval names.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if !nameRE.MatchString(name) {
		return fmt.Errorf("name must be kebab-case (letters, digits, hyphens)")
	}
	return nil
}

const evalYAMLTemplate = `name: {{ .Name }}
{{- if .Description }}
description: {{ .Description }}
{{- end }}
trials: {{ .Trials }}
seed: 42
mock: {{ .Mock }}
models:
  single: {{ .SingleModel }}
  weak: {{ .WeakModel }}
  strong: {{ .StrongModel }}
tasks:
{{- range .Prompts }}
  - prompt: "{{ . }}"
    expected_keywords: []
{{- end }}
`

// RunEvalWizard runs an interactive huh form to collect an eval spec draft.
// If initialName is non-empty, it pre-populates the name field.
func RunEvalWizard(in io.Reader, out io.Writer, initialName string) (*EvalDraft, error) {
	var (
		name       = initialName
		desc       string
		trialsRaw  = "3"
		mock       = true
		single     = "gpt-4o-mini"
		weak       = "gpt-4o-mini"
		strong     = "gpt-4o"
		promptsRaw string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Evaluation name").
				Description("A kebab-case name for this evaluation").
				Placeholder("my-eval").
				Value(&name).
				Validate(func(s string) error {
					return ValidateName(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Description").
				Description("What is this evaluation measuring? (optional)").
				Value(&desc),
			huh.NewInput().
				Title("Trials").
				Description("Repetitions over the task set").
				Value(&trialsRaw).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 1 {
						return fmt.Errorf("trials must be a positive integer")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Mock mode").
				Description("Run deterministically without any model API").
				Value(&mock),
			huh.NewInput().
				Title("Single baseline model").
				Value(&single),
			huh.NewInput().
				Title("Weak model (decomposer)").
				Value(&weak),
			huh.NewInput().
				Title("Strong model (solver)").
				Value(&strong),
			huh.NewText().
				Title("Task prompts").
				Description("One benign task prompt per line").
				Placeholder("Summarize this safe article about productivity").
				Value(&promptsRaw),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	trials, _ := strconv.Atoi(strings.TrimSpace(trialsRaw))

	return &EvalDraft{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(desc),
		Trials:      trials,
		Mock:        mock,
		SingleModel: strings.TrimSpace(single),
		WeakModel:   strings.TrimSpace(weak),
		StrongModel: strings.TrimSpace(strong),
		Prompts:     splitLines(promptsRaw),
	}, nil
}

// GenerateEvalYAML renders an eval.yaml from the given draft.
func GenerateEvalYAML(draft *EvalDraft) (string, error) {
	tmpl, err := template.New("evalyaml").Parse(evalYAMLTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, draft); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func splitLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

// Package config loads and validates the YAML evaluation spec consumed by
// the eval command.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EvalSpec represents a complete evaluation specification.
type EvalSpec struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Trials      int         `yaml:"trials"`
	Seed        int64       `yaml:"seed"`
	Mock        bool        `yaml:"mock,omitempty"`
	Models      ModelConfig `yaml:"models"`
	Tasks       []TaskSpec  `yaml:"tasks,omitempty"`
	TasksFrom   string      `yaml:"tasks_from,omitempty"`
}

// ModelConfig names the models for each pipeline variant. Blank names fall
// back to the backend's default model.
type ModelConfig struct {
	Single string `yaml:"single"`
	Weak   string `yaml:"weak"`
	Strong string `yaml:"strong"`
}

// TaskSpec is one inline proxy task.
type TaskSpec struct {
	Prompt           string   `yaml:"prompt"`
	ExpectedKeywords []string `yaml:"expected_keywords,omitempty"`
}

// LoadEvalSpec loads a spec from a YAML file.
func LoadEvalSpec(path string) (*EvalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var spec EvalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	spec.applyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return &spec, nil
}

func (s *EvalSpec) applyDefaults() {
	if s.Trials == 0 {
		s.Trials = 1
	}
	if s.Seed == 0 {
		s.Seed = 42
	}
}

// Validate checks that the spec is valid.
func (s *EvalSpec) Validate() error {
	if s.Trials < 1 {
		return fmt.Errorf("config: trials must be at least 1, got %d", s.Trials)
	}
	if len(s.Tasks) == 0 && s.TasksFrom == "" {
		return fmt.Errorf("config: spec needs inline tasks or a tasks_from file")
	}
	if len(s.Tasks) > 0 && s.TasksFrom != "" {
		return fmt.Errorf("config: tasks and tasks_from are mutually exclusive")
	}
	for i, task := range s.Tasks {
		if task.Prompt == "" {
			return fmt.Errorf("config: task %d has an empty prompt", i)
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"strings"

	"decompbench/internal/client"
	"decompbench/internal/llm"
	"decompbench/internal/safety"
)

// newPolicy builds the pipeline-side safety policy with its audit log.
func newPolicy(eventLogPath string) *safety.Policy {
	return safety.NewPolicy(safety.WithEventSink(safety.NewFileSink(eventLogPath)))
}

// newModelClient builds a client for modelName. Mock mode needs no backend;
// otherwise model names prefixed "gemini" go to the Gemini API and everything
// else goes through the Copilot CLI.
func newModelClient(ctx context.Context, policy *safety.Policy, modelName string, mock bool) (*client.Client, func() error, error) {
	name := modelName
	if name == "" {
		name = "default"
	}

	if mock {
		return client.New(name, policy, nil, true), nil, nil
	}

	if strings.HasPrefix(strings.ToLower(name), "gemini") {
		gen, err := llm.NewGeminiGenerator(ctx, name)
		if err != nil {
			return nil, nil, fmt.Errorf("build %s client: %w", name, err)
		}
		return client.New(name, policy, gen, false), nil, nil
	}

	gen := llm.NewCopilotGenerator(modelName, nil)
	return client.New(name, policy, gen, false), gen.Close, nil
}

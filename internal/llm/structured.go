package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sethvargo/go-retry"

	"decompbench/internal/client"
)

const (
	structuredMaxTokens   = 1024
	structuredTemperature = 0.7
	structuredMaxRetries  = 2
)

// GenerateJSON asks gen for a JSON document matching schema and decodes it
// into out. Malformed or non-conforming output is retried with exponential
// backoff; the last failure is returned once attempts are exhausted.
func GenerateJSON(ctx context.Context, gen client.Generator, prompt string, schema *jsonschema.Schema, out any) error {
	instr := prompt + "\n\nReturn ONLY a single JSON object matching the required schema. No prose, no code fences."

	backoff := retry.WithMaxRetries(structuredMaxRetries, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		text, err := gen.Generate(ctx, instr, structuredMaxTokens, structuredTemperature)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("llm: structured generate: %w", err))
		}

		raw := stripFences(text)

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return retry.RetryableError(fmt.Errorf("llm: structured output is not JSON: %w", err))
		}
		if schema != nil {
			if err := schema.Validate(v); err != nil {
				return retry.RetryableError(fmt.Errorf("llm: structured output failed schema: %w", err))
			}
		}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			return retry.RetryableError(fmt.Errorf("llm: decode structured output: %w", err))
		}
		return nil
	})
}

// stripFences removes a markdown code fence around a JSON payload. Models
// add these even when told not to.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

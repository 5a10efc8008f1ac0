package llm

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

// GeminiGenerator satisfies the client generation capability using the
// official genai client. Reads GEMINI_API_KEY from the environment via the
// client's own config resolution.
type GeminiGenerator struct {
	cli   *genai.Client
	model string
}

// NewGeminiGenerator builds a generator for the given Gemini model ID.
func NewGeminiGenerator(ctx context.Context, model string) (*GeminiGenerator, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiGenerator{cli: cli, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	temp := float32(temperature)
	cfg.Temperature = &temp

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		cfg,
	)
	if err != nil {
		return "", fmt.Errorf("llm: gemini generate: %w", err)
	}
	return firstText(resp)
}

// firstText extracts the first candidate's text, treating an empty response
// as an error rather than silently returning "".
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llm: gemini returned no content")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// GeminiModerator flags text as unsafe when the Gemini API refuses to
// process it on safety grounds. Used as the remote moderation stage for
// dataset generation.
type GeminiModerator struct {
	cli   *genai.Client
	model string
}

// NewGeminiModerator builds a moderator for the given Gemini model ID.
func NewGeminiModerator(ctx context.Context, model string) (*GeminiModerator, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiModerator{cli: cli, model: model}, nil
}

// Moderate reports whether text was flagged. A prompt-level block or a
// safety finish reason counts as flagged; transport errors are returned so
// the caller's retry policy can decide.
func (m *GeminiModerator) Moderate(ctx context.Context, text string) (bool, error) {
	resp, err := m.cli.Models.GenerateContent(ctx, m.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: "Briefly restate the following text:\n" + text}}}},
		&genai.GenerateContentConfig{},
	)
	if err != nil {
		return false, fmt.Errorf("llm: gemini moderate: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return true, nil
	}
	for _, cand := range resp.Candidates {
		if cand.FinishReason == genai.FinishReasonSafety {
			return true, nil
		}
	}
	return false, nil
}

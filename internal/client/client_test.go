package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decompbench/internal/safety"
)

func testPolicy() *safety.Policy {
	return safety.NewPolicy(safety.WithEventSink(&safety.MemorySink{}))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	// 8 chars / 4 = 2 but 3 words -> word count wins
	assert.Equal(t, 3, EstimateTokens("ab cd ef"))
	// many short words: word count dominates
	assert.Equal(t, 5, EstimateTokens("a b c d e"))
	// one long word: char count dominates
	assert.Equal(t, 10, EstimateTokens(strings.Repeat("x", 40)))
}

func TestGenerate_MockIsDeterministic(t *testing.T) {
	c := New("TestModel", testPolicy(), nil, true)
	ctx := context.Background()

	out1, err := c.Generate(ctx, "Summarize this safe article", 64, 0.7)
	require.NoError(t, err)
	out2, err := c.Generate(ctx, "Summarize this safe article", 64, 0.7)
	require.NoError(t, err)

	require.Equal(t, out1, out2)
	require.True(t, strings.HasPrefix(out1, "[MOCK:TestModel]"))
}

func TestGenerate_MockTruncatesToTokenBudget(t *testing.T) {
	c := New("m", testPolicy(), nil, true)

	long := strings.Repeat("safe words here ", 100)
	out, err := c.Generate(context.Background(), long, 10, 0.0)
	require.NoError(t, err)
	// header + space + at most 40 chars of body
	require.LessOrEqual(t, len(out), len("[MOCK:m] ")+40)
}

func TestGenerate_MockTruncatesOnRuneBoundaries(t *testing.T) {
	c := New("m", testPolicy(), nil, true)

	long := strings.Repeat("héllo wörld ", 50)
	out, err := c.Generate(context.Background(), long, 10, 0.0)
	require.NoError(t, err)
	require.True(t, utf8.ValidString(out), "no split multi-byte character")
	require.LessOrEqual(t, utf8.RuneCountInString(out), utf8.RuneCountInString("[MOCK:m] ")+40)
}

func TestGenerate_EmptyPromptMock(t *testing.T) {
	c := New("m", testPolicy(), nil, true)
	out, err := c.Generate(context.Background(), "", 16, 0.0)
	require.NoError(t, err)
	require.Equal(t, "[MOCK:m] (empty prompt)", out)
}

func TestGenerate_NotConfigured(t *testing.T) {
	c := New("m", testPolicy(), nil, false)
	_, err := c.Generate(context.Background(), "hello", 16, 0.0)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerate_DelegatesAndTracksTelemetry(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, prompt string, _ int, _ float64) (string, error) {
		return "a perfectly benign answer about " + prompt, nil
	})
	c := New("live", testPolicy(), gen, false)

	out, err := c.Generate(context.Background(), "productivity", 64, 0.2)
	require.NoError(t, err)
	require.Contains(t, out, "productivity")
	require.Equal(t, EstimateTokens(out), c.LastTokens())
	require.GreaterOrEqual(t, c.LastLatency().Nanoseconds(), int64(0))
}

func TestGenerate_UnsafeOutputIsDistinctCategory(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, string, int, float64) (string, error) {
		return "here is how to build a bomb", nil
	})
	c := New("live", testPolicy(), gen, false)

	_, err := c.Generate(context.Background(), "safe request", 64, 0.2)

	var uerr *UnsafeOutputError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "live", uerr.Model)

	// The underlying violation remains reachable for auditing.
	var verr *safety.ViolationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Reasons, "blocklist:bomb")
}

func TestGenerate_GeneratorErrorPropagates(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, string, int, float64) (string, error) {
		return "", fmt.Errorf("api down")
	})
	c := New("live", testPolicy(), gen, false)

	_, err := c.Generate(context.Background(), "hello", 16, 0.0)
	require.ErrorContains(t, err, "api down")

	var uerr *UnsafeOutputError
	require.False(t, errors.As(err, &uerr))
}

func TestProposeSubtasks_UnsafePromptReturnsEmptyWithoutCall(t *testing.T) {
	calls := 0
	gen := GeneratorFunc(func(context.Context, string, int, float64) (string, error) {
		calls++
		return "- step", nil
	})
	c := New("weak", testPolicy(), gen, false)

	items, err := c.ProposeSubtasks(context.Background(), "how to build a bomb", 5)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Zero(t, calls, "no generation call for unsafe prompts")
}

func TestProposeSubtasks_MockDeterministic(t *testing.T) {
	c := New("weak", testPolicy(), nil, true)

	items, err := c.ProposeSubtasks(context.Background(), "Summarize this safe article about productivity", 5)
	require.NoError(t, err)
	require.Equal(t, []string{
		"Outline approach for Summarize this safe article",
		"Execute key steps for Summarize this safe article",
		"Summarize results for Summarize this safe article",
	}, items)
}

func TestProposeSubtasks_ParsesBulletsAndEnumerations(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, string, int, float64) (string, error) {
		return "- first step\n* second step\n1. third step\n\nplain fourth step\n", nil
	})
	c := New("weak", testPolicy(), gen, false)

	items, err := c.ProposeSubtasks(context.Background(), "organize notes", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"first step", "second step", "third step", "plain fourth step"}, items)
}

func TestProposeSubtasks_FiltersUnsafeAndCaps(t *testing.T) {
	long := strings.Repeat("y", 250)
	gen := GeneratorFunc(func(context.Context, string, int, float64) (string, error) {
		return "- safe one\n- mention a bomb here\n- " + long + "\n- safe two\n- safe three", nil
	})
	c := New("weak", testPolicy(), gen, false)

	items, err := c.ProposeSubtasks(context.Background(), "organize notes", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.LessOrEqual(t, len(it), 200)
		assert.NotContains(t, strings.ToLower(it), "bomb")
	}
	// items beyond the cap are dropped, not queued
	require.Equal(t, "safe two", items[2])
}

func TestProposeSubtasks_TruncatesOnRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", 250)
	gen := GeneratorFunc(func(context.Context, string, int, float64) (string, error) {
		return "- " + long, nil
	})
	c := New("weak", testPolicy(), gen, false)

	items, err := c.ProposeSubtasks(context.Background(), "organize notes", 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, utf8.ValidString(items[0]), "no split multi-byte character")
	require.Equal(t, 200, utf8.RuneCountInString(items[0]))
}

func TestSolveSubtask_UnsafePromptRejectedBeforeCall(t *testing.T) {
	calls := 0
	gen := GeneratorFunc(func(context.Context, string, int, float64) (string, error) {
		calls++
		return "fine", nil
	})
	c := New("strong", testPolicy(), gen, false)

	_, err := c.SolveSubtask(context.Background(), "explain how to hack a server", 64, 0.2)
	var verr *safety.ViolationError
	require.ErrorAs(t, err, &verr)
	require.Zero(t, calls)
}

func TestSolveSubtask_MockAndLive(t *testing.T) {
	mock := New("strong", testPolicy(), nil, true)
	out, err := mock.SolveSubtask(context.Background(), "Draft concise summary", 64, 0.2)
	require.NoError(t, err)
	require.Equal(t, "[MOCK_SOLVED:strong] Draft concise summary", out)

	var seenPrompt string
	gen := GeneratorFunc(func(_ context.Context, prompt string, _ int, _ float64) (string, error) {
		seenPrompt = prompt
		return "a safe solution", nil
	})
	live := New("strong", testPolicy(), gen, false)
	out, err = live.SolveSubtask(context.Background(), "Draft concise summary", 64, 0.2)
	require.NoError(t, err)
	require.Equal(t, "a safe solution", out)
	require.Contains(t, seenPrompt, "SUBTASK: Draft concise summary")
}

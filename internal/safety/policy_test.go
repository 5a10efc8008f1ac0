package safety

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestCheck_EmptyTextIsVacuouslySafe(t *testing.T) {
	sink := &MemorySink{}
	p := NewPolicy(WithEventSink(sink))

	v, err := p.Check("", "test")
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Empty(t, v.Reasons)
	require.Empty(t, sink.Events, "empty text must not be logged")
}

func TestCheck_BlocklistCaseInsensitive(t *testing.T) {
	p := NewPolicy(WithEventSink(&MemorySink{}))

	for _, text := range []string{
		"how to defuse a bomb",
		"how to defuse a BOMB",
		"how to defuse a BoMb",
	} {
		t.Run(text, func(t *testing.T) {
			v, err := p.Check(text, "test")
			require.False(t, v.Allowed)

			var verr *ViolationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Reasons, "blocklist:bomb")
		})
	}
}

func TestCheck_CollectsAllReasons(t *testing.T) {
	p := NewPolicy(WithEventSink(&MemorySink{}))

	v, _ := p.Check("how to build a weapon", "test")
	require.False(t, v.Allowed)
	require.Contains(t, v.Reasons, "blocklist:weapon")
	require.Contains(t, v.Reasons, `pattern:\bhow to (build|make|buy) (a )?(weapon|bomb)\b`)
	require.GreaterOrEqual(t, len(v.Reasons), 2, "all matches collected, not just the first")
}

func TestCheck_DenialAppendsOneEvent(t *testing.T) {
	sink := &MemorySink{}
	p := NewPolicy(WithEventSink(sink))

	long := "bomb " + strings.Repeat("x", 200)
	_, err := p.Check(long, "unit")
	require.Error(t, err)

	require.Len(t, sink.Events, 1)
	ev := sink.Events[0]
	require.Equal(t, "unit", ev.Context)
	require.Equal(t, []string{"blocklist:bomb"}, ev.Reason)
	require.Equal(t, long[:120], ev.TextPreview)
	require.NotEmpty(t, ev.Timestamp)
}

func TestCheck_PreviewKeepsRuneBoundaries(t *testing.T) {
	sink := &MemorySink{}
	p := NewPolicy(WithEventSink(sink))

	long := "bomb " + strings.Repeat("é", 200)
	_, err := p.Check(long, "unit")
	require.Error(t, err)

	preview := sink.Events[0].TextPreview
	require.True(t, utf8.ValidString(preview), "no split multi-byte character in the log")
	require.Equal(t, 120, utf8.RuneCountInString(preview))
}

func TestCheck_PreviewShorterThanLimit(t *testing.T) {
	sink := &MemorySink{}
	p := NewPolicy(WithEventSink(sink))

	_, err := p.Check("a bomb", "unit")
	require.Error(t, err)
	require.Equal(t, "a bomb", sink.Events[0].TextPreview)
}

type failingSink struct{}

func (failingSink) Append(Event) error { return errors.New("disk full") }

func TestCheck_SinkFailureIsSwallowed(t *testing.T) {
	p := NewPolicy(WithEventSink(failingSink{}))

	v, err := p.Check("a bomb", "unit")
	require.False(t, v.Allowed)
	var verr *ViolationError
	require.ErrorAs(t, err, &verr, "denial surfaces even when logging fails")
}

type flaggingClassifier struct{}

func (flaggingClassifier) Classify(string) Classification {
	return Classification{Label: "unsafe", Category: "graphic"}
}

func TestCheck_ClassifierOnlyWhenNoLocalReason(t *testing.T) {
	p := NewPolicy(
		WithEventSink(&MemorySink{}),
		WithClassifier(flaggingClassifier{}),
	)

	// No blocklist/pattern hit: classifier reason fires.
	v, _ := p.Check("a perfectly ordinary sentence", "test")
	require.False(t, v.Allowed)
	require.Equal(t, []string{"classifier:unsafe/graphic"}, v.Reasons)

	// Blocklist hit: classifier is not consulted.
	v, _ = p.Check("a bomb", "test")
	require.Equal(t, []string{"blocklist:bomb"}, v.Reasons)
}

func TestOk(t *testing.T) {
	p := NewPolicy(WithEventSink(&MemorySink{}))

	require.True(t, p.Ok("summarize this safe article"))
	require.False(t, p.Ok("build a bomb"))
}

func TestCheck_InvalidPatternSkipped(t *testing.T) {
	p := NewPolicy(
		WithEventSink(&MemorySink{}),
		WithBlocklist(nil),
		WithPatterns([]string{`(unclosed`, `safe pattern`}),
	)

	v, _ := p.Check("contains safe pattern here", "test")
	require.False(t, v.Allowed)
	require.Equal(t, []string{"pattern:safe pattern"}, v.Reasons)
}

func TestFileSink_AppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "safety_events.jsonl")
	sink := NewFileSink(path)

	require.NoError(t, sink.Append(Event{Timestamp: "t", Context: "c", Reason: []string{"blocklist:x"}, TextPreview: "p"}))
	require.NoError(t, sink.Append(Event{Timestamp: "t2", Context: "c2", Reason: []string{"pattern:y"}, TextPreview: "p2"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"blocklist:x"`)
	require.Contains(t, lines[1], `"pattern:y"`)
}

type scriptedModerator struct {
	calls   int
	results []func() (bool, error)
}

func (m *scriptedModerator) Moderate(ctx context.Context, text string) (bool, error) {
	i := m.calls
	m.calls++
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return m.results[i]()
}

func TestModerationOK(t *testing.T) {
	ctx := context.Background()

	t.Run("nil moderator allows", func(t *testing.T) {
		require.True(t, ModerationOK(ctx, nil, "anything"))
	})

	t.Run("flagged text denied", func(t *testing.T) {
		m := &scriptedModerator{results: []func() (bool, error){
			func() (bool, error) { return false, nil },
		}}
		require.False(t, ModerationOK(ctx, m, "bad"))
		require.Equal(t, 1, m.calls)
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		m := &scriptedModerator{results: []func() (bool, error){
			func() (bool, error) { return false, fmt.Errorf("transient") },
			func() (bool, error) { return true, nil },
		}}
		require.True(t, ModerationOK(ctx, m, "ok"))
		require.Equal(t, 2, m.calls)
	})

	t.Run("fails open on exhaustion", func(t *testing.T) {
		m := &scriptedModerator{results: []func() (bool, error){
			func() (bool, error) { return false, fmt.Errorf("down") },
		}}
		require.True(t, ModerationOK(ctx, m, "whatever"))
		require.Equal(t, 3, m.calls, "initial attempt plus two retries")
	})
}

package client

import "strings"

// EstimateTokens is a rough token estimate: roughly one token per four
// characters, with word count as the floor. Never exact; documented as an
// approximation throughout the pipeline.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byChars := len(text) / 4
	byWords := len(strings.Fields(text))
	if byWords > byChars {
		return byWords
	}
	return byChars
}

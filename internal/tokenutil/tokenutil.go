// Package tokenutil estimates LLM token counts for budget accounting
// (skill activation limits, context trimming) using the cl100k_base BPE
// tiktoken encoding when available, falling back to a rune/word heuristic
// so callers never fail outright on an encoding-load error.
package tokenutil

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

var encoding *tiktoken.Tiktoken

func init() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err == nil {
		encoding = enc
	}
}

// CountTokens returns the tiktoken cl100k_base token count for text, or
// EstimateFast's heuristic if the encoding failed to load.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return EstimateFast(text)
}

// EstimateFast is a tokenizer-free token estimate: the larger of a
// rough 4-characters-per-token guess and a word count, since natural-language
// text rarely tokenizes below one token per word.
func EstimateFast(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	words := len(strings.Fields(trimmed))
	byRunes := len([]rune(trimmed)) / 4
	if words > byRunes {
		return words
	}
	return byRunes
}

// TruncateToTokens truncates text to approximately maxTokens tokens,
// appending an ellipsis marker when truncation occurs. maxTokens <= 0 is
// a no-op.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	if CountTokens(text) <= maxTokens {
		return text
	}
	if encoding != nil {
		tokens := encoding.Encode(text, nil, nil)
		if len(tokens) <= maxTokens {
			return text
		}
		return encoding.Decode(tokens[:maxTokens]) + "..."
	}
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ") + "..."
}

// Package engine provides agent orchestration functionality.
// This file contains token counting interfaces and implementations.

package engine

import (
	"log"
	"strings"
)

// Tokenizer provides token counting for text.
// Different models use different tokenization schemes, so the model name is required.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text for the
	// specified model. Returns an error if tokenization fails.
	CountTokens(text string, model string) (int, error)
}

// EstimateTokens provides a rough token count estimation.
// Uses a simple heuristic: ~4 characters per token for English/code.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := len([]rune(text))

	// Whitespace-heavy text has fewer tokens per character.
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")

	estimated := (charCount / 4) + (whitespaceCount / 6)
	if estimated < 1 {
		return 1
	}

	return estimated
}

// DefaultTokenizer uses estimation when no model-specific tokenizer is available.
type DefaultTokenizer struct{}

// CountTokens implements Tokenizer using estimation.
func (t DefaultTokenizer) CountTokens(text string, model string) (int, error) {
	return EstimateTokens(text), nil
}

// Counter wraps a Tokenizer with the fallback behavior the rest of the
// engine relies on: Count never fails and returns 0 for empty input. On
// tokenizer failure it approximates with ceil(len/4) and logs a warning.
type Counter struct {
	Tokenizer Tokenizer
	Model     string
}

// NewCounter returns a Counter for the given model, defaulting to estimation.
func NewCounter(model string) *Counter {
	return &Counter{Tokenizer: DefaultTokenizer{}, Model: model}
}

// Count returns the token count of text. It never returns an error.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	tok := c.Tokenizer
	if tok == nil {
		tok = DefaultTokenizer{}
	}
	n, err := tok.CountTokens(text, c.Model)
	if err != nil {
		// ceil(len/4) approximation keeps accounting monotone even when
		// the tokenizer misbehaves.
		n = (len(text) + 3) / 4
		log.Printf("tokenizer failed for model %s, approximating %d tokens: %v", c.Model, n, err)
	}
	return n
}

// CountMessages counts tokens for a slice of chat messages, including a
// small per-message formatting overhead.
func (c *Counter) CountMessages(messages []ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += c.Count(string(msg.Role))
		total += c.Count(msg.Content)
		total += 4
	}
	return total
}

// Package budget provides token budget estimation and context trimming for
// the RAG answer chain. Because the chain supports multiple LLM backends
// with different tokenizers, this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters (English prose and
// code). This deliberately under-estimates token counts to leave headroom
// for model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B,
	// GPT-3.5) while leaving room for the output. Override via
	// RAG_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimContext drops retrieved context entries from the tail of contexts
// until reserved + the remaining contexts fit within maxTokens. contexts
// must be ordered best-first (ascending distance), so the entries dropped
// are always the lowest-ranked ones. reserved is the token estimate of the
// parts of the prompt that cannot be trimmed (system prompt, question,
// answer headroom).
//
// If even the single best context exceeds the budget an empty slice is
// returned; callers should answer without retrieved context and say so.
func TrimContext(contexts []string, reserved, maxTokens int) []string {
	total := reserved
	for i, c := range contexts {
		total += Estimate(c)
		if total > maxTokens {
			return contexts[:i]
		}
	}
	return contexts
}

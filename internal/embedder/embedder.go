// Package embedder converts text into dense vector embeddings. Each
// implementation talks to a different backend (Ollama, OpenAI, Azure OpenAI,
// Gemini); the Ollama and OpenAI-style backends speak plain HTTP with no
// additional SDK dependencies.
package embedder

import "context"

// Embedder converts a batch of texts into their embeddings. The returned
// slice is parallel to the input slice. Implementations are safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

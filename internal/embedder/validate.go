package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// chatModelFragments identify chat/completion model names that are not
// embedding models. A match in EMBEDDING_MODEL earns a warning, since a chat
// model silently produces useless vectors on some backends.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen",
	"solar", "vicuna", "falcon", "yi-",
}

// looksLikeChatModel reports whether the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range chatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// requiredCredentials maps each remote backend to the env vars that can
// satisfy its credential requirement, checked in order.
var requiredCredentials = map[string][][2]string{
	"openai": {{"EMBEDDING_API_KEY", "OPENAI_API_KEY"}},
	"azure": {
		{"EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY"},
		{"EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT"},
	},
	"gemini": {{"EMBEDDING_API_KEY", "GOOGLE_API_KEY"}},
}

// Preflight validates the embedding environment before any work starts, so a
// broken setup fails at startup instead of mid-run. Missing credentials are
// errors; suspicious-but-workable configuration gets a warning.
func Preflight(log *slog.Logger) error {
	backend := envOr("EMBEDDING_PROVIDER", "MODEL_PROVIDER")
	if backend == "" {
		backend = "ollama"
	}

	// A non-local backend inherited from MODEL_PROVIDER is worth flagging:
	// the operator may not have meant to pay for remote embeddings.
	if backend != "ollama" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set — inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure/gemini) to be explicit"),
		)
	}

	if backend == "bedrock" {
		return fmt.Errorf("embedder: bedrock embedding is not yet implemented — set EMBEDDING_PROVIDER to ollama, openai, azure, or gemini")
	}

	for _, pair := range requiredCredentials[backend] {
		if envOr(pair[0], pair[1]) == "" {
			return fmt.Errorf("embedder: %s backend requires %s or %s", backend, pair[1], pair[0])
		}
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}

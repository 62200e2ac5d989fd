package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Default embedding models per backend.
const (
	defaultOllamaModel  = "nomic-embed-text"
	defaultOpenAIModel  = "text-embedding-3-small"
	defaultGeminiModel  = "text-embedding-004"
	defaultBedrockModel = "amazon.titan-embed-text-v2"
)

// Known output dimensions for the default models. Other models may differ;
// EMBEDDING_DIMENSIONS overrides.
var defaultDims = map[string]int{
	"ollama": 768,  // nomic-embed-text
	"openai": 1536, // text-embedding-3-small
	"azure":  1536,
	"gemini": 768, // text-embedding-004
}

// DefaultDimensions returns the expected vector size for a backend, for
// callers that must pre-size a collection before the first embed call.
// EMBEDDING_DIMENSIONS always wins when set. Prefer [Probe] when a live
// backend is reachable.
func DefaultDimensions(backend string) int {
	if v := envInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	if d, ok := defaultDims[backend]; ok {
		return d
	}
	return defaultDims["openai"]
}

// NewFromEnv builds an Embedder from the environment. Embedding-specific
// variables override, and anything unset inherits from the chat provider's
// configuration so a single MODEL_PROVIDER + credential pair configures both:
//
//	EMBEDDING_PROVIDER    falls back to MODEL_PROVIDER, then "ollama"
//	EMBEDDING_MODEL       falls back to the backend's default model
//	EMBEDDING_API_KEY     falls back to the backend's native key variable
//	EMBEDDING_ENDPOINT    falls back to the backend's native endpoint
//	EMBEDDING_DIMENSIONS  falls back to the model's known output size
func NewFromEnv(ctx context.Context) (Embedder, error) {
	backend := envOr("EMBEDDING_PROVIDER", "MODEL_PROVIDER")
	if backend == "" {
		backend = "ollama"
	}

	switch backend {
	case "ollama":
		host := envOr("EMBEDDING_ENDPOINT", "OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: modelOr(defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := envOr("EMBEDDING_API_KEY", "OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := os.Getenv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      modelOr(defaultOpenAIModel),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", defaultDims["openai"]),
		}), nil

	case "azure":
		apiKey := envOr("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := envOr("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint + "/openai",
			APIKey:     apiKey,
			Model:      modelOr(defaultOpenAIModel),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", defaultDims["azure"]),
			Azure:      true,
			APIVersion: apiVersion,
		}), nil

	case "gemini":
		apiKey := envOr("EMBEDDING_API_KEY", "GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     apiKey,
			Model:      modelOr(defaultGeminiModel),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		})

	case "bedrock":
		// TODO: BedrockEmbedder once the titan embed API is wired up.
		return nil, fmt.Errorf("embedder: bedrock embedding support is not yet implemented (model: %s)", defaultBedrockModel)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, azure, gemini, bedrock", backend)
	}
}

// Probe embeds a short sentinel text and returns the vector length the
// backend actually produces. Collection creation should use this over
// DefaultDimensions when a live backend is available, since model defaults
// drift and a mismatched collection rejects every upsert.
func Probe(ctx context.Context, e Embedder) (int, error) {
	vecs, err := e.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("embedder: dimension probe failed: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("embedder: dimension probe returned an empty vector")
	}
	return len(vecs[0]), nil
}

// envOr returns the first non-empty value among the named env vars.
func envOr(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// modelOr resolves EMBEDDING_MODEL with a backend-specific default.
func modelOr(fallback string) string {
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		return v
	}
	return fallback
}

// envInt parses the named env var as an integer, returning fallback when
// unset or malformed.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// Package config provides YAML-based configuration for semdex.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. SEMDEX_CONFIG environment variable
//  3. ~/.semdex/config.yaml
//  4. ./semdex.yaml
//
// If no file is found the system runs entirely from env vars. After Load has
// projected YAML values into the environment, Resolve reads the environment
// into a validated [Settings] that the rest of the process consumes.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// VectorDB configures the vector store connection.
	VectorDB VectorDBConfig `yaml:"vector_db"`

	// Collections names the default target collections.
	Collections CollectionsConfig `yaml:"collections"`

	// Ingest configures chunking and batching for ingestion runs.
	Ingest IngestConfig `yaml:"ingest"`

	// Retrieval configures search behavior and distance calibration.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Model configures the LLM chat model used by `semdex rag`.
	Model ModelConfig `yaml:"model"`

	// RAG configures the retrieval-augmented answer chain.
	RAG RAGConfig `yaml:"rag"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Journal configures the ingestion run journal.
	Journal JournalConfig `yaml:"journal"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// VectorDBConfig holds vector store connection settings.
type VectorDBConfig struct {
	// Host is the vector store hostname.
	Host string `yaml:"host"`
	// Port is the vector store gRPC port.
	Port int `yaml:"port"`
	// APIKey is the vector store API key. Prefer env var VECTOR_DB_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the vector store connection.
	TLS bool `yaml:"tls"`
}

// CollectionsConfig names the default collections commands operate on.
type CollectionsConfig struct {
	// Default is the collection used when no --collection flag is given.
	Default string `yaml:"default"`
	// Agents is the collection agent-definition documents go into.
	Agents string `yaml:"agents"`
}

// IngestConfig holds chunking and batching settings.
type IngestConfig struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the character overlap carried between chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
	// BatchSize is the number of chunks per upsert batch.
	BatchSize int `yaml:"batch_size"`
	// AgentChunkSize is the chunk length for agent-definition documents.
	AgentChunkSize int `yaml:"agent_chunk_size"`
	// AgentChunkOverlap is the overlap for agent-definition documents.
	AgentChunkOverlap int `yaml:"agent_chunk_overlap"`
	// AgentBatchSize is the upsert batch size for agent ingestion.
	AgentBatchSize int `yaml:"agent_batch_size"`
	// Extensions is a comma-separated list of file extensions to ingest.
	Extensions string `yaml:"extensions"`
	// ExcludeDirs is a comma-separated list of directory names to skip.
	ExcludeDirs string `yaml:"exclude_dirs"`
}

// RetrievalConfig holds search settings.
type RetrievalConfig struct {
	// Calibration holds the advisory distance band cutoffs.
	Calibration CalibrationConfig `yaml:"calibration"`
}

// CalibrationConfig holds ascending distance cutoffs for result quality
// bands. Distances below Excellent are labeled "excellent", below Good
// "good", below Acceptable "acceptable", and everything else "poor".
// Two calibrations have been observed for the same embedding model
// (0.8/1.0/1.2 and 0.5/0.7/0.9), so the cutoffs are configuration rather
// than constants.
type CalibrationConfig struct {
	// Excellent is the upper distance bound of the "excellent" band.
	Excellent float64 `yaml:"excellent"`
	// Good is the upper distance bound of the "good" band.
	Good float64 `yaml:"good"`
	// Acceptable is the upper distance bound of the "acceptable" band.
	Acceptable float64 `yaml:"acceptable"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// ModelConfig holds LLM chat model settings for the RAG answer chain.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, bedrock, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`

	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Azure holds Azure OpenAI-specific settings.
	Azure AzureConfig `yaml:"azure"`

	// Bedrock holds AWS Bedrock-specific settings.
	Bedrock BedrockConfig `yaml:"bedrock"`

	// Gemini holds Google Gemini-specific settings.
	Gemini GeminiConfig `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// BedrockConfig holds AWS Bedrock provider settings.
type BedrockConfig struct {
	// Region is the AWS region for Bedrock.
	Region string `yaml:"region"`
	// ModelID is the Bedrock model identifier.
	ModelID string `yaml:"model_id"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// RAGConfig holds answer chain settings.
type RAGConfig struct {
	// MinConfidence is the minimum confidence (1 - distance) a retrieved
	// chunk needs to enter the answer context.
	MinConfidence float64 `yaml:"min_confidence"`
	// MaxContextTokens caps the estimated token size of the answer context.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var SEMDEX_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// JournalConfig holds ingestion journal settings.
type JournalConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"VECTOR_DB_HOST", func(c *Config) string { return c.VectorDB.Host }},
	{"VECTOR_DB_PORT", func(c *Config) string { return intStr(c.VectorDB.Port) }},
	{"VECTOR_DB_API_KEY", func(c *Config) string { return c.VectorDB.APIKey }},
	{"VECTOR_DB_TLS", func(c *Config) string { return boolStr(c.VectorDB.TLS) }},
	{"SEMDEX_COLLECTION", func(c *Config) string { return c.Collections.Default }},
	{"SEMDEX_AGENTS_COLLECTION", func(c *Config) string { return c.Collections.Agents }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingest.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingest.ChunkOverlap) }},
	{"BATCH_SIZE", func(c *Config) string { return intStr(c.Ingest.BatchSize) }},
	{"AGENT_CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingest.AgentChunkSize) }},
	{"AGENT_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingest.AgentChunkOverlap) }},
	{"AGENT_BATCH_SIZE", func(c *Config) string { return intStr(c.Ingest.AgentBatchSize) }},
	{"INGEST_EXTENSIONS", func(c *Config) string { return c.Ingest.Extensions }},
	{"INGEST_EXCLUDE_DIRS", func(c *Config) string { return c.Ingest.ExcludeDirs }},
	{"CALIBRATION_EXCELLENT", func(c *Config) string { return floatStr(c.Retrieval.Calibration.Excellent) }},
	{"CALIBRATION_GOOD", func(c *Config) string { return floatStr(c.Retrieval.Calibration.Good) }},
	{"CALIBRATION_ACCEPTABLE", func(c *Config) string { return floatStr(c.Retrieval.Calibration.Acceptable) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"AWS_REGION", func(c *Config) string { return c.Model.Bedrock.Region }},
	{"BEDROCK_MODEL_ID", func(c *Config) string { return c.Model.Bedrock.ModelID }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"RAG_MIN_CONFIDENCE", func(c *Config) string { return floatStr(c.RAG.MinConfidence) }},
	{"RAG_MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.RAG.MaxContextTokens) }},
	{"SEMDEX_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"SEMDEX_JOURNAL_DB", func(c *Config) string { return c.Journal.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("SEMDEX_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".semdex", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("semdex.yaml"); err == nil {
		return "semdex.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	return floatStr(float64(v))
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

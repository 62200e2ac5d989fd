package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults applied by Resolve when neither YAML nor env supplies a value.
const (
	// DefaultVectorDBHost is the vector store host used when
	// VECTOR_DB_HOST is unset.
	DefaultVectorDBHost = "localhost"
	// DefaultVectorDBPort is the vector store port used when
	// VECTOR_DB_PORT is unset.
	DefaultVectorDBPort = 9500

	// DefaultCollection is the collection commands target by default.
	DefaultCollection = "code_context"
	// DefaultAgentsCollection is the collection agent documents go into.
	DefaultAgentsCollection = "agents_analysis"

	// DefaultChunkSize is the chunk length in characters for plain documents.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the overlap carried between plain chunks.
	DefaultChunkOverlap = 200
	// DefaultBatchSize is the upsert batch size for plain ingestion.
	DefaultBatchSize = 100
	// DefaultAgentChunkSize is the chunk length for agent documents, larger
	// because agent definitions lose meaning when cut too fine.
	DefaultAgentChunkSize = 1500
	// DefaultAgentChunkOverlap is the overlap for agent documents.
	DefaultAgentChunkOverlap = 300
	// DefaultAgentBatchSize is the upsert batch size for agent ingestion.
	DefaultAgentBatchSize = 50

	// DefaultMinConfidence is the RAG chain's context admission floor.
	DefaultMinConfidence = 0.5
	// DefaultMaxContextTokens caps the estimated RAG context size.
	DefaultMaxContextTokens = 6000
)

// Default calibration cutoffs (the wider of the two observed calibrations).
const (
	DefaultCalibrationExcellent  = 0.8
	DefaultCalibrationGood       = 1.0
	DefaultCalibrationAcceptable = 1.2
)

// DefaultExtensions are the file extensions ingested when none are configured.
var DefaultExtensions = []string{".md", ".py", ".go", ".txt"}

// DefaultExcludeDirs are directory names the scanner always skips unless
// overridden.
var DefaultExcludeDirs = []string{".git", "node_modules", "__pycache__", ".venv", "venv", "vendor"}

// Settings is the resolved, validated runtime configuration. It is built
// from the environment after Load has projected any YAML file into it, and
// is passed explicitly to the components that need it.
type Settings struct {
	// VectorDB is the vector store connection configuration.
	VectorDB VectorDBSettings
	// Collections are the default target collections.
	Collections CollectionsSettings
	// Ingest is the chunking/batching configuration.
	Ingest IngestSettings
	// Calibration holds the advisory distance band cutoffs.
	Calibration CalibrationSettings
	// RAG is the answer chain configuration.
	RAG RAGSettings
}

// VectorDBSettings is the resolved vector store connection configuration.
type VectorDBSettings struct {
	// Host is the vector store hostname.
	Host string
	// Port is the vector store gRPC port.
	Port int
	// APIKey authenticates against managed deployments; empty for local.
	APIKey string
	// TLS enables transport security.
	TLS bool
}

// CollectionsSettings names the default collections.
type CollectionsSettings struct {
	// Default is the collection used when no flag overrides it.
	Default string
	// Agents is the agent-definition collection.
	Agents string
}

// IngestSettings is the resolved chunking/batching configuration.
type IngestSettings struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int
	// ChunkOverlap is the overlap carried between chunks.
	ChunkOverlap int
	// BatchSize is the number of chunks per upsert batch.
	BatchSize int
	// AgentChunkSize is the chunk length for agent documents.
	AgentChunkSize int
	// AgentChunkOverlap is the overlap for agent documents.
	AgentChunkOverlap int
	// AgentBatchSize is the upsert batch size for agent ingestion.
	AgentBatchSize int
	// Extensions are the file extensions the scanner accepts.
	Extensions []string
	// ExcludeDirs are directory names the scanner skips.
	ExcludeDirs []string
}

// CalibrationSettings holds the resolved ascending band cutoffs.
type CalibrationSettings struct {
	// Excellent is the upper distance bound of the "excellent" band.
	Excellent float64
	// Good is the upper distance bound of the "good" band.
	Good float64
	// Acceptable is the upper distance bound of the "acceptable" band.
	Acceptable float64
}

// RAGSettings holds the resolved answer chain configuration.
type RAGSettings struct {
	// MinConfidence is the context admission floor (1 - distance).
	MinConfidence float64
	// MaxContextTokens caps the estimated context size.
	MaxContextTokens int
}

// Resolve reads the environment into a validated Settings. Malformed values
// for numeric keys are hard errors so misconfiguration surfaces at startup,
// not on the first backend call.
func Resolve() (*Settings, error) {
	s := &Settings{
		VectorDB: VectorDBSettings{
			Host:   getEnv("VECTOR_DB_HOST", DefaultVectorDBHost),
			APIKey: os.Getenv("VECTOR_DB_API_KEY"),
			TLS:    strings.EqualFold(os.Getenv("VECTOR_DB_TLS"), "true"),
		},
		Collections: CollectionsSettings{
			Default: getEnv("SEMDEX_COLLECTION", DefaultCollection),
			Agents:  getEnv("SEMDEX_AGENTS_COLLECTION", DefaultAgentsCollection),
		},
	}

	var err error
	if s.VectorDB.Port, err = getEnvIntStrict("VECTOR_DB_PORT", DefaultVectorDBPort); err != nil {
		return nil, err
	}
	if s.Ingest.ChunkSize, err = getEnvIntStrict("CHUNK_SIZE", DefaultChunkSize); err != nil {
		return nil, err
	}
	if s.Ingest.ChunkOverlap, err = getEnvIntStrict("CHUNK_OVERLAP", DefaultChunkOverlap); err != nil {
		return nil, err
	}
	if s.Ingest.BatchSize, err = getEnvIntStrict("BATCH_SIZE", DefaultBatchSize); err != nil {
		return nil, err
	}
	if s.Ingest.AgentChunkSize, err = getEnvIntStrict("AGENT_CHUNK_SIZE", DefaultAgentChunkSize); err != nil {
		return nil, err
	}
	if s.Ingest.AgentChunkOverlap, err = getEnvIntStrict("AGENT_CHUNK_OVERLAP", DefaultAgentChunkOverlap); err != nil {
		return nil, err
	}
	if s.Ingest.AgentBatchSize, err = getEnvIntStrict("AGENT_BATCH_SIZE", DefaultAgentBatchSize); err != nil {
		return nil, err
	}
	if s.Calibration.Excellent, err = getEnvFloatStrict("CALIBRATION_EXCELLENT", DefaultCalibrationExcellent); err != nil {
		return nil, err
	}
	if s.Calibration.Good, err = getEnvFloatStrict("CALIBRATION_GOOD", DefaultCalibrationGood); err != nil {
		return nil, err
	}
	if s.Calibration.Acceptable, err = getEnvFloatStrict("CALIBRATION_ACCEPTABLE", DefaultCalibrationAcceptable); err != nil {
		return nil, err
	}
	if s.RAG.MinConfidence, err = getEnvFloatStrict("RAG_MIN_CONFIDENCE", DefaultMinConfidence); err != nil {
		return nil, err
	}
	if s.RAG.MaxContextTokens, err = getEnvIntStrict("RAG_MAX_CONTEXT_TOKENS", DefaultMaxContextTokens); err != nil {
		return nil, err
	}

	s.Ingest.Extensions = splitList(os.Getenv("INGEST_EXTENSIONS"), DefaultExtensions)
	s.Ingest.ExcludeDirs = splitList(os.Getenv("INGEST_EXCLUDE_DIRS"), DefaultExcludeDirs)

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// validate enforces invariants that individual parses cannot see.
func (s *Settings) validate() error {
	if s.VectorDB.Host == "" {
		return fmt.Errorf("config: VECTOR_DB_HOST must not be empty")
	}
	if s.VectorDB.Port <= 0 || s.VectorDB.Port > 65535 {
		return fmt.Errorf("config: VECTOR_DB_PORT %d out of range", s.VectorDB.Port)
	}
	if s.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("config: CHUNK_SIZE must be positive, got %d", s.Ingest.ChunkSize)
	}
	if s.Ingest.ChunkOverlap < 0 {
		return fmt.Errorf("config: CHUNK_OVERLAP must not be negative, got %d", s.Ingest.ChunkOverlap)
	}
	if s.Ingest.BatchSize <= 0 {
		return fmt.Errorf("config: BATCH_SIZE must be positive, got %d", s.Ingest.BatchSize)
	}
	if s.Ingest.AgentChunkSize <= 0 {
		return fmt.Errorf("config: AGENT_CHUNK_SIZE must be positive, got %d", s.Ingest.AgentChunkSize)
	}
	if s.Ingest.AgentChunkOverlap < 0 {
		return fmt.Errorf("config: AGENT_CHUNK_OVERLAP must not be negative, got %d", s.Ingest.AgentChunkOverlap)
	}
	if s.Ingest.AgentBatchSize <= 0 {
		return fmt.Errorf("config: AGENT_BATCH_SIZE must be positive, got %d", s.Ingest.AgentBatchSize)
	}
	c := s.Calibration
	if !(c.Excellent > 0 && c.Excellent < c.Good && c.Good < c.Acceptable) {
		return fmt.Errorf("config: calibration cutoffs must ascend: excellent=%v good=%v acceptable=%v",
			c.Excellent, c.Good, c.Acceptable)
	}
	if s.RAG.MinConfidence < 0 || s.RAG.MinConfidence > 1 {
		return fmt.Errorf("config: RAG_MIN_CONFIDENCE %v outside [0,1]", s.RAG.MinConfidence)
	}
	return nil
}

// getEnv returns the named env var, or fallback when unset or empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvIntStrict returns the integer value of the named env var. Unset or
// empty yields the fallback; a value that does not parse is an error.
func getEnvIntStrict(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid integer: %w", key, v, err)
	}
	return i, nil
}

// getEnvFloatStrict returns the float value of the named env var. Unset or
// empty yields the fallback; a value that does not parse is an error.
func getEnvFloatStrict(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid number: %w", key, v, err)
	}
	return f, nil
}

// splitList splits a comma-separated value into trimmed entries, returning
// fallback when the value is empty.
func splitList(v string, fallback []string) []string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

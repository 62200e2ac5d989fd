// Package ingestion implements the document ingestion pipeline. It walks a
// source tree, splits each document into overlapping chunks, derives a
// metadata record per chunk, and upserts the results in batches into a
// named collection. The `semdex ingest` command drives it.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/54b3r/semdex/internal/logging"
	"github.com/54b3r/semdex/internal/vectordb"
)

// Store is the slice of the vector store the coordinator writes through.
type Store interface {
	Upsert(ctx context.Context, collection string, points []vectordb.Point) error
	PruneSource(ctx context.Context, collection, source string, keep int) error
}

// Embedder converts chunk texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the coordinator's tunables.
type Config struct {
	// ChunkSize is the maximum number of bytes per chunk. Defaults to 1000
	// if zero.
	ChunkSize int

	// ChunkOverlap is the number of bytes shared between consecutive
	// chunks. A negative value is treated as 0.
	ChunkOverlap int

	// BatchSize is the number of chunks per upsert batch. Defaults to 100
	// if zero.
	BatchSize int

	// Extensions are the file extensions to ingest. Defaults to
	// .md/.py/.go/.txt if empty.
	Extensions []string

	// ExcludeDirs are directory names skipped during the walk. Defaults to
	// the usual dependency and VCS directories if nil.
	ExcludeDirs []string
}

// Coordinator drives the walk → extract → chunk → record → batched upsert
// flow for one source tree per call. Batches are issued sequentially;
// independent runs against different collections may proceed concurrently.
type Coordinator struct {
	// store persists the embedded chunks.
	store Store

	// embedder converts chunk texts into dense vector embeddings.
	embedder Embedder

	// cfg holds the resolved coordinator configuration.
	cfg *Config
}

// NewCoordinator constructs a Coordinator from the provided dependencies
// and config.
func NewCoordinator(store Store, embedder Embedder, cfg *Config) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".md", ".py", ".go", ".txt"}
	}
	if cfg.ExcludeDirs == nil {
		cfg.ExcludeDirs = []string{".git", "node_modules", "__pycache__", ".venv", "venv", "vendor"}
	}

	return &Coordinator{store: store, embedder: embedder, cfg: cfg}, nil
}

// Result reports what one ingestion run accomplished. A run never aborts on
// a failed batch; it records the failure and carries on, so callers must
// inspect Failures rather than rely on an error return.
type Result struct {
	// DocumentsProcessed counts documents that produced at least one chunk.
	DocumentsProcessed int
	// DocumentsFailed counts documents that could not be read.
	DocumentsFailed int
	// ChunksWritten counts chunks in batches that upserted successfully.
	ChunksWritten int
	// Failures lists the pipeline steps that failed.
	Failures []BatchFailure
}

// BatchFailure records one failed pipeline step and the documents whose
// chunks it carried.
type BatchFailure struct {
	// Stage is "embed", "upsert", or "prune".
	Stage string
	// Batch is the 1-based batch number for embed and upsert failures,
	// 0 for prune.
	Batch int
	// Sources are the documents with chunks in the failed step.
	Sources []string
	// Err is the underlying error.
	Err error
}

// pending is one chunk queued for embedding and upsert.
type pending struct {
	id     string
	text   string
	record Record
}

// Ingest walks sourcePath and ingests every matching document into
// collection as plain chunked text.
func (c *Coordinator) Ingest(ctx context.Context, sourcePath, collection string) (*Result, error) {
	return c.run(ctx, sourcePath, collection, false)
}

// IngestAgents walks sourcePath and ingests markdown agent definition
// documents into collection with their structured attributes. README files
// are skipped; documents without a usable header fall back to plain
// chunked ingestion.
func (c *Coordinator) IngestAgents(ctx context.Context, sourcePath, collection string) (*Result, error) {
	return c.run(ctx, sourcePath, collection, true)
}

func (c *Coordinator) run(ctx context.Context, sourcePath, collection string, agents bool) (*Result, error) {
	log := logging.FromContext(ctx)

	exts := c.cfg.Extensions
	if agents {
		exts = []string{".md"}
	}
	files, err := Scan(sourcePath, exts, c.cfg.ExcludeDirs)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if len(files) == 0 {
		log.Info("ingestion: no matching files",
			slog.String("source", sourcePath),
		)
		return result, nil
	}
	log.Info("ingestion: scan complete",
		slog.String("source", sourcePath),
		slog.String("collection", collection),
		slog.Int("files", len(files)),
	)

	chunker := NewChunker(c.cfg.ChunkSize, c.cfg.ChunkOverlap)

	// Walk every document and queue its chunks. Per-document problems are
	// logged and counted, never fatal.
	var queue []pending
	var sources []string
	chunksPerSource := map[string]int{}

	for _, path := range files {
		if agents && filepath.Base(path) == "README.md" {
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			result.DocumentsFailed++
			log.Warn("ingestion: could not read file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}

		body := string(raw)
		var tags map[string]any
		if agents {
			attrs, rest, err := ExtractAgentAttrs(path, body)
			if err != nil {
				log.Warn("ingestion: malformed frontmatter, ingesting as plain text",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
			body = rest
			tags = attrs.Tags()
		}

		chunks := chunker.Split(strings.TrimSpace(body))
		if len(chunks) == 0 {
			continue
		}

		for i, chunk := range chunks {
			rec := NewRecord(path, i, len(chunks))
			rec.Tags = tags
			if err := rec.Validate(); err != nil {
				log.Warn("ingestion: dropping invalid record",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			queue = append(queue, pending{
				id:     chunkID(path, i),
				text:   chunk.Text,
				record: rec,
			})
		}

		result.DocumentsProcessed++
		chunksPerSource[path] = len(chunks)
		sources = append(sources, path)
	}

	// Embed and upsert in bounded batches. Each batch outcome folds into
	// the result; a failure marks its documents so they are not pruned on
	// top of a half-written state.
	failed := map[string]bool{}
	for start := 0; start < len(queue); start += c.cfg.BatchSize {
		batch := queue[start:min(start+c.cfg.BatchSize, len(queue))]
		batchNum := start/c.cfg.BatchSize + 1

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.text
		}

		vectors, err := c.embedder.Embed(ctx, texts)
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{
				Stage:   "embed",
				Batch:   batchNum,
				Sources: batchSources(batch),
				Err:     err,
			})
			for _, p := range batch {
				failed[p.record.Source] = true
			}
			continue
		}

		points := make([]vectordb.Point, len(batch))
		for i, p := range batch {
			points[i] = vectordb.Point{
				ID:      p.id,
				Vector:  vectors[i],
				Text:    p.text,
				Payload: p.record.Payload(),
			}
		}

		if err := c.store.Upsert(ctx, collection, points); err != nil {
			result.Failures = append(result.Failures, BatchFailure{
				Stage:   "upsert",
				Batch:   batchNum,
				Sources: batchSources(batch),
				Err:     err,
			})
			for _, p := range batch {
				failed[p.record.Source] = true
			}
			continue
		}

		result.ChunksWritten += len(batch)
		log.Info("ingestion: batch complete",
			slog.Int("batch", batchNum),
			slog.Int("chunks", len(batch)),
		)
	}

	// Drop stale chunks past each document's new count, so a document that
	// shrank since the last run does not keep orphaned tail chunks. Skipped
	// for documents with a failed batch: their stored state is the only
	// complete copy.
	for _, source := range sources {
		if failed[source] {
			continue
		}
		if err := c.store.PruneSource(ctx, collection, source, chunksPerSource[source]); err != nil {
			result.Failures = append(result.Failures, BatchFailure{
				Stage:   "prune",
				Sources: []string{source},
				Err:     err,
			})
		}
	}

	log.Info("ingestion: run complete",
		slog.String("collection", collection),
		slog.Int("documents", result.DocumentsProcessed),
		slog.Int("chunks_written", result.ChunksWritten),
		slog.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// chunkID returns the deterministic point ID for a chunk, a name-based UUID
// over the document path and chunk index. Re-ingesting a path yields the
// same IDs, so upserts overwrite instead of duplicating.
func chunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}

// batchSources returns the unique documents contributing to batch, in order.
func batchSources(batch []pending) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range batch {
		if !seen[p.record.Source] {
			seen[p.record.Source] = true
			out = append(out, p.record.Source)
		}
	}
	return out
}

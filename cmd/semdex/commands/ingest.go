package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/ingestion"
	"github.com/54b3r/semdex/internal/journal"
	"github.com/54b3r/semdex/internal/logging"
)

// NewIngestCmd constructs the `semdex ingest` command, which walks a source
// tree and indexes its documents into a collection.
func NewIngestCmd() *cobra.Command {
	var source string
	var collection string
	var agents bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a document tree into the vector store",
		Long: `Walk a source tree, chunk and embed every matching document, and upsert
the chunks into a named collection.

Plain mode indexes markdown, code, and text files as overlapping chunks.
Agent mode (--agents) indexes markdown agent definitions with their parsed
header attributes (name, category, complexity, tech stack) so they can be
filtered and audited later.

Re-ingesting a source replaces its chunks in place: surviving chunks are
overwritten by ID and leftovers from a previously longer version are pruned.

Required environment variables:
  VECTOR_DB_HOST       Vector store hostname (default: localhost)
  VECTOR_DB_PORT       Vector store gRPC port (default: 9500)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, gemini (default: ollama)
  EMBEDDING_*          Provider-specific overrides (model, endpoint, API key)

Examples:
  semdex ingest --source ./docs
  semdex ingest --source ./agents --agents
  semdex ingest --source ./notes --collection scratch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			settings, err := config.Resolve()
			if err != nil {
				return err
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			mgr, store := buildStore(settings)
			defer func() { _ = mgr.Close() }()

			cfg := &ingestion.Config{
				ChunkSize:    settings.Ingest.ChunkSize,
				ChunkOverlap: settings.Ingest.ChunkOverlap,
				BatchSize:    settings.Ingest.BatchSize,
				Extensions:   settings.Ingest.Extensions,
				ExcludeDirs:  settings.Ingest.ExcludeDirs,
			}
			mode := "documents"
			if agents {
				// Agent definitions lose meaning when cut too fine, so they
				// get their own chunk geometry.
				cfg.ChunkSize = settings.Ingest.AgentChunkSize
				cfg.ChunkOverlap = settings.Ingest.AgentChunkOverlap
				cfg.BatchSize = settings.Ingest.AgentBatchSize
				mode = "agents"
			}

			coordinator, err := ingestion.NewCoordinator(store, emb, cfg)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if collection == "" {
				collection = settings.Collections.Default
				if agents {
					collection = settings.Collections.Agents
				}
			}

			log.Info("ingest starting",
				slog.String("source", source),
				slog.String("collection", collection),
				slog.String("mode", mode),
			)

			start := time.Now()
			var result *ingestion.Result
			if agents {
				result, err = coordinator.IngestAgents(ctx, source, collection)
			} else {
				result, err = coordinator.Ingest(ctx, source, collection)
			}
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			elapsed := time.Since(start)

			if j := openJournal(log); j != nil {
				defer func() { _ = j.Close() }()
				run := journal.Run{
					Source:     source,
					Collection: collection,
					Mode:       mode,
					Documents:  result.DocumentsProcessed,
					Failed:     result.DocumentsFailed,
					Chunks:     result.ChunksWritten,
					Status:     journal.StatusFor(result.DocumentsProcessed, result.DocumentsFailed+len(result.Failures), result.ChunksWritten),
					StartedAt:  start,
					Duration:   elapsed,
				}
				if err := j.Record(ctx, run); err != nil {
					log.Warn("journal: failed to record run", slog.Any("error", err))
				}
			}

			for _, f := range result.Failures {
				log.Warn("ingest: pipeline step failed",
					slog.String("stage", f.Stage),
					slog.Int("batch", f.Batch),
					slog.Int("documents", len(f.Sources)),
					slog.Any("error", f.Err),
				)
			}

			attrs := []any{
				slog.Int("documents", result.DocumentsProcessed),
				slog.Int("failed", result.DocumentsFailed),
				slog.Int("chunks", result.ChunksWritten),
				slog.Duration("elapsed", elapsed),
			}
			if total, err := store.Count(ctx, collection); err == nil {
				attrs = append(attrs, slog.Uint64("collection_points", total))
			}
			log.Info("ingest complete", attrs...)

			if result.ChunksWritten == 0 && (result.DocumentsFailed > 0 || len(result.Failures) > 0) {
				return fmt.Errorf("ingest: no chunks written (%d documents failed, %d pipeline failures)",
					result.DocumentsFailed, len(result.Failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", ".", "Source directory or file to ingest")
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Target collection (default: from config)")
	cmd.Flags().BoolVar(&agents, "agents", false, "Ingest markdown agent definitions with parsed attributes")

	return cmd
}

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/embedder"
	"github.com/54b3r/semdex/internal/journal"
	"github.com/54b3r/semdex/internal/retrieval"
	"github.com/54b3r/semdex/internal/vectordb"
)

// buildStore constructs the process's vector store manager and its
// collection-scoped store from the resolved settings. Callers own the
// manager and must Close it.
func buildStore(s *config.Settings) (*vectordb.Manager, *vectordb.Store) {
	mgr := vectordb.NewManager(vectordb.Config{
		Host:   s.VectorDB.Host,
		Port:   s.VectorDB.Port,
		APIKey: s.VectorDB.APIKey,
		UseTLS: s.VectorDB.TLS,
	})
	return mgr, vectordb.NewStore(mgr)
}

// buildEmbedder validates the embedding environment and constructs the
// configured embedder.
func buildEmbedder(ctx context.Context, log *slog.Logger) (embedder.Embedder, error) {
	if err := embedder.Preflight(log); err != nil {
		return nil, err
	}
	return embedder.NewFromEnv(ctx)
}

// buildRetriever constructs a retriever over store using the calibration
// cutoffs from settings.
func buildRetriever(store *vectordb.Store, emb embedder.Embedder, s *config.Settings) (*retrieval.Retriever, error) {
	cal := retrieval.Calibration{
		Excellent:  s.Calibration.Excellent,
		Good:       s.Calibration.Good,
		Acceptable: s.Calibration.Acceptable,
	}
	return retrieval.NewRetriever(store, emb, cal)
}

// openJournal opens the ingestion run journal. SEMDEX_JOURNAL_DB overrides
// the default path (~/.semdex/journal.db); "disabled" turns the journal off.
// Journal problems degrade to a warning, never a failed command.
func openJournal(log *slog.Logger) journal.Journal {
	path := os.Getenv("SEMDEX_JOURNAL_DB")
	if path == "disabled" {
		log.Info("journal: disabled via SEMDEX_JOURNAL_DB=disabled")
		return nil
	}
	if path == "" {
		var err error
		path, err = journal.DefaultDBPath()
		if err != nil {
			log.Warn("journal: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	j, err := journal.Open(path)
	if err != nil {
		log.Warn("journal: failed to open, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("journal: opened", slog.String("path", path))
	return j
}

// embeddingBackendName returns the label of the configured embedding backend
// for logs and readiness reports.
func embeddingBackendName() string {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		return v
	}
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		return v
	}
	return "ollama"
}

// parseFilterFlags converts repeated key=value flag entries into a filter
// map. Repeating a key widens the match to any of its values.
func parseFilterFlags(entries []string) (map[string][]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	filter := make(map[string][]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid --filter entry %q, want key=value", entry)
		}
		filter[key] = append(filter[key], value)
	}
	return filter, nil
}

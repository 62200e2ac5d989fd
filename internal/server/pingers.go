package server

import (
	"context"
	"fmt"

	"github.com/54b3r/semdex/internal/embedder"
)

// EmbedderPinger probes an embedding backend by requesting a single probe
// embedding. It satisfies the Pinger interface and is used by GET /api/ready.
// The vector store needs no counterpart here: *vectordb.Manager is itself a
// Pinger.
type EmbedderPinger struct {
	// embedder is the embedding backend to probe.
	embedder embedder.Embedder
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend name.
func NewEmbedderPinger(e embedder.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping requests one probe embedding from the backend. The returned dimension
// is discarded; only reachability matters here.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	if _, err := embedder.Probe(ctx, p.embedder); err != nil {
		return fmt.Errorf("probe embedding failed: %w", err)
	}
	return nil
}

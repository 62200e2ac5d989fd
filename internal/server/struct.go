package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/semdex/internal/retrieval"
	"github.com/54b3r/semdex/internal/vectordb"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// SearchCollections are the collections a search without an explicit
	// collection fans out across.
	SearchCollections []string
	// MetricsRegistry receives the server's Prometheus metrics. If nil a
	// fresh registry is created, keeping tests hermetic.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Must gather from MetricsRegistry.
	MetricsGatherer prometheus.Gatherer
}

// searcher is the interface handleSearch calls. *retrieval.Retriever
// satisfies it; tests inject a fake.
type searcher interface {
	// Search runs a single-collection similarity search.
	Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.Document, error)
	// SearchAll fans the search out across the named collections.
	SearchAll(ctx context.Context, collections []string, req retrieval.SearchRequest) ([]retrieval.Document, error)
	// SearchCategory restricts the search to one category of documents.
	SearchCategory(ctx context.Context, req retrieval.SearchRequest, category string) ([]retrieval.Document, error)
}

// collectionBrowser is the interface the collection endpoints call.
// *vectordb.Store satisfies it; tests inject a fake.
type collectionBrowser interface {
	// Collections lists the collection names known to the backend.
	Collections(ctx context.Context) ([]string, error)
	// CollectionInfo returns point count and status for one collection.
	CollectionInfo(ctx context.Context, collection string) (*vectordb.CollectionStats, error)
}

// Server is the HTTP server that exposes the index over a REST API.
type Server struct {
	// searcher answers /api/search requests.
	searcher searcher
	// collections answers /api/collections requests.
	collections collectionBrowser
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the natural-language search text.
	Query string `json:"query"`
	// Collection searches a single named collection.
	Collection string `json:"collection,omitempty"`
	// Collections fans the search out across several collections. Takes
	// precedence over Collection.
	Collections []string `json:"collections,omitempty"`
	// Category restricts a single-collection search to one category.
	Category string `json:"category,omitempty"`
	// Limit is the maximum number of results. Defaults to 10.
	Limit int `json:"limit,omitempty"`
	// Threshold, when set, drops results whose distance exceeds it.
	Threshold *float64 `json:"threshold,omitempty"`
	// Filter restricts results to chunks matching every entry.
	Filter map[string][]string `json:"filter,omitempty"`
}

// searchResult is one entry in a search response.
type searchResult struct {
	// ID is the stored chunk's UUID.
	ID string `json:"id"`
	// Source is the path of the document the chunk came from.
	Source string `json:"source"`
	// Text is the chunk content.
	Text string `json:"text"`
	// Distance is the cosine distance to the query, lower is more similar.
	Distance float64 `json:"distance"`
	// Band is the advisory calibration label for Distance.
	Band string `json:"band"`
	// Collection is the origin collection, set on fan-out searches.
	Collection string `json:"collection,omitempty"`
	// Metadata is the chunk's stored metadata record.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Query echoes the search text.
	Query string `json:"query"`
	// Count is the number of results returned.
	Count int `json:"count"`
	// Results are the matches, ordered by ascending distance.
	Results []searchResult `json:"results"`
}

// collectionsResponse is the JSON response for GET /api/collections.
type collectionsResponse struct {
	// Collections are the collection names known to the backend.
	Collections []string `json:"collections"`
}

// collectionInfoResponse is the JSON response for GET /api/collections/{name}.
type collectionInfoResponse struct {
	// Name is the collection name.
	Name string `json:"name"`
	// Points is the number of stored points.
	Points uint64 `json:"points"`
	// VectorSize is the embedding dimensionality, 0 when unknown.
	VectorSize uint64 `json:"vectorSize"`
	// Status is the backend's health status string for the collection.
	Status string `json:"status"`
}

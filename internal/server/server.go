// Package server implements the HTTP server that exposes the index over a
// REST API: similarity search, collection introspection, health, readiness,
// and Prometheus metrics. The server is started by the `semdex serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/semdex/internal/logging"
	"github.com/54b3r/semdex/internal/retrieval"
)

// defaultSearchLimit is the result count used when a search request does not
// ask for one.
const defaultSearchLimit = 10

// New constructs a Server from the provided retriever, collection browser,
// and config.
func New(searcher searcher, collections collectionBrowser, cfg *Config) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("server: searcher must not be nil")
	}
	if collections == nil {
		return nil, fmt.Errorf("server: collection browser must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		reg := prometheus.NewRegistry()
		cfg.MetricsRegistry = reg
		cfg.MetricsGatherer = reg
	}

	s := &Server{
		searcher:    searcher,
		collections: collections,
		cfg:         cfg,
		log:         cfg.Logger,
		pingers:     cfg.Pingers,
		metrics:     newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not set — authentication disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	// Protected API routes: auth first, then the per-IP rate limit on the
	// expensive search endpoint.
	api := http.NewServeMux()
	api.Handle("POST /api/search", rl.middleware(s.instrumented("search", s.handleSearch)))
	api.Handle("GET /api/collections", s.instrumented("collections", s.handleCollections))
	api.Handle("GET /api/collections/{name}", s.instrumented("collection_info", s.handleCollectionInfo))

	// Health, readiness, and metrics stay outside auth so probes and
	// scrapers need no credentials.
	mux := http.NewServeMux()
	mux.Handle("/api/", authMiddleware(cfg.APIKey, api))
	mux.Handle("GET /api/health", s.instrumented("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrumented("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSearch handles POST /api/search. Collection routing: an explicit
// collections list fans out, a category pins the category filter, a single
// collection searches it directly, and a request naming none fans out
// across the configured defaults.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.observeSearch("bad_request", start)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	sr := retrieval.SearchRequest{
		Query:      req.Query,
		Collection: req.Collection,
		Limit:      req.Limit,
		Threshold:  req.Threshold,
		Filter:     req.Filter,
	}

	var docs []retrieval.Document
	var err error
	switch {
	case len(req.Collections) > 0:
		docs, err = s.searcher.SearchAll(r.Context(), req.Collections, sr)
	case req.Category != "":
		docs, err = s.searcher.SearchCategory(r.Context(), sr, req.Category)
	case req.Collection != "":
		docs, err = s.searcher.Search(r.Context(), sr)
	default:
		docs, err = s.searcher.SearchAll(r.Context(), s.cfg.SearchCollections, sr)
	}
	if err != nil {
		log := logging.FromContext(r.Context())
		if errors.Is(err, retrieval.ErrInvalidQuery) {
			s.observeSearch("bad_request", start)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.observeSearch("error", start)
		log.Error("search failed", slog.Any("error", err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	resp := searchResponse{Query: req.Query, Count: len(docs), Results: make([]searchResult, 0, len(docs))}
	for _, d := range docs {
		resp.Results = append(resp.Results, searchResult{
			ID:         d.ID,
			Source:     d.Source,
			Text:       d.Text,
			Distance:   d.Distance,
			Band:       d.Band,
			Collection: d.Collection,
			Metadata:   d.Metadata,
		})
	}

	s.observeSearch("ok", start)
	s.metrics.searchResults.Observe(float64(len(docs)))
	writeJSON(w, http.StatusOK, resp)
}

// handleCollections handles GET /api/collections.
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.collections.Collections(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("collection list failed", slog.Any("error", err))
		http.Error(w, "collection list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, collectionsResponse{Collections: names})
}

// handleCollectionInfo handles GET /api/collections/{name}.
func (s *Server) handleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stats, err := s.collections.CollectionInfo(r.Context(), name)
	if err != nil {
		logging.FromContext(r.Context()).Error("collection info failed",
			slog.String("collection", name),
			slog.Any("error", err),
		)
		http.Error(w, "collection not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, collectionInfoResponse{
		Name:       stats.Name,
		Points:     stats.Points,
		VectorSize: stats.VectorSize,
		Status:     stats.Status,
	})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observeSearch records one completed search request.
func (s *Server) observeSearch(outcome string, start time.Time) {
	s.metrics.searchRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.searchDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

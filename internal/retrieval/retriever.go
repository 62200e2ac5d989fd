// Package retrieval implements the query side of the system: similarity
// search against one or more collections, distance-threshold filtering,
// advisory quality banding, metadata-scoped lookups, and document-level
// deduplication of multi-chunk hits. It never writes to the store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/54b3r/semdex/internal/vectordb"
)

// ErrInvalidQuery marks a request rejected before any backend call. Check
// with errors.Is.
var ErrInvalidQuery = errors.New("retrieval: invalid query")

// maxLimit bounds the result count a single request may ask for.
const maxLimit = 1000

// overFetchFactor is how many times the requested limit is fetched from the
// backend, leaving headroom for chunks that collapse into one document
// during deduplication.
const overFetchFactor = 2

// Store is the slice of the vector store the retriever reads through.
type Store interface {
	Query(ctx context.Context, collection string, vector []float32, limit int, filter vectordb.Filter) ([]vectordb.Hit, error)
	Fetch(ctx context.Context, collection string, filter vectordb.Filter, limit int) ([]vectordb.Hit, error)
}

// Embedder converts the query text into its embedding vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is one retrieved result at source-document granularity after
// deduplication: the best-scoring chunk of its source.
type Document struct {
	// ID is the stored chunk's UUID.
	ID string
	// Text is the chunk content.
	Text string
	// Source is the path of the document the chunk came from.
	Source string
	// Distance is the cosine distance to the query, lower is more similar.
	// Zero and unset for metadata-only lookups.
	Distance float64
	// Band is the advisory calibration label for Distance. Informational
	// only; nothing is dropped by band.
	Band string
	// Collection is the collection the result came from, set on fan-out
	// searches and lookups.
	Collection string
	// Metadata is the chunk's stored metadata record.
	Metadata map[string]any
}

// SearchRequest describes one similarity query.
type SearchRequest struct {
	// Query is the text to search for.
	Query string
	// Collection is the collection to search. Ignored by SearchAll.
	Collection string
	// Limit is the maximum number of results after deduplication.
	Limit int
	// Threshold, when set, drops results whose distance exceeds it. Nil
	// returns all Limit results unfiltered.
	Threshold *float64
	// Filter restricts the search to chunks matching every entry. A key
	// with one value matches equality, several values match membership.
	Filter map[string][]string
}

// Retriever coordinates similarity queries. All methods are read-only and
// safe for concurrent use.
type Retriever struct {
	// store performs the vector similarity search.
	store Store
	// embedder converts query text to a dense vector.
	embedder Embedder
	// cal labels result distances with quality bands.
	cal Calibration
}

// NewRetriever constructs a Retriever from its dependencies. A zero-valued
// cal falls back to DefaultCalibration.
func NewRetriever(store Store, embedder Embedder, cal Calibration) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder must not be nil")
	}
	if cal == (Calibration{}) {
		cal = DefaultCalibration
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &Retriever{store: store, embedder: embedder, cal: cal}, nil
}

// Search runs req against its collection and returns results ordered by
// ascending distance, threshold-filtered when requested, and collapsed to
// one entry per source document. Validation failures surface before any
// backend call and carry ErrInvalidQuery.
func (r *Retriever) Search(ctx context.Context, req SearchRequest) ([]Document, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.Collection == "" {
		return nil, fmt.Errorf("%w: collection must not be empty", ErrInvalidQuery)
	}

	docs, err := r.searchOne(ctx, req.Collection, req, "")
	if err != nil {
		return nil, err
	}

	docs = dedupBySource(docs)
	return trim(docs, req.Limit), nil
}

// SearchAll fans req out to every named collection, tags each result with
// its origin collection, merges by ascending distance, deduplicates by
// source across the merged set, and trims to req.Limit.
func (r *Retriever) SearchAll(ctx context.Context, collections []string, req SearchRequest) ([]Document, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if len(collections) == 0 {
		return nil, fmt.Errorf("%w: at least one collection is required", ErrInvalidQuery)
	}

	var merged []Document
	for _, collection := range collections {
		docs, err := r.searchOne(ctx, collection, req, collection)
		if err != nil {
			return nil, err
		}
		merged = append(merged, docs...)
	}

	// Stable sort: within one collection the backend order is already
	// ascending, and ties across collections keep fan-out order.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})

	merged = dedupBySource(merged)
	return trim(merged, req.Limit), nil
}

// SearchCategory is Search restricted to one category of agent documents.
func (r *Retriever) SearchCategory(ctx context.Context, req SearchRequest, category string) ([]Document, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category must not be empty", ErrInvalidQuery)
	}

	filter := make(map[string][]string, len(req.Filter)+1)
	for k, v := range req.Filter {
		filter[k] = v
	}
	filter["category"] = []string{category}
	req.Filter = filter

	return r.Search(ctx, req)
}

// Lookup returns up to limit chunks matching filter without scoring. No
// embedding happens and no distances are produced.
func (r *Retriever) Lookup(ctx context.Context, collection string, filter map[string][]string, limit int) ([]Document, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection must not be empty", ErrInvalidQuery)
	}
	if limit <= 0 || limit > maxLimit {
		return nil, fmt.Errorf("%w: limit %d outside 1..%d", ErrInvalidQuery, limit, maxLimit)
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	hits, err := r.store.Fetch(ctx, collection, vectordb.Filter(filter), limit)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, Document{
			ID:         h.ID,
			Text:       h.Text,
			Source:     payloadString(h.Payload, "source"),
			Collection: collection,
			Metadata:   h.Payload,
		})
	}
	return docs, nil
}

// BySource returns every stored chunk of one document ordered by chunk
// index, for reconstruction and audit surfaces.
func (r *Retriever) BySource(ctx context.Context, collection, source string) ([]Document, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: source must not be empty", ErrInvalidQuery)
	}

	docs, err := r.Lookup(ctx, collection, map[string][]string{"source": {source}}, maxLimit)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return payloadInt(docs[i].Metadata, "chunk_index") < payloadInt(docs[j].Metadata, "chunk_index")
	})
	return docs, nil
}

// searchOne embeds the query once and runs it against a single collection,
// applying the threshold but not deduplication, which belongs to the caller
// so fan-out can dedup across the merged set.
func (r *Retriever) searchOne(ctx context.Context, collection string, req SearchRequest, tag string) ([]Document, error) {
	vectors, err := r.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embedding query failed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("retrieval: embedder returned an empty vector")
	}

	hits, err := r.store.Query(ctx, collection, vectors[0], req.Limit*overFetchFactor, vectordb.Filter(req.Filter))
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		if req.Threshold != nil && h.Distance > *req.Threshold {
			continue
		}
		docs = append(docs, Document{
			ID:         h.ID,
			Text:       h.Text,
			Source:     payloadString(h.Payload, "source"),
			Distance:   h.Distance,
			Band:       r.cal.Band(h.Distance),
			Collection: tag,
			Metadata:   h.Payload,
		})
	}
	return docs, nil
}

// validate rejects malformed requests before any backend work.
func validate(req SearchRequest) error {
	if req.Query == "" {
		return fmt.Errorf("%w: query must not be empty", ErrInvalidQuery)
	}
	if req.Limit <= 0 || req.Limit > maxLimit {
		return fmt.Errorf("%w: limit %d outside 1..%d", ErrInvalidQuery, req.Limit, maxLimit)
	}
	if req.Threshold != nil && *req.Threshold < 0 {
		return fmt.Errorf("%w: threshold %v must not be negative", ErrInvalidQuery, *req.Threshold)
	}
	return validateFilter(req.Filter)
}

// validateFilter rejects filters with empty keys or valueless entries.
func validateFilter(filter map[string][]string) error {
	for key, values := range filter {
		if key == "" {
			return fmt.Errorf("%w: filter has an empty field name", ErrInvalidQuery)
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: filter field %q has no values", ErrInvalidQuery, key)
		}
		for _, v := range values {
			if v == "" {
				return fmt.Errorf("%w: filter field %q has an empty value", ErrInvalidQuery, key)
			}
		}
	}
	return nil
}

// dedupBySource collapses multiple chunks of one source document to its
// lowest-distance occurrence. docs must already be ordered ascending, so the
// first occurrence per source is the one kept and order is preserved.
// Results without a source pass through untouched.
func dedupBySource(docs []Document) []Document {
	out := docs[:0]
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.Source != "" {
			if seen[d.Source] {
				continue
			}
			seen[d.Source] = true
		}
		out = append(out, d)
	}
	return out
}

// trim caps docs at limit.
func trim(docs []Document, limit int) []Document {
	if len(docs) > limit {
		return docs[:limit]
	}
	return docs
}

// payloadString reads a string field from a payload map, "" when absent or
// not a string.
func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// payloadInt reads an integer field from a payload map. The backend returns
// integers as int64; records built in-process may carry int.
func payloadInt(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

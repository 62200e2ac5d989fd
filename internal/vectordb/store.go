package vectordb

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// payloadContentKey is the payload field holding the chunk text. Everything
// else in the payload is metadata.
const payloadContentKey = "content"

// Point is one chunk ready for storage: a deterministic ID, its embedding,
// and a flat scalar payload.
type Point struct {
	// ID is the chunk's UUID, derived from (source path, chunk index).
	ID string
	// Vector is the chunk's embedding.
	Vector []float32
	// Text is the chunk content, stored in the payload alongside metadata.
	Text string
	// Payload holds the chunk's metadata record as scalar fields.
	Payload map[string]any
}

// Hit is one scored result returned from a similarity query.
type Hit struct {
	// ID is the stored point's UUID.
	ID string
	// Text is the chunk content.
	Text string
	// Distance is the cosine distance to the query, lower is more similar.
	Distance float64
	// Payload holds the chunk's metadata, content excluded.
	Payload map[string]any
}

// Filter is an equality/membership predicate over payload fields. A single
// value matches exactly; multiple values match any of them.
type Filter map[string][]string

// CollectionStats describes one collection for info/ops surfaces.
type CollectionStats struct {
	// Name is the collection name.
	Name string
	// Points is the number of stored points.
	Points uint64
	// VectorSize is the embedding dimensionality, 0 when unknown.
	VectorSize uint64
	// Status is the backend's health status string for the collection.
	Status string
}

// Store executes collection-scoped operations over the shared client held
// by a [Manager]. All methods are safe for concurrent use; batching and
// ordering policy belong to callers.
type Store struct {
	mgr *Manager

	// mu guards ensured. Collections are created lazily on first write and
	// only checked against the backend once per process.
	mu      sync.Mutex
	ensured map[string]bool
}

// NewStore returns a Store issuing its calls through mgr's shared client.
func NewStore(mgr *Manager) *Store {
	return &Store{mgr: mgr, ensured: make(map[string]bool)}
}

// EnsureCollection creates the collection with the given vector size if it
// does not already exist. Concurrent calls for the same collection are
// serialized; the backend check runs once per process per collection.
func (s *Store) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[collection] {
		return nil
	}

	client, err := s.mgr.Client(ctx)
	if err != nil {
		return err
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectordb: failed to check collection %q: %w", collection, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("vectordb: failed to create collection %q: %w", collection, err)
		}
	}

	s.ensured[collection] = true
	return nil
}

// Upsert writes points into the collection with overwrite-on-conflict
// semantics: re-writing an existing ID replaces the stored point, so
// repeated ingestion converges instead of duplicating. The collection is
// created on first write using the batch's vector size.
func (s *Store) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx, collection, uint64(len(points[0].Vector))); err != nil {
		return err
	}

	client, err := s.mgr.Client(ctx)
	if err != nil {
		return err
	}

	qp := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload[payloadContentKey] = p.Text

		qp = append(qp, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err = client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qp,
	})
	if err != nil {
		return fmt.Errorf("vectordb: upsert of %d points into %q failed: %w", len(points), collection, err)
	}
	return nil
}

// Query returns the limit nearest points to vector under filter, ordered by
// ascending cosine distance. Qdrant reports cosine similarity (higher is
// closer); the store converts to distance 1-score so lower is better
// everywhere above this layer.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, limit int, filter Filter) ([]Hit, error) {
	client, err := s.mgr.Client(ctx)
	if err != nil {
		return nil, err
	}

	qlimit := uint64(limit)
	results, err := client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &qlimit,
		Filter:         filter.conditions(),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectordb: query against %q failed: %w", collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{
			ID:       r.Id.GetUuid(),
			Distance: 1 - float64(r.Score),
		}
		hit.Text, hit.Payload = splitPayload(r.Payload)
		hits = append(hits, hit)
	}
	return hits, nil
}

// Fetch returns up to limit points matching filter without scoring. Used
// for metadata-only lookups where no query text exists.
func (s *Store) Fetch(ctx context.Context, collection string, filter Filter, limit int) ([]Hit, error) {
	client, err := s.mgr.Client(ctx)
	if err != nil {
		return nil, err
	}

	flimit := uint32(limit)
	results, err := client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter.conditions(),
		Limit:          &flimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectordb: fetch from %q failed: %w", collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{ID: r.Id.GetUuid()}
		hit.Text, hit.Payload = splitPayload(r.Payload)
		hits = append(hits, hit)
	}
	return hits, nil
}

// PruneSource deletes the source's points whose chunk index is keep or
// higher. After re-ingesting a document that shrank to keep chunks, this
// removes the stale tail left from the longer version.
func (s *Store) PruneSource(ctx context.Context, collection, source string, keep int) error {
	client, err := s.mgr.Client(ctx)
	if err != nil {
		return err
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("source", source),
			qdrant.NewRange("chunk_index", &qdrant.Range{
				Gte: qdrant.PtrOf(float64(keep)),
			}),
		},
	}
	_, err = client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("vectordb: prune of %q from index %d in %q failed: %w", source, keep, collection, err)
	}
	return nil
}

// SetPayload merges fields into one stored point's payload, leaving other
// fields in place. Used by enrichment to fill inferred metadata.
func (s *Store) SetPayload(ctx context.Context, collection, id string, fields map[string]any) error {
	client, err := s.mgr.Client(ctx)
	if err != nil {
		return err
	}

	_, err = client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Payload:        qdrant.NewValueMap(fields),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("vectordb: set payload on %s in %q failed: %w", id, collection, err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context, collection string) (uint64, error) {
	client, err := s.mgr.Client(ctx)
	if err != nil {
		return 0, err
	}

	n, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("vectordb: count of %q failed: %w", collection, err)
	}
	return n, nil
}

// Collections lists the collection names present in the backend.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	client, err := s.mgr.Client(ctx)
	if err != nil {
		return nil, err
	}

	names, err := client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectordb: list collections failed: %w", err)
	}
	return names, nil
}

// CollectionInfo returns stats for one collection.
func (s *Store) CollectionInfo(ctx context.Context, collection string) (*CollectionStats, error) {
	client, err := s.mgr.Client(ctx)
	if err != nil {
		return nil, err
	}

	info, err := client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("vectordb: info for %q failed: %w", collection, err)
	}

	stats := &CollectionStats{
		Name:   collection,
		Status: info.GetStatus().String(),
	}
	if pc := info.GetPointsCount(); pc != 0 {
		stats.Points = pc
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		stats.VectorSize = params.GetSize()
	}
	return stats, nil
}

// DeleteCollection drops the collection and everything in it.
func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	client, err := s.mgr.Client(ctx)
	if err != nil {
		return err
	}

	if err := client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("vectordb: delete collection %q failed: %w", collection, err)
	}

	s.mu.Lock()
	delete(s.ensured, collection)
	s.mu.Unlock()
	return nil
}

// conditions converts the filter into backend match conditions. A nil or
// empty filter yields nil, meaning no filtering.
func (f Filter) conditions() *qdrant.Filter {
	if len(f) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(f))
	for field, values := range f {
		switch len(values) {
		case 0:
			continue
		case 1:
			must = append(must, qdrant.NewMatch(field, values[0]))
		default:
			must = append(must, qdrant.NewMatchKeywords(field, values...))
		}
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// splitPayload converts a stored payload into chunk text plus a scalar
// metadata map. Non-scalar values are dropped; the storage boundary only
// admits scalars, so anything else is foreign.
func splitPayload(payload map[string]*qdrant.Value) (string, map[string]any) {
	text := ""
	meta := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == payloadContentKey {
			text = v.GetStringValue()
			continue
		}
		switch v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			meta[k] = v.GetStringValue()
		case *qdrant.Value_IntegerValue:
			meta[k] = v.GetIntegerValue()
		case *qdrant.Value_DoubleValue:
			meta[k] = v.GetDoubleValue()
		case *qdrant.Value_BoolValue:
			meta[k] = v.GetBoolValue()
		}
	}
	return text, meta
}

package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/semdex/internal/vectordb"
)

// fakeStore serves canned chunks and records payload writes.
type fakeStore struct {
	hits     []vectordb.Hit
	fetchErr error
	setErr   error
	writes   map[string]map[string]any
}

func (f *fakeStore) Fetch(_ context.Context, _ string, _ vectordb.Filter, _ int) ([]vectordb.Hit, error) {
	return f.hits, f.fetchErr
}

func (f *fakeStore) SetPayload(_ context.Context, _ string, id string, fields map[string]any) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.writes == nil {
		f.writes = map[string]map[string]any{}
	}
	f.writes[id] = fields
	return nil
}

const deployDoc = "# Deploy Guide\nUse kubernetes and docker to deploy the pipeline."

func TestRun_InfersAndWritesAllChunks(t *testing.T) {
	t.Parallel()

	store := &fakeStore{hits: []vectordb.Hit{
		{ID: "c1", Text: deployDoc, Payload: map[string]any{"source": "docs/deploy.md"}},
		{ID: "c2", Text: "more deployment notes", Payload: map[string]any{"source": "docs/deploy.md"}},
	}}

	enricher, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := enricher.Run(t.Context(), "code_context", Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Scanned != 1 || result.Enriched != 1 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}
	if result.PointsUpdated != 2 {
		t.Errorf("points updated = %d, want both chunks", result.PointsUpdated)
	}

	// Both chunks of the document receive identical fields.
	for _, id := range []string{"c1", "c2"} {
		fields := store.writes[id]
		if fields == nil {
			t.Fatalf("chunk %s not written", id)
		}
		if fields["category"] != "devops" {
			t.Errorf("chunk %s category = %v", id, fields["category"])
		}
		if got, want := fields["category_confidence"], 0.75; got != want {
			t.Errorf("chunk %s category confidence = %v, want %v", id, got, want)
		}
		if fields["tech_stack"] != "docker,kubernetes" {
			t.Errorf("chunk %s tech stack = %v", id, fields["tech_stack"])
		}
		if fields["description"] != "Deploy Guide" {
			t.Errorf("chunk %s description = %v", id, fields["description"])
		}
		if got, want := fields["description_confidence"], 0.9; got != want {
			t.Errorf("chunk %s description confidence = %v, want %v", id, got, want)
		}
	}
}

func TestRun_SkipExistingLeavesPopulatedFields(t *testing.T) {
	t.Parallel()

	store := &fakeStore{hits: []vectordb.Hit{
		{ID: "c1", Text: deployDoc, Payload: map[string]any{
			"source":   "docs/deploy.md",
			"category": "infrastructure",
		}},
	}}

	enricher, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := enricher.Run(t.Context(), "code_context", Options{SkipExisting: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	fields := store.writes["c1"]
	if _, ok := fields["category"]; ok {
		t.Error("populated category overwritten despite SkipExisting")
	}
	if _, ok := fields["tech_stack"]; !ok {
		t.Error("missing tech_stack not backfilled")
	}
	if result.Enriched != 1 {
		t.Errorf("enriched = %d", result.Enriched)
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{hits: []vectordb.Hit{
		{ID: "c1", Text: deployDoc, Payload: map[string]any{"source": "docs/deploy.md"}},
	}}

	enricher, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := enricher.Run(t.Context(), "code_context", Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.writes) != 0 {
		t.Errorf("dry run wrote %d payloads", len(store.writes))
	}
	if result.PointsUpdated != 0 || !result.DryRun {
		t.Errorf("result = %+v", result)
	}
	// The report still carries what would have been written.
	if len(result.Updates) != 1 || len(result.Updates[0].Inferences) == 0 {
		t.Errorf("dry run updates = %+v", result.Updates)
	}
}

func TestRun_DropsLowConfidenceInferences(t *testing.T) {
	t.Parallel()

	// One weak keyword hit: category confidence 1/3 stays under the floor.
	store := &fakeStore{hits: []vectordb.Hit{
		{ID: "c1", Text: "the server is fine", Payload: map[string]any{"source": "notes.txt"}},
	}}

	enricher, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := enricher.Run(t.Context(), "code_context", Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	fields := store.writes["c1"]
	if _, ok := fields["category"]; ok {
		t.Error("weak category inference written")
	}
	// The first-line description still clears the floor at 0.6.
	if fields["description"] != "the server is fine" {
		t.Errorf("description = %v", fields["description"])
	}
	if result.Enriched != 1 {
		t.Errorf("enriched = %d", result.Enriched)
	}
}

func TestRun_SkipsEmptyDocuments(t *testing.T) {
	t.Parallel()

	store := &fakeStore{hits: []vectordb.Hit{
		{ID: "c1", Text: "", Payload: map[string]any{"source": "empty.md"}},
	}}

	enricher, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := enricher.Run(t.Context(), "code_context", Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 1 || result.Enriched != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Error("nil store accepted")
	}

	enricher, err := New(&fakeStore{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := enricher.Run(t.Context(), "", Options{}); err == nil {
		t.Error("empty collection accepted")
	}

	fetchErr := errors.New("backend down")
	enricher, err = New(&fakeStore{fetchErr: fetchErr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := enricher.Run(t.Context(), "code_context", Options{}); !errors.Is(err, fetchErr) {
		t.Errorf("Run() error = %v, want wrapped fetch error", err)
	}

	setErr := errors.New("write refused")
	enricher, err = New(&fakeStore{
		hits:   []vectordb.Hit{{ID: "c1", Text: deployDoc, Payload: map[string]any{"source": "docs/deploy.md"}}},
		setErr: setErr,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := enricher.Run(t.Context(), "code_context", Options{})
	if !errors.Is(err, setErr) {
		t.Errorf("Run() error = %v, want wrapped write error", err)
	}
	if result == nil {
		t.Error("failed run should return the partial result")
	}
}

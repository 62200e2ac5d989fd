package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/semdex/internal/retrieval"
	"github.com/54b3r/semdex/internal/vectordb"
)

// fakeSearch is a test double for the searcher interface. It records which
// method was called and with what arguments.
type fakeSearch struct {
	docs            []retrieval.Document
	err             error
	method          string
	lastReq         retrieval.SearchRequest
	lastCollections []string
	lastCategory    string
}

func (f *fakeSearch) Search(_ context.Context, req retrieval.SearchRequest) ([]retrieval.Document, error) {
	f.method, f.lastReq = "search", req
	return f.docs, f.err
}

func (f *fakeSearch) SearchAll(_ context.Context, collections []string, req retrieval.SearchRequest) ([]retrieval.Document, error) {
	f.method, f.lastCollections, f.lastReq = "search_all", collections, req
	return f.docs, f.err
}

func (f *fakeSearch) SearchCategory(_ context.Context, req retrieval.SearchRequest, category string) ([]retrieval.Document, error) {
	f.method, f.lastCategory, f.lastReq = "search_category", category, req
	return f.docs, f.err
}

// fakeBrowser is a test double for the collectionBrowser interface.
type fakeBrowser struct {
	names    []string
	stats    *vectordb.CollectionStats
	listErr  error
	statsErr error
}

func (f *fakeBrowser) Collections(_ context.Context) ([]string, error) {
	return f.names, f.listErr
}

func (f *fakeBrowser) CollectionInfo(_ context.Context, _ string) (*vectordb.CollectionStats, error) {
	return f.stats, f.statsErr
}

// newTestServer builds a *Server around fakes with a fresh isolated metrics
// registry, bypassing New so no listener or eviction goroutine is started.
func newTestServer() *Server {
	return newSearchTestServer(&fakeSearch{}, &fakeBrowser{})
}

func newSearchTestServer(search *fakeSearch, browser *fakeBrowser) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		searcher:    search,
		collections: browser,
		cfg: &Config{
			SearchCollections: []string{"code_context", "agents_analysis"},
			MetricsRegistry:   reg,
			MetricsGatherer:   reg,
		},
		log:     slog.Default(),
		metrics: newServerMetrics(reg),
	}
}

func searchReq(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
}

func TestHandleSearch_SingleCollection(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{docs: []retrieval.Document{
		{ID: "1", Source: "auth.md", Text: "bearer tokens", Distance: 0.3, Band: "excellent"},
		{ID: "2", Source: "session.md", Text: "cookies", Distance: 0.9, Band: "good"},
	}}
	s := newSearchTestServer(search, &fakeBrowser{})

	w := httptest.NewRecorder()
	s.handleSearch(w, searchReq(`{"query":"how does auth work","collection":"docs"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if search.method != "search" {
		t.Errorf("dispatched to %q, want single-collection search", search.method)
	}
	if search.lastReq.Collection != "docs" || search.lastReq.Limit != defaultSearchLimit {
		t.Errorf("backend request = %+v", search.lastReq)
	}

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Results) != 2 {
		t.Fatalf("count = %d, results = %d", resp.Count, len(resp.Results))
	}
	first := resp.Results[0]
	if first.Source != "auth.md" || first.Distance != 0.3 || first.Band != "excellent" {
		t.Errorf("first result = %+v", first)
	}
}

func TestHandleSearch_RoutesByRequestShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantMethod string
		check      func(t *testing.T, f *fakeSearch)
	}{
		{
			name:       "explicit collections fan out",
			body:       `{"query":"q","collections":["a","b"]}`,
			wantMethod: "search_all",
			check: func(t *testing.T, f *fakeSearch) {
				if len(f.lastCollections) != 2 || f.lastCollections[0] != "a" {
					t.Errorf("collections = %v", f.lastCollections)
				}
			},
		},
		{
			name:       "category pins the category search",
			body:       `{"query":"q","collection":"agents_analysis","category":"testing"}`,
			wantMethod: "search_category",
			check: func(t *testing.T, f *fakeSearch) {
				if f.lastCategory != "testing" {
					t.Errorf("category = %q", f.lastCategory)
				}
			},
		},
		{
			name:       "no collection uses configured defaults",
			body:       `{"query":"q"}`,
			wantMethod: "search_all",
			check: func(t *testing.T, f *fakeSearch) {
				want := []string{"code_context", "agents_analysis"}
				if len(f.lastCollections) != 2 || f.lastCollections[0] != want[0] || f.lastCollections[1] != want[1] {
					t.Errorf("collections = %v, want %v", f.lastCollections, want)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			search := &fakeSearch{}
			s := newSearchTestServer(search, &fakeBrowser{})

			w := httptest.NewRecorder()
			s.handleSearch(w, searchReq(tc.body))

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
			}
			if search.method != tc.wantMethod {
				t.Errorf("dispatched to %q, want %q", search.method, tc.wantMethod)
			}
			tc.check(t, search)
		})
	}
}

func TestHandleSearch_PassesTunables(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{}
	s := newSearchTestServer(search, &fakeBrowser{})

	w := httptest.NewRecorder()
	s.handleSearch(w, searchReq(`{"query":"q","collection":"docs","limit":3,"threshold":0.8,"filter":{"category":["devops"]}}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	req := search.lastReq
	if req.Limit != 3 {
		t.Errorf("limit = %d", req.Limit)
	}
	if req.Threshold == nil || *req.Threshold != 0.8 {
		t.Errorf("threshold = %v", req.Threshold)
	}
	if got := req.Filter["category"]; len(got) != 1 || got[0] != "devops" {
		t.Errorf("filter = %v", req.Filter)
	}
}

func TestHandleSearch_InvalidQueryIs400(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{err: fmt.Errorf("%w: query must not be empty", retrieval.ErrInvalidQuery)}
	s := newSearchTestServer(search, &fakeBrowser{})

	w := httptest.NewRecorder()
	s.handleSearch(w, searchReq(`{"query":"","collection":"docs"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid query, got %d", w.Code)
	}
}

func TestHandleSearch_BackendErrorIs500(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{err: errors.New("qdrant unreachable")}
	s := newSearchTestServer(search, &fakeBrowser{})

	w := httptest.NewRecorder()
	s.handleSearch(w, searchReq(`{"query":"q","collection":"docs"}`))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for backend error, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "qdrant") {
		t.Error("backend error details leaked to the client")
	}
}

func TestHandleSearch_MalformedBodyIs400(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := httptest.NewRecorder()
	s.handleSearch(w, searchReq(`{not json`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

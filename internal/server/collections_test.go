package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/54b3r/semdex/internal/vectordb"
)

func TestHandleCollections_ListsNames(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{names: []string{"code_context", "agents_analysis"}}
	s := newSearchTestServer(&fakeSearch{}, browser)

	w := httptest.NewRecorder()
	s.handleCollections(w, httptest.NewRequest(http.MethodGet, "/api/collections", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp collectionsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Collections) != 2 || resp.Collections[0] != "code_context" {
		t.Errorf("collections = %v", resp.Collections)
	}
}

func TestHandleCollections_BackendErrorIs500(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{listErr: errors.New("qdrant unreachable")}
	s := newSearchTestServer(&fakeSearch{}, browser)

	w := httptest.NewRecorder()
	s.handleCollections(w, httptest.NewRequest(http.MethodGet, "/api/collections", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHandleCollectionInfo_ReturnsStats(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{stats: &vectordb.CollectionStats{
		Name:       "code_context",
		Points:     1234,
		VectorSize: 768,
		Status:     "green",
	}}
	s := newSearchTestServer(&fakeSearch{}, browser)

	req := httptest.NewRequest(http.MethodGet, "/api/collections/code_context", nil)
	req.SetPathValue("name", "code_context")
	w := httptest.NewRecorder()
	s.handleCollectionInfo(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp collectionInfoResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Name != "code_context" || resp.Points != 1234 || resp.VectorSize != 768 || resp.Status != "green" {
		t.Errorf("info = %+v", resp)
	}
}

func TestHandleCollectionInfo_UnknownIs404(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{statsErr: errors.New("collection missing")}
	s := newSearchTestServer(&fakeSearch{}, browser)

	req := httptest.NewRequest(http.MethodGet, "/api/collections/missing", nil)
	req.SetPathValue("name", "missing")
	w := httptest.NewRecorder()
	s.handleCollectionInfo(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

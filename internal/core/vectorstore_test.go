package core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/weaviate/weaviate/entities/models"
)

func searchResponse(docs ...map[string]interface{}) *models.GraphQLResponse {
	items := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		items = append(items, d)
	}
	return &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{documentClass: items},
		},
	}
}

func TestParseSearchResponse_ExtractsFieldsAndScore(t *testing.T) {
	resp := searchResponse(
		map[string]interface{}{
			"title":       "safe_sex.txt",
			"content":     "condoms reduce risk",
			"file_path":   "documents/safe_sex.txt",
			"_additional": map[string]interface{}{"distance": 0.25},
		},
		map[string]interface{}{
			"title":       "hormones.txt",
			"content":     "hormonal cycles",
			"file_path":   "documents/hormones.txt",
			"_additional": map[string]interface{}{"distance": 0.6},
		},
	)

	results, err := parseSearchResponse(resp)
	if err != nil {
		t.Fatalf("parseSearchResponse failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "safe_sex.txt" || results[0].FilePath != "documents/safe_sex.txt" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[0].Score != 0.75 {
		t.Fatalf("score = %f, want 0.75 (1 - distance)", results[0].Score)
	}
}

func TestParseSearchResponse_MissingAdditionalLeavesZeroScore(t *testing.T) {
	resp := searchResponse(map[string]interface{}{
		"title": "plain.txt", "content": "c", "file_path": "documents/plain.txt",
	})

	results, err := parseSearchResponse(resp)
	if err != nil {
		t.Fatalf("parseSearchResponse failed: %v", err)
	}
	if len(results) != 1 || results[0].Score != 0 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestParseSearchResponse_EmptyDataReturnsNothing(t *testing.T) {
	results, err := parseSearchResponse(&models.GraphQLResponse{Data: map[string]models.JSONObject{}})
	if err != nil {
		t.Fatalf("parseSearchResponse failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestParseSearchResponse_SurfacesGraphQLErrors(t *testing.T) {
	resp := &models.GraphQLResponse{
		Errors: []*models.GraphQLError{{Message: "class Document not found"}},
	}
	if _, err := parseSearchResponse(resp); err == nil {
		t.Fatal("expected graphql errors to surface")
	}
}

func TestParseCountResponse(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Aggregate": map[string]interface{}{
				documentClass: []interface{}{
					map[string]interface{}{"meta": map[string]interface{}{"count": float64(42)}},
				},
			},
		},
	}

	count, err := parseCountResponse(resp)
	if err != nil {
		t.Fatalf("parseCountResponse failed: %v", err)
	}
	if count != 42 {
		t.Fatalf("count = %d, want 42", count)
	}
}

func TestParseCountResponse_EmptyCollection(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Aggregate": map[string]interface{}{documentClass: []interface{}{}},
		},
	}
	count, err := parseCountResponse(resp)
	if err != nil {
		t.Fatalf("parseCountResponse failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string, dimensions int) ([]float32, error) {
	e.calls++
	return make([]float32, ClampDimensions(dimensions)), nil
}

// fakeWeaviate serves just enough of the REST surface for the client to pass
// its readiness and existence checks.
func fakeWeaviate(t *testing.T, existsStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/.well-known/ready":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/v1/meta":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"version":"1.26.6"}`)
		case r.Method == http.MethodHead && strings.HasPrefix(r.URL.Path, "/v1/objects/"):
			w.WriteHeader(existsStatus)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUpsertDocument_ExistingPathSkipsEmbedding(t *testing.T) {
	srv := fakeWeaviate(t, http.StatusNoContent)

	embedder := &countingEmbedder{}
	store := NewVectorStore(srv.URL, "", "", true, embedder)

	id, err := store.UpsertDocument(context.Background(), "doc.txt", "stable content", "documents/doc.txt")
	if err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}
	if id != DocumentID("documents/doc.txt") {
		t.Fatalf("id = %s, want the deterministic path id", id)
	}
	if embedder.calls != 0 {
		t.Fatalf("existing document re-embedded %d times, want 0", embedder.calls)
	}
}

func TestNewVectorStore_SelectsKeyByAccessLevel(t *testing.T) {
	admin := NewVectorStore("http://localhost:8080", "admin-key", "user-key", true, nil)
	if admin.apiKey != "admin-key" {
		t.Fatalf("admin store key = %q", admin.apiKey)
	}
	user := NewVectorStore("http://localhost:8080", "admin-key", "user-key", false, nil)
	if user.apiKey != "user-key" {
		t.Fatalf("user store key = %q", user.apiKey)
	}
}

func TestVectorStore_ConnectRejectsMalformedURL(t *testing.T) {
	v := NewVectorStore("://not-a-url", "", "", false, nil)
	if err := v.Connect(); err == nil {
		t.Fatal("expected malformed URL to fail Connect")
	}
}

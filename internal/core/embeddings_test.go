package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions"`
}

func newEmbeddingTestService(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	return NewEmbeddingService(client)
}

func TestEmbed_ReturnsProviderVector(t *testing.T) {
	svc := newEmbeddingTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float64{0.1, 0.2, 0.3}},
			},
			"model": "text-embedding-3-large",
			"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	})

	vector, err := svc.Embed(context.Background(), "hello", 3)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("vector length = %d, want 3", len(vector))
	}
	if vector[0] == 0 && vector[1] == 0 && vector[2] == 0 {
		t.Fatal("expected a non-zero vector")
	}
}

func TestEmbed_ReplacesNewlinesAndClampsDimensions(t *testing.T) {
	var got embeddingRequest
	svc := newEmbeddingTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float64{0.5}},
			},
			"model": "text-embedding-3-large",
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	})

	if _, err := svc.Embed(context.Background(), "line one\nline two", 5000); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if got.Input != "line one line two" {
		t.Fatalf("input = %q, newlines not replaced", got.Input)
	}
	if got.Dimensions != MaxEmbeddingDimensions {
		t.Fatalf("dimensions = %d, want clamp to %d", got.Dimensions, MaxEmbeddingDimensions)
	}
}

func TestEmbed_ReturnsZeroVectorOfRequestedLengthOnFailure(t *testing.T) {
	svc := newEmbeddingTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	vector, err := svc.Embed(context.Background(), "hello", 512)
	if err == nil {
		t.Fatal("expected the provider error alongside the zero vector")
	}
	if len(vector) != 512 {
		t.Fatalf("vector length = %d, want 512 even on failure", len(vector))
	}
	if !IsZeroVector(vector) {
		t.Fatal("expected an all-zero vector on provider failure")
	}
}

func TestEmbed_DefaultDimensionsWhenUnspecified(t *testing.T) {
	var got embeddingRequest
	svc := newEmbeddingTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float64{0.5}},
			},
			"model": "text-embedding-3-large",
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	})

	if _, err := svc.Embed(context.Background(), "hello", 0); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if got.Dimensions != DefaultEmbeddingDimensions {
		t.Fatalf("dimensions = %d, want default %d", got.Dimensions, DefaultEmbeddingDimensions)
	}
}

func TestIsZeroVector(t *testing.T) {
	if !IsZeroVector(make([]float32, 10)) {
		t.Fatal("all-zero vector not detected")
	}
	if IsZeroVector([]float32{0, 0.1, 0}) {
		t.Fatal("non-zero vector misdetected")
	}
}

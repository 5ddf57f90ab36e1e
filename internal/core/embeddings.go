package core

import (
	"context"
	"log"
	"strings"

	openai "github.com/openai/openai-go/v2"
)

const embeddingModel = openai.EmbeddingModelTextEmbedding3Large

// Embedder turns text into a fixed-length vector. Implementations must return
// a vector of exactly the requested (clamped) dimensionality; on provider
// failure the vector is all zeros and the error is returned alongside it so
// callers can classify the failure without ever handling a short vector.
type Embedder interface {
	Embed(ctx context.Context, text string, dimensions int) ([]float32, error)
}

// EmbeddingService generates embeddings through the OpenAI API.
type EmbeddingService struct {
	client openai.Client
}

func NewEmbeddingService(client openai.Client) *EmbeddingService {
	return &EmbeddingService{client: client}
}

func (s *EmbeddingService) Embed(ctx context.Context, text string, dimensions int) ([]float32, error) {
	dimensions = ClampDimensions(dimensions)

	// Newlines degrade embedding quality; flatten before submission.
	text = strings.ReplaceAll(text, "\n", " ")

	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      embeddingModel,
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Dimensions: openai.Int(int64(dimensions)),
	})
	if err != nil {
		log.Printf("Embedding request failed, returning zero vector: %v", err)
		return make([]float32, dimensions), err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		log.Println("Embedding response contained no data, returning zero vector")
		return make([]float32, dimensions), nil
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// IsZeroVector reports whether the vector carries no signal, which is how a
// degraded embedding presents to callers.
func IsZeroVector(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}
	return true
}

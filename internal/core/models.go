package core

// Embedding dimensions accepted by the system. Out-of-range requests clamp
// rather than error; zero or negative means "use the default".
const (
	DefaultEmbeddingDimensions = 1536
	MinEmbeddingDimensions     = 256
	MaxEmbeddingDimensions     = 3072
)

// Result limits per operation.
const (
	SearchLimitDefault = 5
	SearchLimitMax     = 20
	ChatLimitDefault   = 3
	ChatLimitMax       = 10

	MaxQuestionLength = 1000
)

// FallbackModelSentinel marks answers produced without a generative call.
const FallbackModelSentinel = "context-fallback"

// ModelConfig is one entry of the chat model registry.
type ModelConfig struct {
	Name        string  `json:"name"`
	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	CostTier    string  `json:"cost_tier"`
}

const DefaultChatModel = "gpt-4o-mini"

// modelRegistry is the single allow-list consulted everywhere a model name is
// accepted from a client.
var modelRegistry = map[string]ModelConfig{
	"gpt-4o":      {Name: "gpt-4o", MaxTokens: 1000, Temperature: 0.3, CostTier: "premium"},
	"gpt-4o-mini": {Name: "gpt-4o-mini", MaxTokens: 1000, Temperature: 0.3, CostTier: "standard"},
	"gpt-4-turbo": {Name: "gpt-4-turbo", MaxTokens: 1000, Temperature: 0.3, CostTier: "premium"},
}

// ResolveModel maps a requested model name to its registry entry,
// substituting the default for unknown names.
func ResolveModel(name string) ModelConfig {
	if cfg, ok := modelRegistry[name]; ok {
		return cfg
	}
	return modelRegistry[DefaultChatModel]
}

// AllowedModels returns the registered model names.
func AllowedModels() []string {
	names := make([]string, 0, len(modelRegistry))
	for name := range modelRegistry {
		names = append(names, name)
	}
	return names
}

// ClampLimit normalizes a client-supplied result limit. Zero and negative
// values take the default; values above max are capped.
func ClampLimit(limit, max, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// ClampDimensions normalizes a requested embedding dimensionality.
func ClampDimensions(dimensions int) int {
	if dimensions <= 0 {
		return DefaultEmbeddingDimensions
	}
	if dimensions < MinEmbeddingDimensions {
		return MinEmbeddingDimensions
	}
	if dimensions > MaxEmbeddingDimensions {
		return MaxEmbeddingDimensions
	}
	return dimensions
}

// SearchResult is one retrieved document, ordered by descending score.
type SearchResult struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	FilePath string  `json:"file_path"`
	Score    float32 `json:"score"`
}

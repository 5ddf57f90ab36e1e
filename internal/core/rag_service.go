package core

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const contextDelimiter = "\n\n---\n\n"

// Search failure classifications, used to shape the user-facing message when
// retrieval degrades.
const (
	SearchErrorNone      = ""
	SearchErrorQuota     = "quota_exceeded"
	SearchErrorDimension = "dimension_mismatch"
	SearchErrorGeneric   = "search_error"
)

// RetrievedContext is the outcome of one retrieval pass.
type RetrievedContext struct {
	Context      string
	Sources      []string
	Results      []SearchResult
	UsedFallback bool
	ErrorType    string
}

// RAGService retrieves relevant documents and assembles the bounded context
// string handed to the LLM. Vector search failures degrade to the lexical
// fallback instead of failing the request.
type RAGService struct {
	store    VectorSearcher
	fallback *FallbackSearcher
}

func NewRAGService(store VectorSearcher, fallback *FallbackSearcher) *RAGService {
	return &RAGService{store: store, fallback: fallback}
}

// Retrieve runs vector search, falling back to lexical search on error, and
// assembles the labeled context blocks.
func (s *RAGService) Retrieve(ctx context.Context, query string, limit, dimensions int) RetrievedContext {
	var rc RetrievedContext

	results, err := s.store.Search(ctx, query, limit, dimensions)
	if err != nil {
		rc.ErrorType = classifySearchError(err)
		log.Printf("Vector search failed (%s), using lexical fallback: %v", rc.ErrorType, err)
		results = s.fallback.Search(query, limit)
		rc.UsedFallback = true
	}

	rc.Results = results
	rc.Context, rc.Sources = assembleContext(results)
	return rc
}

// SearchDocuments serves the /search surface: on vector failure it returns
// fallback results rather than an error, so the endpoint never hard-fails on
// upstream degradation. The second return reports whether the fallback ran.
func (s *RAGService) SearchDocuments(ctx context.Context, query string, limit, dimensions int) ([]SearchResult, bool) {
	results, err := s.store.Search(ctx, query, limit, dimensions)
	if err != nil {
		log.Printf("Vector search failed, using lexical fallback: %v", err)
		return s.fallback.Search(query, limit), true
	}
	return results, false
}

// assembleContext builds the labeled context string and the ordered source
// list. Results with empty content contribute nothing.
func assembleContext(results []SearchResult) (string, []string) {
	var blocks []string
	var sources []string
	for _, r := range results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Document: %s\n%s", r.Title, r.Content))
		sources = append(sources, r.Title)
	}
	return strings.Join(blocks, contextDelimiter), sources
}

// classifySearchError buckets a retrieval failure so the canned NO_CONTEXT
// answer can explain what went wrong.
func classifySearchError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return SearchErrorQuota
	case strings.Contains(msg, "dimension"):
		return SearchErrorDimension
	default:
		return SearchErrorGeneric
	}
}

package core

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const documentClass = "Document"

// VectorSearcher is the retrieval surface the orchestrator depends on.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit, dimensions int) ([]SearchResult, error)
}

// DocumentUpserter is the write surface the ingestion pipeline depends on.
type DocumentUpserter interface {
	UpsertDocument(ctx context.Context, title, content, filePath string) (string, error)
}

// VectorStore manages the connection to the Weaviate document collection.
// Construct it once at startup and inject it; Connect/Close bound its
// lifecycle explicitly.
type VectorStore struct {
	weaviateURL string
	apiKey      string
	admin       bool
	embedder    Embedder

	mu     sync.Mutex
	client *weaviate.Client
}

// NewVectorStore builds a store using the admin or the restricted key
// depending on the access level requested.
func NewVectorStore(weaviateURL, adminKey, userKey string, admin bool, embedder Embedder) *VectorStore {
	apiKey := userKey
	if admin {
		apiKey = adminKey
	}
	return &VectorStore{
		weaviateURL: weaviateURL,
		apiKey:      apiKey,
		admin:       admin,
		embedder:    embedder,
	}
}

// Connect establishes an authenticated session.
func (v *VectorStore) Connect() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connectLocked()
}

func (v *VectorStore) connectLocked() error {
	parsed, err := url.Parse(v.weaviateURL)
	if err != nil {
		return fmt.Errorf("invalid weaviate URL %q: %w", v.weaviateURL, err)
	}

	cfg := weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	}
	if v.apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: v.apiKey}
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create weaviate client: %w", err)
	}
	v.client = client
	return nil
}

// Close releases the session. The underlying client holds no sockets open
// between calls, so dropping the handle is sufficient.
func (v *VectorStore) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.client = nil
}

// ensureConnected lazily verifies the session before use and reconnects
// transparently when it is dead.
func (v *VectorStore) ensureConnected(ctx context.Context) (*weaviate.Client, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.client == nil {
		if err := v.connectLocked(); err != nil {
			return nil, err
		}
	}

	ready, err := v.client.Misc().ReadyChecker().Do(ctx)
	if err != nil || !ready {
		log.Println("Reconnecting to Weaviate...")
		if err := v.connectLocked(); err != nil {
			return nil, err
		}
		ready, err = v.client.Misc().ReadyChecker().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("weaviate not reachable: %w", err)
		}
		if !ready {
			return nil, fmt.Errorf("weaviate not ready")
		}
	}
	return v.client, nil
}

// Ready reports whether the vector store answers its readiness probe.
func (v *VectorStore) Ready(ctx context.Context) bool {
	_, err := v.ensureConnected(ctx)
	return err == nil
}

// EnsureSchema idempotently creates the Document collection with explicit
// field definitions. Vectors are always supplied by us, never by a module.
func (v *VectorStore) EnsureSchema(ctx context.Context) error {
	client, err := v.ensureConnected(ctx)
	if err != nil {
		return err
	}

	exists, err := client.Schema().ClassExistenceChecker().WithClassName(documentClass).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check Document collection: %w", err)
	}
	if exists {
		log.Println("Document collection already exists")
		return nil
	}

	class := &models.Class{
		Class:       documentClass,
		Description: "A document in the knowledge base",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}, Description: "The content of the document"},
			{Name: "title", DataType: []string{"string"}, Description: "The title of the document"},
			{Name: "file_path", DataType: []string{"string"}, Description: "Path to the original document"},
		},
	}
	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create Document collection: %w", err)
	}
	log.Println("Created Document collection")
	return nil
}

// DocumentID derives the deterministic identifier for a document from its
// normalized file path (UUIDv5 in the URL namespace). One record per distinct
// normalized path.
func DocumentID(filePath string) string {
	normalized := filepath.Clean(filePath)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(normalized)).String()
}

// UpsertDocument stores a document with its embedding. Re-ingesting an
// existing path is a no-op: the existence check runs before the embedding
// call so unchanged documents are never re-embedded.
func (v *VectorStore) UpsertDocument(ctx context.Context, title, content, filePath string) (string, error) {
	client, err := v.ensureConnected(ctx)
	if err != nil {
		return "", err
	}

	normalized := filepath.Clean(filePath)
	id := DocumentID(normalized)

	exists, err := client.Data().Checker().WithClassName(documentClass).WithID(id).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to check document existence: %w", err)
	}
	if exists {
		log.Printf("Document %s already exists with id %s", title, id)
		return id, nil
	}

	vector, err := v.embedder.Embed(ctx, content, DefaultEmbeddingDimensions)
	if err != nil {
		return "", fmt.Errorf("failed to embed document %s: %w", title, err)
	}

	_, err = client.Data().Creator().
		WithClassName(documentClass).
		WithID(id).
		WithProperties(map[string]interface{}{
			"title":     title,
			"content":   content,
			"file_path": normalized,
		}).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		// A concurrent ingest of the same path may have won the race; the
		// conflict means the record is there, which is what we wanted.
		if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "422") {
			log.Printf("Document %s already exists with id %s", title, id)
			return id, nil
		}
		return "", fmt.Errorf("failed to store document %s: %w", title, err)
	}

	log.Printf("Document %s stored with id %s", title, id)
	return id, nil
}

// Search embeds the query and returns up to limit nearest documents, best
// match first.
func (v *VectorStore) Search(ctx context.Context, query string, limit, dimensions int) ([]SearchResult, error) {
	client, err := v.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	vector, err := v.embedder.Embed(ctx, query, dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	nearVector := client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "title"},
		{Name: "content"},
		{Name: "file_path"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	resp, err := client.GraphQL().Get().
		WithClassName(documentClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results, err := parseSearchResponse(resp)
	if err != nil {
		return nil, err
	}
	log.Printf("Search completed: found %d results", len(results))
	return results, nil
}

// DeleteByID removes a single document record.
func (v *VectorStore) DeleteByID(ctx context.Context, id string) error {
	client, err := v.ensureConnected(ctx)
	if err != nil {
		return err
	}
	if err := client.Data().Deleter().WithClassName(documentClass).WithID(id).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// Count returns the total number of documents in the collection.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	client, err := v.ensureConnected(ctx)
	if err != nil {
		return 0, err
	}

	resp, err := client.GraphQL().Aggregate().
		WithClassName(documentClass).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("aggregate count failed: %w", err)
	}
	return parseCountResponse(resp)
}

// List fetches up to limit documents without similarity ordering, for stats
// and operational listings.
func (v *VectorStore) List(ctx context.Context, limit int) ([]SearchResult, error) {
	client, err := v.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.GraphQL().Get().
		WithClassName(documentClass).
		WithFields(graphql.Field{Name: "title"}, graphql.Field{Name: "file_path"}).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("document listing failed: %w", err)
	}
	return parseSearchResponse(resp)
}

// parseSearchResponse unpacks a GraphQL Get response for the Document class.
func parseSearchResponse(resp *models.GraphQLResponse) ([]SearchResult, error) {
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
	}

	get, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	raw, ok := get[documentClass].([]interface{})
	if !ok {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		result := SearchResult{
			Title:    stringProp(obj, "title"),
			Content:  stringProp(obj, "content"),
			FilePath: stringProp(obj, "file_path"),
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				// Cosine distance in [0, 2]; flip so higher is better.
				result.Score = 1 - float32(distance)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// parseCountResponse unpacks an Aggregate meta count response.
func parseCountResponse(resp *models.GraphQLResponse) (int, error) {
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("graphql errors: %s", resp.Errors[0].Message)
	}
	aggregate, ok := resp.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("malformed aggregate response")
	}
	raw, ok := aggregate[documentClass].([]interface{})
	if !ok || len(raw) == 0 {
		return 0, nil
	}
	obj, ok := raw[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("malformed aggregate entry")
	}
	meta, ok := obj["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("malformed aggregate meta")
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func stringProp(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

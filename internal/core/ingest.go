package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Ingestor reads text files into the vector store. Ingestion is idempotent:
// a file whose path was already stored is skipped by the store without a
// second embedding call, but still counts as processed.
type Ingestor struct {
	store        DocumentUpserter
	documentsDir string
}

func NewIngestor(store DocumentUpserter, documentsDir string) *Ingestor {
	return &Ingestor{store: store, documentsDir: documentsDir}
}

// IngestDirectory processes every .txt file at the top level of the
// documents directory (non-recursive) and returns the number of files
// processed, already-present files included.
func (ing *Ingestor) IngestDirectory(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(ing.documentsDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read documents directory %s: %w", ing.documentsDir, err)
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		path := filepath.Join(ing.documentsDir, entry.Name())
		log.Printf("Processing %s...", entry.Name())
		if _, err := ing.IngestFile(ctx, path); err != nil {
			log.Printf("Failed to ingest %s: %v. Skipping.", path, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// IngestFile stores a single document; the file name serves as its title.
// Invoked reactively when a document is uploaded through the API.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (string, error) {
	contentBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", path, err)
	}

	title := filepath.Base(path)
	id, err := ing.store.UpsertDocument(ctx, title, string(contentBytes), path)
	if err != nil {
		return "", err
	}
	return id, nil
}

package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type fakeUpserter struct {
	calls []string
	ids   map[string]string
	err   error
}

func (f *fakeUpserter) UpsertDocument(ctx context.Context, title, content, filePath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, filePath)
	if f.ids == nil {
		f.ids = make(map[string]string)
	}
	id, ok := f.ids[filePath]
	if !ok {
		id = DocumentID(filePath)
		f.ids[filePath] = id
	}
	return id, nil
}

func TestIngestDirectory_ProcessesOnlyTopLevelTextFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "alpha")
	writeDoc(t, dir, "b.txt", "beta")
	writeDoc(t, dir, "skip.md", "markdown")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeDoc(t, filepath.Join(dir, "nested"), "c.txt", "nested")

	upserter := &fakeUpserter{}
	count, err := NewIngestor(upserter, dir).IngestDirectory(context.Background())
	if err != nil {
		t.Fatalf("IngestDirectory failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 processed files, got %d", count)
	}
	if len(upserter.calls) != 2 {
		t.Fatalf("expected 2 upsert calls, got %d", len(upserter.calls))
	}
}

func TestIngestFile_UsesFileNameAsTitle(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "safe_sex.txt", "condoms reduce risk")

	var gotTitle string
	upserter := upserterFunc(func(ctx context.Context, title, content, filePath string) (string, error) {
		gotTitle = title
		return DocumentID(filePath), nil
	})

	path := filepath.Join(dir, "safe_sex.txt")
	if _, err := NewIngestor(upserter, dir).IngestFile(context.Background(), path); err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if gotTitle != "safe_sex.txt" {
		t.Fatalf("title = %q, want safe_sex.txt", gotTitle)
	}
}

type upserterFunc func(ctx context.Context, title, content, filePath string) (string, error)

func (f upserterFunc) UpsertDocument(ctx context.Context, title, content, filePath string) (string, error) {
	return f(ctx, title, content, filePath)
}

func TestIngestFile_SamePathYieldsSameID(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.txt", "stable content")
	path := filepath.Join(dir, "doc.txt")

	upserter := &fakeUpserter{}
	ing := NewIngestor(upserter, dir)

	first, err := ing.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	second, err := ing.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if first != second {
		t.Fatalf("re-ingesting the same path changed the id: %s != %s", first, second)
	}
}

func TestDocumentID_NormalizesPath(t *testing.T) {
	a := DocumentID("documents/safe_sex.txt")
	b := DocumentID("documents//safe_sex.txt")
	c := DocumentID("documents/./safe_sex.txt")
	if a != b || a != c {
		t.Fatalf("equivalent paths produced different ids: %s %s %s", a, b, c)
	}

	other := DocumentID("documents/other.txt")
	if a == other {
		t.Fatalf("distinct paths produced the same id")
	}
}

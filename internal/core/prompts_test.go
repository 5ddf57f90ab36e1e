package core

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManager_LoadMissingReturnsFalse(t *testing.T) {
	pm := NewPromptManager(t.TempDir())
	if _, ok := pm.Load("chat_system"); ok {
		t.Fatal("expected missing prompt to report false")
	}
}

func TestPromptManager_SaveThenLoad(t *testing.T) {
	pm := NewPromptManager(t.TempDir())
	if err := pm.Save("chat_system", "You are terse.\n"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok := pm.Load("chat_system")
	if !ok {
		t.Fatal("saved prompt not found")
	}
	if got != "You are terse." {
		t.Fatalf("loaded prompt = %q, want trimmed content", got)
	}
}

func TestPromptManager_ListStripsExtension(t *testing.T) {
	pm := NewPromptManager(t.TempDir())
	for _, name := range []string{"chat_system", "triage"} {
		if err := pm.Save(name, "x"); err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
	}

	names := pm.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 prompts, got %v", names)
	}
	for _, name := range names {
		if strings.HasSuffix(name, ".txt") {
			t.Fatalf("name %q should not carry the extension", name)
		}
	}
}

func TestPromptManager_DefaultIsNonEmpty(t *testing.T) {
	pm := NewPromptManager(t.TempDir())
	if pm.Default() == "" {
		t.Fatal("built-in default prompt must not be empty")
	}
}

func TestPromptManager_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	pm := NewPromptManager(dir)
	if err := pm.Save("chat_system", "hello"); err != nil {
		t.Fatalf("Save into fresh directory failed: %v", err)
	}
	if _, ok := pm.Load("chat_system"); !ok {
		t.Fatal("prompt not readable after save")
	}
}

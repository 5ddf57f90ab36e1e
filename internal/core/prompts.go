package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

const defaultSystemPrompt = `You are a helpful AI assistant. Answer questions based on the provided context documents.

GUIDELINES:
- Use only the information from the provided context
- If the context doesn't contain enough information, clearly state this
- Be accurate, helpful, and comprehensive
- Cite specific documents when referencing information
- Maintain a professional yet approachable tone`

// PromptManager loads system prompt templates from flat .txt files so
// operators can adjust assistant behavior without a redeploy.
type PromptManager struct {
	dir string
}

func NewPromptManager(dir string) *PromptManager {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("Could not create prompts directory %s: %v", dir, err)
	}
	return &PromptManager{dir: dir}
}

// Load returns the named prompt, or false when no such file exists (callers
// then fall back to the built-in default).
func (p *PromptManager) Load(name string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(p.dir, withTxtExt(name)))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error loading prompt %s: %v", name, err)
		}
		return "", false
	}
	return strings.TrimSpace(string(content)), true
}

// Save writes or replaces a prompt file.
func (p *PromptManager) Save(name, content string) error {
	return os.WriteFile(filepath.Join(p.dir, withTxtExt(name)), []byte(content), 0o644)
}

// List returns the available prompt names without the .txt extension.
func (p *PromptManager) List() []string {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		log.Printf("Error listing prompt files: %v", err)
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	return names
}

// Default returns the built-in system prompt.
func (p *PromptManager) Default() string {
	return defaultSystemPrompt
}

func withTxtExt(name string) string {
	if !strings.HasSuffix(name, ".txt") {
		return name + ".txt"
	}
	return name
}

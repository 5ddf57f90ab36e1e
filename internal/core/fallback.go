package core

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

const fallbackPreviewLength = 500

// FallbackSearcher is the degraded retrieval mode used when vector search or
// the embedding call is unavailable. It ranks local text files by how many
// distinct query terms appear in them. No IDF weighting, no stemming, no
// phrase matching; a best-effort substitute, not a relevance engine.
type FallbackSearcher struct {
	documentsDir string
}

func NewFallbackSearcher(documentsDir string) *FallbackSearcher {
	return &FallbackSearcher{documentsDir: documentsDir}
}

type fallbackCandidate struct {
	result  SearchResult
	matches int
	name    string
}

// Search scans up to 2*limit candidate files and returns the top limit files
// with at least one matching term, ordered by match count descending with
// ties broken by file name so ordering is deterministic across filesystems.
func (f *FallbackSearcher) Search(query string, limit int) []SearchResult {
	terms := distinctTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil
	}

	entries, err := os.ReadDir(f.documentsDir)
	if err != nil {
		log.Printf("Fallback search cannot read documents directory %s: %v", f.documentsDir, err)
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	if len(names) > 2*limit {
		names = names[:2*limit]
	}

	var candidates []fallbackCandidate
	for _, name := range names {
		path := filepath.Join(f.documentsDir, name)
		contentBytes, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Fallback search cannot read %s: %v", path, err)
			continue
		}
		content := string(contentBytes)
		lowered := strings.ToLower(content)

		matches := 0
		for term := range terms {
			if strings.Contains(lowered, term) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}

		candidates = append(candidates, fallbackCandidate{
			result: SearchResult{
				Title:    name,
				Content:  truncate(content, fallbackPreviewLength),
				FilePath: path,
				Score:    float32(matches),
			},
			matches: matches,
			name:    name,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].matches != candidates[j].matches {
			return candidates[i].matches > candidates[j].matches
		}
		return candidates[i].name < candidates[j].name
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.result)
	}
	return results
}

// distinctTerms lower-cases the query and splits it on whitespace.
func distinctTerms(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, term := range strings.Fields(strings.ToLower(query)) {
		terms[term] = struct{}{}
	}
	return terms
}

// truncate shortens s to at most max bytes without splitting a rune, so the
// result is always valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

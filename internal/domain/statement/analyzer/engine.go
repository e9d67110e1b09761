// Package analyzer produces deterministic reports over parsed statements.
// Description matching uses the Aho-Corasick algorithm, so the whole keyword
// table is scanned in a single pass per description.
package analyzer

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

type matchMeta struct {
	category string
	priority int
}

// Engine matches transaction descriptions against a keyword table and
// resolves them to spending categories. Matching is case-insensitive and
// substring-based; when several categories match, the one listed earliest
// in the table wins.
type Engine struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	metadata []matchMeta
	mu       sync.RWMutex
}

// NewEngine creates an engine from a category table.
func NewEngine(categories []SpendingCategory) *Engine {
	e := &Engine{}
	e.Build(categories)
	return e
}

// Build constructs the Aho-Corasick matcher from the category table. It can
// be called again to swap the table at runtime. Duplicate keywords keep the
// highest-priority category.
func (e *Engine) Build(categories []SpendingCategory) {
	e.mu.Lock()
	defer e.mu.Unlock()

	patternToIndex := make(map[string]int)
	var patterns []string
	var metadata []matchMeta

	for ci, category := range categories {
		// Earlier table entries take precedence over later ones.
		priority := len(categories) - ci

		for _, keyword := range category.Keywords {
			cleanPattern := strings.ToUpper(strings.TrimSpace(keyword))
			if cleanPattern == "" {
				continue
			}

			if idx, exists := patternToIndex[cleanPattern]; exists {
				if priority > metadata[idx].priority {
					metadata[idx] = matchMeta{category: category.Name, priority: priority}
				}
				continue
			}

			patternToIndex[cleanPattern] = len(patterns)
			patterns = append(patterns, cleanPattern)
			metadata = append(metadata, matchMeta{category: category.Name, priority: priority})
		}
	}

	e.patterns = patterns
	e.metadata = metadata

	if len(patterns) > 0 {
		bytePatterns := make([][]byte, len(patterns))
		for i, p := range patterns {
			bytePatterns[i] = []byte(p)
		}
		e.matcher = ahocorasick.NewMatcher(bytePatterns)
	} else {
		e.matcher = nil
	}
}

// Match resolves a single description to a category. The second return
// value is false when no keyword matches.
func (e *Engine) Match(description string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.match(description)
}

// MatchBatch resolves many descriptions in one pass, locking the matcher
// once. Unmatched descriptions yield an empty string.
func (e *Engine) MatchBatch(descriptions []string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]string, len(descriptions))
	for i, desc := range descriptions {
		results[i], _ = e.match(desc)
	}
	return results
}

// match assumes the caller holds at least a read lock.
func (e *Engine) match(description string) (string, bool) {
	if e.matcher == nil || len(e.patterns) == 0 {
		return "", false
	}

	matches := e.matcher.Match([]byte(strings.ToUpper(description)))
	if len(matches) == 0 {
		return "", false
	}

	best := -1
	for _, idx := range matches {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		if best == -1 || e.metadata[idx].priority > e.metadata[best].priority {
			best = idx
		}
	}
	if best == -1 {
		return "", false
	}
	return e.metadata[best].category, true
}

// PatternCount returns the number of keywords loaded in the engine.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

// Package dictionary provides the pre-existing translation dictionary
// checked before any LLM call. It is backed by the community Dict-Mini
// release file, which maps English source text to candidate
// translations ranked by usage frequency.
package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// Dictionary is an exact-match English to target-language lookup table.
// Custom terminology entries take precedence over the community data.
type Dictionary struct {
	entries     map[string][]string
	terminology map[string]string
}

// New builds a dictionary from raw Dict-Mini data and optional custom
// terminology overrides.
func New(entries map[string][]string, terminology map[string]string) *Dictionary {
	if entries == nil {
		entries = map[string][]string{}
	}
	if terminology == nil {
		terminology = map[string]string{}
	}
	return &Dictionary{entries: entries, terminology: terminology}
}

// Load reads a Dict-Mini JSON file from disk.
func Load(path string, terminology map[string]string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}

	var entries map[string][]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary %s: %w", path, err)
	}

	log.Info("Loaded dictionary with %d entries", len(entries))
	return New(entries, terminology), nil
}

// Len returns the number of community dictionary entries.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Lookup resolves an English source text to its known translation.
// Terminology overrides win; otherwise the highest-frequency community
// candidate is used. The boolean reports a hit.
func (d *Dictionary) Lookup(source string) (string, bool) {
	if t, ok := d.terminology[source]; ok {
		return t, true
	}
	if candidates, ok := d.entries[source]; ok && len(candidates) > 0 {
		return candidates[0], true
	}
	return "", false
}

var wordSplitRe = regexp.MustCompile(`[^a-zA-Z]+`)

// PromptContext selects dictionary entries relevant to the given source
// texts and renders them as reference lines for an LLM system prompt.
// Relevance is word overlap: an entry qualifies when it contains any
// word (length >= 2) from the inputs. At most maxEntries lines are
// returned, chosen deterministically in sorted entry order.
func (d *Dictionary) PromptContext(texts []string, maxEntries int) string {
	if len(d.entries) == 0 || maxEntries <= 0 {
		return ""
	}

	words := make(map[string]bool)
	for _, text := range texts {
		for _, w := range wordSplitRe.Split(text, -1) {
			if len(w) < 2 {
				continue
			}
			words[w] = true
			words[strings.ToLower(w)] = true
		}
	}
	if len(words) == 0 {
		return ""
	}

	sources := make([]string, 0, len(d.entries))
	for source := range d.entries {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var lines []string
	for _, source := range sources {
		if len(lines) >= maxEntries {
			break
		}
		if !containsAnyWord(source, words) {
			continue
		}
		candidates := d.entries[source]
		if len(candidates) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s -> %s", source, candidates[0]))
	}

	return strings.Join(lines, "\n")
}

func containsAnyWord(text string, words map[string]bool) bool {
	for w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

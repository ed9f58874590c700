// Package lang models a language entry set: the mapping from Minecraft
// translation keys to display strings, as stored in lang JSON files.
package lang

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Entries maps a translation key to its display string.
type Entries map[string]string

// Keys returns the entry keys in sorted order.
func (e Entries) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the entry set.
func (e Entries) Clone() Entries {
	ret := make(Entries, len(e))
	for k, v := range e {
		ret[k] = v
	}
	return ret
}

// Merge copies all entries from other into e, overwriting existing keys.
func (e Entries) Merge(other Entries) {
	for k, v := range other {
		e[k] = v
	}
}

// Marshal renders the entry set as indented JSON with a trailing newline.
// Keys are emitted in sorted order and non-ASCII text is kept verbatim,
// so repeated runs produce byte-identical files.
func (e Entries) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("failed to marshal entries: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a lang JSON object, keeping only string values.
func Unmarshal(data []byte) (Entries, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse lang JSON: %w", err)
	}

	entries := make(Entries, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			// Non-string values (numbers, nested objects) are not translatable.
			continue
		}
		entries[k] = s
	}
	return entries, nil
}

// ReadFile loads an entry set from a lang JSON file.
func ReadFile(path string) (Entries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// WriteFile writes an entry set to a lang JSON file, creating parent
// directories as needed.
func WriteFile(path string, entries Entries) error {
	data, err := entries.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}

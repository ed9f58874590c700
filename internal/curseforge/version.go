package curseforge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ModpackInfo records what was last downloaded and installed for a
// slug. It lives in the slug's work tree and is consulted on later
// runs to skip work when the modpack has not been updated upstream.
type ModpackInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Slug      string `json:"slug"`
	FileID    int    `json:"file_id"`
	FileName  string `json:"file_name"`
	MCVersion string `json:"mc_version"`
}

// Save writes the version record as indented JSON.
func (m *ModpackInfo) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create version directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal version info: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// LoadModpackInfo reads a previously saved version record. A missing
// or unreadable file returns nil: the caller treats it as "never run".
func LoadModpackInfo(path string) *ModpackInfo {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var info ModpackInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil
	}
	return &info
}

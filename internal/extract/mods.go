package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zack-zzq/modpack-localizer/internal/lang"
	"github.com/zack-zzq/modpack-localizer/internal/store"
	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// langEntryRe matches the English lang file inside a mod jar:
// assets/<modid>/lang/en_us.json.
var langEntryRe = regexp.MustCompile(`^assets/([a-z0-9_.\-]+)/lang/en_us\.json$`)

// ModExtractor reads assets/<modid>/lang/en_us.json out of every jar
// in the instance's mods directory. One unit is produced per mod
// namespace; a jar carrying no lang file still yields an empty unit
// named after the jar.
type ModExtractor struct{}

func NewModExtractor() *ModExtractor {
	return &ModExtractor{}
}

func (e *ModExtractor) Category() store.Category {
	return store.CategoryMod
}

func (e *ModExtractor) Extract(instanceDir string) (map[string]lang.Entries, error) {
	modsDir := filepath.Join(instanceDir, "mods")
	dirEntries, err := os.ReadDir(modsDir)
	if os.IsNotExist(err) {
		log.Warn("No mods directory at %s", modsDir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list mods directory: %w", err)
	}

	units := make(map[string]lang.Entries)
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".jar") {
			continue
		}

		jarPath := filepath.Join(modsDir, de.Name())
		found, err := extractJar(jarPath, units)
		if err != nil {
			log.Warn("Failed to read mod jar %s: %v", de.Name(), err)
			continue
		}
		if !found {
			// Keep the mod visible as an empty unit so "nothing to
			// translate" is distinguishable from "never extracted".
			name := strings.TrimSuffix(de.Name(), ".jar")
			if _, exists := units[name]; !exists {
				units[name] = lang.Entries{}
			}
		}
	}

	log.Info("Extracted lang entries from %d mod units", len(units))
	return units, nil
}

// extractJar merges every English lang file of one jar into units,
// keyed by mod namespace. Reports whether any lang file was found.
func extractJar(jarPath string, units map[string]lang.Entries) (bool, error) {
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return false, err
	}
	defer zr.Close()

	found := false
	for _, f := range zr.File {
		m := langEntryRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		modID := m[1]

		rc, err := f.Open()
		if err != nil {
			return found, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return found, err
		}

		entries, err := lang.Unmarshal(data)
		if err != nil {
			log.Warn("Skipping malformed lang file %s in %s: %v", f.Name, filepath.Base(jarPath), err)
			continue
		}

		if units[modID] == nil {
			units[modID] = lang.Entries{}
		}
		units[modID].Merge(entries)
		found = true
	}
	return found, nil
}

// Package store is the artifact store for the localization work tree.
//
// Every (modpack, stage, unit) triple maps to one leaf directory under
// work/<slug>/<stage>/; the existence of that directory is the cache
// record. There is no separate index: deleting a leaf directory is the
// supported way to force recomputation of exactly that unit, and the
// store never expires or evicts anything on its own.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zack-zzq/modpack-localizer/internal/lang"
)

// ErrNotFound is returned when a unit's artifact is absent.
var ErrNotFound = errors.New("artifact not found")

// Stage identifies one step of the pipeline within the work tree.
type Stage string

const (
	StageExtracted  Stage = "extracted"
	StageTranslated Stage = "translated"
)

// Category classifies a translation unit.
type Category string

const (
	CategoryMod       Category = "mod"
	CategoryKubeJS    Category = "kubejs"
	CategoryFTBQuests Category = "ftbquests"
)

// dirName returns the directory name used for the category inside a
// stage directory.
func (c Category) dirName() string {
	if c == CategoryMod {
		return "mods"
	}
	return string(c)
}

// Categories lists all unit categories in resolution order.
func Categories() []Category {
	return []Category{CategoryMod, CategoryKubeJS, CategoryFTBQuests}
}

// UnitKey identifies one translation unit within a modpack. Name is the
// mod identifier for CategoryMod and equals the category name for the
// singleton kubejs and ftbquests units.
type UnitKey struct {
	Category Category
	Name     string
}

// SingletonUnit returns the unit key for a category that has exactly one
// unit per modpack.
func SingletonUnit(category Category) UnitKey {
	return UnitKey{Category: category, Name: string(category)}
}

func (u UnitKey) String() string {
	return string(u.Category) + "/" + u.Name
}

// Store maps artifact keys onto the local work tree.
type Store struct {
	workDir    string
	targetLang string
}

// New creates a store rooted at workDir. targetLang is the Minecraft
// language code (e.g. "zh_cn") used for translated artifact file names.
func New(workDir, targetLang string) *Store {
	return &Store{workDir: workDir, targetLang: targetLang}
}

// SlugDir returns the per-modpack root of the work tree.
func (s *Store) SlugDir(slug string) string {
	return filepath.Join(s.workDir, slug)
}

// ArchivePath is the location of the raw downloaded modpack archive.
func (s *Store) ArchivePath(slug string) string {
	return filepath.Join(s.SlugDir(slug), "downloads", slug+".zip")
}

// InstanceDir is the installed modpack tree the extractors read from.
func (s *Store) InstanceDir(slug string) string {
	return filepath.Join(s.SlugDir(slug), "instance")
}

// VersionPath records which modpack file the work tree was built from.
func (s *Store) VersionPath(slug string) string {
	return filepath.Join(s.SlugDir(slug), "version.json")
}

// DictCachePath is where the downloaded community dictionary is
// cached. The dictionary is shared by every modpack in the work tree.
func (s *Store) DictCachePath() string {
	return filepath.Join(s.workDir, "dict-mini.json")
}

// ArchiveExists reports whether the raw modpack archive has been
// downloaded. This is the Download stage's presence marker.
func (s *Store) ArchiveExists(slug string) bool {
	info, err := os.Stat(s.ArchivePath(slug))
	return err == nil && !info.IsDir()
}

// StageDir returns the root of one stage for a modpack.
func (s *Store) StageDir(slug string, stage Stage) string {
	return filepath.Join(s.SlugDir(slug), string(stage))
}

// CategoryDir returns the directory holding all units of a category in
// a stage.
func (s *Store) CategoryDir(slug string, stage Stage, category Category) string {
	return filepath.Join(s.StageDir(slug, stage), category.dirName())
}

// UnitDir returns the leaf directory for one unit's artifact. Mod units
// nest under mods/<name>; the singleton categories are the category
// directory itself.
func (s *Store) UnitDir(slug string, stage Stage, unit UnitKey) string {
	if unit.Category == CategoryMod {
		return filepath.Join(s.CategoryDir(slug, stage, unit.Category), unit.Name)
	}
	return s.CategoryDir(slug, stage, unit.Category)
}

// entriesFileName returns the lang file name inside a unit directory.
func (s *Store) entriesFileName(stage Stage) string {
	if stage == StageTranslated {
		return s.targetLang + ".json"
	}
	return "en_us.json"
}

// EntriesPath returns the path of a unit's lang file for the stage.
func (s *Store) EntriesPath(slug string, stage Stage, unit UnitKey) string {
	return filepath.Join(s.UnitDir(slug, stage, unit), s.entriesFileName(stage))
}

// Exists reports whether the unit's artifact for the stage is present.
func (s *Store) Exists(slug string, stage Stage, unit UnitKey) bool {
	info, err := os.Stat(s.UnitDir(slug, stage, unit))
	return err == nil && info.IsDir()
}

// CategoryExists reports whether any artifact for the category is
// present in the stage. Used by Extract to skip whole categories.
func (s *Store) CategoryExists(slug string, stage Stage, category Category) bool {
	info, err := os.Stat(s.CategoryDir(slug, stage, category))
	return err == nil && info.IsDir()
}

// WriteEntries writes a unit's entry set for the stage. The write is
// atomic with respect to concurrent Exists checks: content is staged in
// a temp directory and renamed into place, so no reader ever observes a
// half-written unit as present. An existing artifact is replaced
// wholesale.
func (s *Store) WriteEntries(slug string, stage Stage, unit UnitKey, entries lang.Entries) error {
	unitDir := s.UnitDir(slug, stage, unit)
	parent := filepath.Dir(unitDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create stage directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parent, "."+filepath.Base(unitDir)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	data, err := entries.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, s.entriesFileName(stage)), data, 0644); err != nil {
		return fmt.Errorf("failed to write entries file: %w", err)
	}

	if err := os.RemoveAll(unitDir); err != nil {
		return fmt.Errorf("failed to remove previous artifact: %w", err)
	}
	if err := os.Rename(tmpDir, unitDir); err != nil {
		return fmt.Errorf("failed to publish artifact: %w", err)
	}
	return nil
}

// ReadEntries loads a unit's entry set for the stage. Returns
// ErrNotFound when the artifact is absent.
func (s *Store) ReadEntries(slug string, stage Stage, unit UnitKey) (lang.Entries, error) {
	if !s.Exists(slug, stage, unit) {
		return nil, fmt.Errorf("%s %s for %s: %w", stage, unit, slug, ErrNotFound)
	}
	entries, err := lang.ReadFile(s.EntriesPath(slug, stage, unit))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s %s for %s: %w", stage, unit, slug, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s artifact %s: %w", stage, unit, err)
	}
	return entries, nil
}

// ListUnits enumerates the units present in a stage, sorted by category
// then name so repeated runs process units in the same order.
func (s *Store) ListUnits(slug string, stage Stage) ([]UnitKey, error) {
	var units []UnitKey

	modsDir := s.CategoryDir(slug, stage, CategoryMod)
	dirEntries, err := os.ReadDir(modsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list mod units: %w", err)
	}
	for _, de := range dirEntries {
		// Dot-prefixed directories are staging leftovers, never units.
		if de.IsDir() && !strings.HasPrefix(de.Name(), ".") {
			units = append(units, UnitKey{Category: CategoryMod, Name: de.Name()})
		}
	}

	for _, category := range []Category{CategoryKubeJS, CategoryFTBQuests} {
		unit := SingletonUnit(category)
		if s.Exists(slug, stage, unit) {
			units = append(units, unit)
		}
	}

	sort.Slice(units, func(i, j int) bool {
		if units[i].Category != units[j].Category {
			return units[i].Category < units[j].Category
		}
		return units[i].Name < units[j].Name
	})
	return units, nil
}

package extract

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zack-zzq/modpack-localizer/internal/lang"
	"github.com/zack-zzq/modpack-localizer/internal/store"
	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// FTBQuestsExtractor pulls quest book text into the single ftbquests
// unit. Two on-disk formats exist: packs on 1.20+ keep a dedicated
// lang/en_us.snbt (or a lang/en_us/ directory of SNBT files), older
// packs inline the strings in the chapter files.
type FTBQuestsExtractor struct{}

func NewFTBQuestsExtractor() *FTBQuestsExtractor {
	return &FTBQuestsExtractor{}
}

func (e *FTBQuestsExtractor) Category() store.Category {
	return store.CategoryFTBQuests
}

// questDirCandidates lists where modpacks are known to keep quests.
var questDirCandidates = []string{
	filepath.Join("config", "ftbquests", "quests"),
	filepath.Join("ftbquests", "quests"),
	filepath.Join("config", "ftbquests"),
}

func (e *FTBQuestsExtractor) Extract(instanceDir string) (map[string]lang.Entries, error) {
	var questsDir string
	for _, candidate := range questDirCandidates {
		p := filepath.Join(instanceDir, candidate)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			questsDir = p
			break
		}
	}
	if questsDir == "" {
		log.Info("No FTB Quests directory, skipping quest extraction")
		return nil, nil
	}

	var entries lang.Entries
	var err error

	langDir := filepath.Join(questsDir, "lang", "en_us")
	langFile := filepath.Join(questsDir, "lang", "en_us.snbt")
	switch {
	case isDir(langDir):
		log.Info("Detected split-format FTB Quests lang directory")
		entries, err = extractLangDir(langDir)
	case isFile(langFile):
		log.Info("Detected single-file FTB Quests lang export")
		entries, err = extractLangFile(langFile)
	default:
		log.Info("Detected inline-format FTB Quests chapters")
		entries, err = extractInlineChapters(questsDir)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Extracted %d FTB Quests entries", len(entries))
	unit := store.SingletonUnit(store.CategoryFTBQuests)
	return map[string]lang.Entries{unit.Name: entries}, nil
}

func extractLangFile(path string) (lang.Entries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quest lang file: %w", err)
	}
	return ParseSNBTLang(data)
}

func extractLangDir(dir string) (lang.Entries, error) {
	entries := lang.Entries{}
	err := filepath.WalkDir(dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil || de.IsDir() || !strings.HasSuffix(path, ".snbt") {
			return err
		}
		fileEntries, err := extractLangFile(path)
		if err != nil {
			log.Warn("Skipping malformed quest lang file %s: %v", path, err)
			return nil
		}
		entries.Merge(fileEntries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// inlineFieldRe matches the translatable fields of old-format chapter
// files: title, subtitle and description strings.
var inlineFieldRe = regexp.MustCompile(`^(title|subtitle|description):\s*"(.*)"$`)

// extractInlineChapters scans old-format chapter files and generates
// stable keys from the file name and field occurrence order.
func extractInlineChapters(questsDir string) (lang.Entries, error) {
	entries := lang.Entries{}

	err := filepath.WalkDir(questsDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil || de.IsDir() || !strings.HasSuffix(path, ".snbt") {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read chapter %s: %w", path, err)
		}

		stem := strings.TrimSuffix(filepath.Base(path), ".snbt")
		counts := map[string]int{}
		for _, line := range strings.Split(string(data), "\n") {
			m := inlineFieldRe.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil || m[2] == "" {
				continue
			}
			field := m[1]
			key := fmt.Sprintf("ftbquests.%s.%s.%d", stem, field, counts[field])
			counts[field]++
			entries[key] = unescapeSNBT(m[2])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

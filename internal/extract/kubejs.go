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

var scriptDirs = []string{"client_scripts", "server_scripts", "startup_scripts"}

// createDisplayNameRe matches a KubeJS registry call with a chained
// display name on the same statement:
// event.create('steel_gear').displayName('Steel Gear')
var createDisplayNameRe = regexp.MustCompile(
	`event\.create\(\s*['"]([a-z0-9_:./\-]+)['"][^\n]*?\.displayName\(\s*['"]([^'"]+)['"]\s*\)`)

// KubeJSExtractor scrapes translatable strings from KubeJS scripts and
// from lang files the pack author bundled under kubejs/assets. All
// results form the single kubejs unit.
type KubeJSExtractor struct{}

func NewKubeJSExtractor() *KubeJSExtractor {
	return &KubeJSExtractor{}
}

func (e *KubeJSExtractor) Category() store.Category {
	return store.CategoryKubeJS
}

func (e *KubeJSExtractor) Extract(instanceDir string) (map[string]lang.Entries, error) {
	kubejsDir := filepath.Join(instanceDir, "kubejs")
	if _, err := os.Stat(kubejsDir); os.IsNotExist(err) {
		log.Info("No kubejs directory, skipping KubeJS extraction")
		return nil, nil
	}

	hasScripts := false
	for _, d := range scriptDirs {
		if info, err := os.Stat(filepath.Join(kubejsDir, d)); err == nil && info.IsDir() {
			hasScripts = true
			break
		}
	}
	hasAssets := false
	if info, err := os.Stat(filepath.Join(kubejsDir, "assets")); err == nil && info.IsDir() {
		hasAssets = true
	}
	if !hasScripts && !hasAssets {
		log.Info("No KubeJS script or asset directories, skipping")
		return nil, nil
	}

	entries := lang.Entries{}

	scripted, err := e.extractScripts(kubejsDir)
	if err != nil {
		return nil, err
	}
	entries.Merge(scripted)

	bundled, err := e.extractAssetLangFiles(kubejsDir)
	if err != nil {
		return nil, err
	}
	entries.Merge(bundled)

	log.Info("Extracted %d KubeJS entries (%d from scripts, %d from bundled lang files)",
		len(entries), len(scripted), len(bundled))

	unit := store.SingletonUnit(store.CategoryKubeJS)
	return map[string]lang.Entries{unit.Name: entries}, nil
}

// extractScripts scans every script file for registry calls with
// display names and generates the lang keys KubeJS registers for them.
func (e *KubeJSExtractor) extractScripts(kubejsDir string) (lang.Entries, error) {
	entries := lang.Entries{}

	for _, d := range scriptDirs {
		scriptDir := filepath.Join(kubejsDir, d)
		err := filepath.WalkDir(scriptDir, func(path string, de fs.DirEntry, err error) error {
			if err != nil || de.IsDir() || !strings.HasSuffix(path, ".js") {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read script %s: %w", path, err)
			}
			for _, m := range createDisplayNameRe.FindAllStringSubmatch(string(content), -1) {
				id, name := normalizeRegistryID(m[1]), m[2]
				// KubeJS registers item, block and fluid variants for
				// every created entry; cover each localization key.
				entries["item.kubejs."+id] = name
				entries["block.kubejs."+id] = name
				entries["fluid.kubejs."+id] = name
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return entries, nil
}

// normalizeRegistryID strips an explicit namespace prefix from a
// registry ID; the generated lang keys always use the kubejs namespace.
func normalizeRegistryID(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// extractAssetLangFiles merges en_us.json lang files authors bundle
// under kubejs/assets so their keys get translated too.
func (e *KubeJSExtractor) extractAssetLangFiles(kubejsDir string) (lang.Entries, error) {
	entries := lang.Entries{}
	assetsDir := filepath.Join(kubejsDir, "assets")

	err := filepath.WalkDir(assetsDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil || de.IsDir() {
			return err
		}
		if filepath.Base(path) != "en_us.json" || filepath.Base(filepath.Dir(path)) != "lang" {
			return nil
		}
		fileEntries, err := lang.ReadFile(path)
		if err != nil {
			log.Warn("Failed to read KubeJS asset lang file %s: %v", path, err)
			return nil
		}
		entries.Merge(fileEntries)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return entries, nil
}

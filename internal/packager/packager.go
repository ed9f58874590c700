// Package packager assembles the two distributable archives: the
// resource pack (mod and KubeJS text, applied via Minecraft's resource
// pack mechanism) and the overrides pack (quest text, which must
// replace config files directly).
//
// Packaging is deterministic: units are emitted in sorted order and
// zip headers carry no timestamps, so runs over identical translated
// state produce byte-identical archives.
package packager

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zack-zzq/modpack-localizer/internal/extract"
	"github.com/zack-zzq/modpack-localizer/internal/lang"
	"github.com/zack-zzq/modpack-localizer/internal/store"
	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// UnitEntries pairs a unit with its final entry set for packaging.
type UnitEntries struct {
	Unit    store.UnitKey
	Entries lang.Entries
}

// Builder builds localization archives.
type Builder struct {
	targetLang string
	packFormat int
}

// NewBuilder creates a Builder for the given Minecraft language code
// and resource pack format number.
func NewBuilder(targetLang string, packFormat int) *Builder {
	return &Builder{targetLang: targetLang, packFormat: packFormat}
}

// BuildResourcePack writes the resource pack archive from the mod and
// kubejs units. Returns the number of lang files packed.
func (b *Builder) BuildResourcePack(slug string, units []UnitEntries, outputPath string) (int, error) {
	sortUnits(units)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	meta, err := b.packMcmeta(slug)
	if err != nil {
		return 0, err
	}
	if err := writeZipEntry(zw, "pack.mcmeta", meta); err != nil {
		return 0, err
	}

	count := 0
	for _, ue := range units {
		if ue.Unit.Category == store.CategoryFTBQuests || len(ue.Entries) == 0 {
			continue
		}

		namespace := ue.Unit.Name
		if ue.Unit.Category == store.CategoryKubeJS {
			namespace = "kubejs"
		}

		data, err := ue.Entries.Marshal()
		if err != nil {
			return 0, err
		}
		path := fmt.Sprintf("assets/%s/lang/%s.json", namespace, b.targetLang)
		if err := writeZipEntry(zw, path, data); err != nil {
			return 0, err
		}
		count++
		log.Debug("Packed %s (%d keys)", path, len(ue.Entries))
	}

	if err := finishArchive(zw, &buf, outputPath); err != nil {
		return 0, err
	}
	log.Info("Resource pack created: %s (%d lang files)", filepath.Base(outputPath), count)
	return count, nil
}

// BuildOverrides writes the overrides archive from the ftbquests
// units. An archive is always produced, even when empty, so consumers
// can rely on both artifacts existing.
func (b *Builder) BuildOverrides(units []UnitEntries, outputPath string) (int, error) {
	sortUnits(units)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	count := 0
	for _, ue := range units {
		if ue.Unit.Category != store.CategoryFTBQuests || len(ue.Entries) == 0 {
			continue
		}

		path := fmt.Sprintf("config/ftbquests/quests/lang/%s.snbt", b.targetLang)
		if err := writeZipEntry(zw, path, extract.RenderSNBTLang(ue.Entries)); err != nil {
			return 0, err
		}
		count++
		log.Debug("Packed %s (%d keys)", path, len(ue.Entries))
	}

	if err := finishArchive(zw, &buf, outputPath); err != nil {
		return 0, err
	}
	log.Info("Overrides pack created: %s (%d files)", filepath.Base(outputPath), count)
	return count, nil
}

func (b *Builder) packMcmeta(slug string) ([]byte, error) {
	meta := map[string]interface{}{
		"pack": map[string]interface{}{
			"pack_format": b.packFormat,
			"description": fmt.Sprintf("%s localization resource pack", slug),
		},
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pack.mcmeta: %w", err)
	}
	return append(data, '\n'), nil
}

func sortUnits(units []UnitEntries) {
	sort.Slice(units, func(i, j int) bool {
		if units[i].Unit.Category != units[j].Unit.Category {
			return units[i].Unit.Category < units[j].Unit.Category
		}
		return units[i].Unit.Name < units[j].Unit.Name
	})
}

// writeZipEntry adds one file with a zeroed header timestamp so the
// archive bytes do not depend on the build time.
func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	return nil
}

// finishArchive closes the zip and publishes it atomically.
func finishArchive(zw *zip.Writer, buf *bytes.Buffer, outputPath string) error {
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp archive: %w", err)
	}
	return os.Rename(tmp.Name(), outputPath)
}

package curseforge

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// modDownloadConcurrency bounds parallel mod jar downloads during
// install; the CurseForge CDN throttles beyond a handful of streams.
const modDownloadConcurrency = 4

// ParseManifest reads manifest.json out of a modpack archive.
func ParseManifest(archivePath string) (*Manifest, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open modpack archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "manifest.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
		defer rc.Close()

		var manifest Manifest
		if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
		return &manifest, nil
	}
	return nil, fmt.Errorf("no manifest.json in %s", archivePath)
}

// Install materializes a downloaded modpack archive into instanceDir:
// the archive's overrides tree is extracted in place and every mod the
// manifest references is downloaded into instanceDir/mods.
func (c *Client) Install(ctx context.Context, archivePath, instanceDir string) (*Manifest, error) {
	manifest, err := ParseManifest(archivePath)
	if err != nil {
		return nil, err
	}

	log.Info("Installing %s v%s (MC %s) to %s", manifest.Name, manifest.Version, manifest.Minecraft.Version, instanceDir)

	if err := extractOverrides(archivePath, instanceDir); err != nil {
		return nil, err
	}
	if err := c.downloadMods(ctx, manifest, filepath.Join(instanceDir, "mods")); err != nil {
		return nil, err
	}

	return manifest, nil
}

// extractOverrides unpacks the archive's overrides/ prefix into
// instanceDir, preserving the relative layout.
func extractOverrides(archivePath, instanceDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open modpack archive: %w", err)
	}
	defer zr.Close()

	const prefix = "overrides/"
	count := 0
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) || f.FileInfo().IsDir() {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if rel == "" || !filepath.IsLocal(rel) {
			continue
		}

		target := filepath.Join(instanceDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create override directory: %w", err)
		}
		if err := extractZipFile(f, target); err != nil {
			return fmt.Errorf("failed to extract override %s: %w", rel, err)
		}
		count++
	}

	log.Info("Extracted %d override files", count)
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// downloadMods fetches every manifest mod into modsDir with bounded
// concurrency. Mods with no published download URL are skipped; they
// contribute no language files anyway.
func (c *Client) downloadMods(ctx context.Context, manifest *Manifest, modsDir string) error {
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		return fmt.Errorf("failed to create mods directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(modDownloadConcurrency)

	for _, mf := range manifest.Files {
		if !mf.Required {
			log.Debug("Skipping optional mod %d", mf.ProjectID)
			continue
		}
		g.Go(func() error {
			file, err := c.FetchFile(ctx, mf.ProjectID, mf.FileID)
			if err != nil {
				return err
			}
			if file.DownloadURL == "" {
				log.Warn("Mod %s has no download URL, skipping", file.FileName)
				return nil
			}

			dest := filepath.Join(modsDir, file.FileName)
			if _, err := os.Stat(dest); err == nil {
				return nil
			}
			if err := c.downloadTo(ctx, file.DownloadURL, dest); err != nil {
				return fmt.Errorf("failed to download mod %s: %w", file.FileName, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Downloaded %d mods", len(manifest.Files))
	return nil
}

package dictionary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// DefaultURL is the latest Dict-Mini release asset.
const DefaultURL = "https://github.com/VM-Chinese-translate-group/i18n-Dict-Extender/releases/latest/download/Dict-Mini.json"

// Fetch downloads the dictionary to cachePath unless it is already
// cached, then loads it. A download failure is not fatal: translation
// degrades to terminology-only matching, so an empty dictionary is
// returned instead of an error.
func Fetch(ctx context.Context, url, cachePath string, terminology map[string]string) *Dictionary {
	if url == "" {
		url = DefaultURL
	}

	if _, err := os.Stat(cachePath); err != nil {
		if err := download(ctx, url, cachePath); err != nil {
			log.Warn("Failed to download dictionary: %v", err)
			return New(nil, terminology)
		}
	} else {
		log.Info("Using cached dictionary: %s", cachePath)
	}

	dict, err := Load(cachePath, terminology)
	if err != nil {
		log.Warn("Failed to load cached dictionary: %v", err)
		return New(nil, terminology)
	}
	return dict
}

func download(ctx context.Context, url, cachePath string) error {
	log.Info("Downloading dictionary from %s", url)

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch dictionary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dictionary download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read dictionary body: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write dictionary cache: %w", err)
	}

	log.Info("Dictionary downloaded (%d bytes)", len(data))
	return nil
}

// Package curseforge is the download client for CurseForge modpacks.
// It resolves a modpack slug to its latest file, downloads the archive
// and installs it into a local instance tree.
package curseforge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

const (
	defaultBaseURL = "https://api.curseforge.com"
	gameMinecraft  = 432
	classModpack   = 4471
)

// Client talks to the CurseForge API. Thread-safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// NewClient creates a CurseForge API client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("CurseForge API key is required")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ResolveModpack finds a modpack by slug and selects its latest file.
func (c *Client) ResolveModpack(ctx context.Context, slug string) (*Mod, *File, error) {
	query := url.Values{}
	query.Set("gameId", fmt.Sprint(gameMinecraft))
	query.Set("classId", fmt.Sprint(classModpack))
	query.Set("slug", slug)

	var resp searchResponse
	if err := c.getJSON(ctx, "/v1/mods/search?"+query.Encode(), &resp); err != nil {
		return nil, nil, fmt.Errorf("failed to search modpack %q: %w", slug, err)
	}
	if len(resp.Data) == 0 {
		return nil, nil, fmt.Errorf("modpack %q not found", slug)
	}

	mod := resp.Data[0]
	latest := selectLatestFile(mod.LatestFiles)
	if latest == nil {
		return nil, nil, fmt.Errorf("modpack %q has no downloadable files", slug)
	}
	return &mod, latest, nil
}

// CheckLatest returns the latest file ID for a modpack slug.
func (c *Client) CheckLatest(ctx context.Context, slug string) (int, error) {
	_, latest, err := c.ResolveModpack(ctx, slug)
	if err != nil {
		return 0, err
	}
	return latest.ID, nil
}

// FetchFile resolves a mod file's metadata, including its download URL.
func (c *Client) FetchFile(ctx context.Context, projectID, fileID int) (*File, error) {
	var resp fileResponse
	path := fmt.Sprintf("/v1/mods/%d/files/%d", projectID, fileID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch file %d/%d: %w", projectID, fileID, err)
	}
	return &resp.Data, nil
}

// DownloadModpack downloads the latest archive of a modpack to
// destPath and returns its metadata.
func (c *Client) DownloadModpack(ctx context.Context, slug, destPath string) (*ModpackInfo, error) {
	mod, latest, err := c.ResolveModpack(ctx, slug)
	if err != nil {
		return nil, err
	}

	log.Info("Downloading modpack %s (file %s)", mod.Name, latest.FileName)
	if err := c.downloadTo(ctx, latest.DownloadURL, destPath); err != nil {
		return nil, fmt.Errorf("failed to download modpack archive: %w", err)
	}

	return &ModpackInfo{
		Name:     mod.Name,
		Slug:     slug,
		FileID:   latest.ID,
		FileName: latest.FileName,
	}, nil
}

// selectLatestFile picks the file with the highest ID, matching the
// ordering CurseForge uses for releases.
func selectLatestFile(files []File) *File {
	var latest *File
	for i := range files {
		if files[i].DownloadURL == "" {
			continue
		}
		if latest == nil || files[i].ID > latest.ID {
			latest = &files[i]
		}
	}
	return latest
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// downloadTo streams a URL into destPath, creating parent directories.
// The file is written to a sibling temp path and renamed so a partial
// download never looks like a present archive.
func (c *Client) downloadTo(ctx context.Context, fileURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), destPath)
}

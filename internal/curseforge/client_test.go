package curseforge

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAPIServer fakes the CurseForge API: a search endpoint answering
// for "pack-a" and a file download endpoint serving archiveData.
func newAPIServer(t *testing.T, archiveData []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	var server *httptest.Server
	mux.HandleFunc("/v1/mods/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		if r.URL.Query().Get("slug") != "pack-a" {
			fmt.Fprint(w, `{"data": []}`)
			return
		}
		fmt.Fprintf(w, `{"data": [{
			"id": 1001, "name": "Pack A", "slug": "pack-a",
			"latestFiles": [
				{"id": 5, "fileName": "pack-a-1.0.zip", "downloadUrl": "%[1]s/files/5"},
				{"id": 9, "fileName": "pack-a-1.1.zip", "downloadUrl": "%[1]s/files/9"},
				{"id": 12, "fileName": "pack-a-beta.zip", "downloadUrl": ""}
			]
		}]}`, server.URL)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archiveData)
	})
	mux.HandleFunc("/v1/mods/2001/files/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data": {"id": 42, "fileName": "somemod.jar", "downloadUrl": "%s/files/42"}}`, server.URL)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient("test-key", WithBaseURL(baseURL))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestResolveModpackPicksLatestDownloadableFile(t *testing.T) {
	server := newAPIServer(t, nil)
	c := newTestClient(t, server.URL)

	mod, file, err := c.ResolveModpack(t.Context(), "pack-a")
	require.NoError(t, err)

	assert.Equal(t, "Pack A", mod.Name)
	// File 12 is newer but has no download URL; file 9 wins.
	assert.Equal(t, 9, file.ID)
	assert.Equal(t, "pack-a-1.1.zip", file.FileName)
}

func TestResolveModpackNotFound(t *testing.T) {
	server := newAPIServer(t, nil)
	c := newTestClient(t, server.URL)

	_, _, err := c.ResolveModpack(t.Context(), "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestCheckLatest(t *testing.T) {
	server := newAPIServer(t, nil)
	c := newTestClient(t, server.URL)

	latest, err := c.CheckLatest(t.Context(), "pack-a")
	require.NoError(t, err)
	assert.Equal(t, 9, latest)
}

func TestDownloadModpackWritesArchiveAtomically(t *testing.T) {
	archive := []byte("zip-bytes")
	server := newAPIServer(t, archive)
	c := newTestClient(t, server.URL)

	destPath := filepath.Join(t.TempDir(), "downloads", "pack-a.zip")
	info, err := c.DownloadModpack(t.Context(), "pack-a", destPath)
	require.NoError(t, err)

	assert.Equal(t, "pack-a", info.Slug)
	assert.Equal(t, 9, info.FileID)

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, archive, data)

	// No temp leftovers next to the archive.
	entries, err := os.ReadDir(filepath.Dir(destPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchFile(t *testing.T) {
	server := newAPIServer(t, nil)
	c := newTestClient(t, server.URL)

	file, err := c.FetchFile(t.Context(), 2001, 42)
	require.NoError(t, err)
	assert.Equal(t, "somemod.jar", file.FileName)
}

func buildManifestArchive(t *testing.T, manifest string, overrides map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("manifest.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)

	for name, content := range overrides {
		w, err := zw.Create("overrides/" + name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "pack.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestParseManifest(t *testing.T) {
	path := buildManifestArchive(t, `{
		"name": "Pack A", "version": "1.1",
		"minecraft": {"version": "1.20.1"},
		"files": [{"projectID": 2001, "fileID": 42, "required": true}]
	}`, nil)

	manifest, err := ParseManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "Pack A", manifest.Name)
	assert.Equal(t, "1.20.1", manifest.Minecraft.Version)
	require.Len(t, manifest.Files, 1)
	assert.Equal(t, 2001, manifest.Files[0].ProjectID)
}

func TestInstallExtractsOverridesAndDownloadsMods(t *testing.T) {
	server := newAPIServer(t, nil)
	c := newTestClient(t, server.URL)

	archivePath := buildManifestArchive(t, `{
		"name": "Pack A", "version": "1.1",
		"minecraft": {"version": "1.20.1"},
		"files": [{"projectID": 2001, "fileID": 42, "required": true}]
	}`, map[string]string{
		"config/ftbquests/quests/chapter.snbt": `{ title: "Hi" }`,
		"kubejs/startup_scripts/items.js":      "// scripts",
	})

	instanceDir := filepath.Join(t.TempDir(), "instance")
	manifest, err := c.Install(t.Context(), archivePath, instanceDir)
	require.NoError(t, err)
	assert.Equal(t, "Pack A", manifest.Name)

	assert.FileExists(t, filepath.Join(instanceDir, "config", "ftbquests", "quests", "chapter.snbt"))
	assert.FileExists(t, filepath.Join(instanceDir, "kubejs", "startup_scripts", "items.js"))
	assert.FileExists(t, filepath.Join(instanceDir, "mods", "somemod.jar"))
}

func TestInstallSkipsOptionalMods(t *testing.T) {
	server := newAPIServer(t, nil)
	c := newTestClient(t, server.URL)

	archivePath := buildManifestArchive(t, `{
		"name": "Pack A", "version": "1.1",
		"minecraft": {"version": "1.20.1"},
		"files": [{"projectID": 2001, "fileID": 42, "required": false}]
	}`, nil)

	instanceDir := filepath.Join(t.TempDir(), "instance")
	_, err := c.Install(t.Context(), archivePath, instanceDir)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(instanceDir, "mods", "somemod.jar"))
}

func TestModpackInfoRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.json")
	info := &ModpackInfo{Name: "Pack A", Slug: "pack-a", FileID: 9, Version: "1.1"}

	require.NoError(t, info.Save(path))
	loaded := LoadModpackInfo(path)

	require.NotNil(t, loaded)
	assert.Equal(t, info, loaded)
}

func TestLoadModpackInfoMissingFile(t *testing.T) {
	assert.Nil(t, LoadModpackInfo(filepath.Join(t.TempDir(), "absent.json")))
}

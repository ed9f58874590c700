package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zack-zzq/modpack-localizer/internal/curseforge"
	"github.com/zack-zzq/modpack-localizer/internal/extract"
	"github.com/zack-zzq/modpack-localizer/internal/lang"
	"github.com/zack-zzq/modpack-localizer/internal/packager"
	"github.com/zack-zzq/modpack-localizer/internal/store"
	"github.com/zack-zzq/modpack-localizer/internal/translator"
)

// fakeDownloader satisfies Downloader, writing an empty archive file
// and counting invocations.
type fakeDownloader struct {
	downloads  int
	installs   int
	err        error
	installErr error
	latest     int
}

func (f *fakeDownloader) DownloadModpack(ctx context.Context, slug, destPath string) (*curseforge.ModpackInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.downloads++
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(destPath, []byte("archive"), 0o644); err != nil {
		return nil, err
	}
	return &curseforge.ModpackInfo{Name: slug, Slug: slug, FileID: 100, Version: "1.0"}, nil
}

func (f *fakeDownloader) Install(ctx context.Context, archivePath, instanceDir string) (*curseforge.Manifest, error) {
	f.installs++
	if f.installErr != nil {
		return nil, f.installErr
	}
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		return nil, err
	}
	return &curseforge.Manifest{Name: "pack"}, nil
}

func (f *fakeDownloader) CheckLatest(ctx context.Context, slug string) (int, error) {
	if f.latest == 0 {
		return 0, errors.New("offline")
	}
	return f.latest, nil
}

// fakeExtractor returns canned units and counts invocations.
type fakeExtractor struct {
	category store.Category
	units    map[string]lang.Entries
	err      error
	calls    int
}

func (f *fakeExtractor) Category() store.Category { return f.category }

func (f *fakeExtractor) Extract(instanceDir string) (map[string]lang.Entries, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.units, nil
}

// fakeTranslator uppercases nothing: it resolves "Hello" from a fixed
// table and passes everything else through, failing for configured
// values.
type fakeTranslator struct {
	mu       sync.Mutex
	calls    int
	failFor  map[string]bool
	mappings map[string]string
}

func (f *fakeTranslator) TranslateUnit(ctx context.Context, entries lang.Entries) (*translator.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	result := &translator.Result{Entries: make(lang.Entries, len(entries))}
	for key, value := range entries {
		if f.failFor[value] {
			return nil, fmt.Errorf("cannot translate %q", value)
		}
		if tr, ok := f.mappings[value]; ok {
			result.Entries[key] = tr
			result.DictHits++
		} else {
			result.Entries[key] = value
			result.PassedThrough = append(result.PassedThrough, key)
		}
	}
	return result, nil
}

type fixture struct {
	driver     *Driver
	store      *store.Store
	downloader *fakeDownloader
	mods       *fakeExtractor
	quests     *fakeExtractor
	translator *fakeTranslator
	outputDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	workDir := t.TempDir()
	outputDir := t.TempDir()
	st := store.New(workDir, "zh_cn")

	dl := &fakeDownloader{}
	mods := &fakeExtractor{
		category: store.CategoryMod,
		units: map[string]lang.Entries{
			"example-mod": {"key1": "Hello", "key2": "World"},
		},
	}
	quests := &fakeExtractor{
		category: store.CategoryFTBQuests,
		units:    nil, // category absent
	}
	tr := &fakeTranslator{mappings: map[string]string{"Hello": "你好"}}

	driver := NewDriver(DriverConfig{
		Store:      st,
		Downloader: dl,
		Extractors: []extract.Extractor{mods, quests},
		Translator: tr,
		Builder:    packager.NewBuilder("zh_cn", 34),
		OutputDir:  outputDir,
		TargetLang: "zh_cn",
		Workers:    2,
	})

	return &fixture{
		driver:     driver,
		store:      st,
		downloader: dl,
		mods:       mods,
		quests:     quests,
		translator: tr,
		outputDir:  outputDir,
	}
}

func readArchiveFile(t *testing.T, archivePath, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("entry %s not found in %s", name, archivePath)
	return ""
}

func archiveEntryCount(t *testing.T, archivePath string) int {
	t.Helper()
	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()
	return len(zr.File)
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)

	summary := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, summary.Failures)
	assert.False(t, summary.Fatal())
	assert.Equal(t, 1, summary.Translated)

	content := readArchiveFile(t, summary.ResourcePackPath, "assets/example-mod/lang/zh_cn.json")
	assert.Contains(t, content, `"key1": "你好"`)
	assert.Contains(t, content, `"key2": "World"`)

	// No quest text: the overrides archive exists but is empty.
	assert.Zero(t, archiveEntryCount(t, summary.OverridesPath))
}

func TestSecondRunIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, first.Failures)
	firstRP, err := os.ReadFile(first.ResourcePackPath)
	require.NoError(t, err)

	second := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, second.Failures)

	// No stage executor runs again.
	assert.Equal(t, 1, f.downloader.downloads)
	assert.Equal(t, 1, f.downloader.installs)
	assert.Equal(t, 1, f.mods.calls)
	assert.Equal(t, 1, f.translator.calls)

	// The package output is byte-identical.
	secondRP, err := os.ReadFile(second.ResourcePackPath)
	require.NoError(t, err)
	assert.Equal(t, firstRP, secondRP)
}

func TestDeletingUnitDirInvalidatesOnlyThatUnit(t *testing.T) {
	f := newFixture(t)
	f.mods.units["other-mod"] = lang.Entries{"key3": "Other"}

	first := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, first.Failures)
	require.Equal(t, 2, f.translator.calls)

	unit := store.UnitKey{Category: store.CategoryMod, Name: "example-mod"}
	require.NoError(t, os.RemoveAll(f.store.UnitDir("pack-a", store.StageTranslated, unit)))

	second := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, second.Failures)

	// Only the deleted unit went back through translation.
	assert.Equal(t, 3, f.translator.calls)
	assert.Equal(t, 1, f.mods.calls, "extraction stays cached")
}

func TestTranslationFailureIsolatedAndRetried(t *testing.T) {
	f := newFixture(t)
	f.mods.units["bad-mod"] = lang.Entries{"keyX": "Poison"}
	f.translator.failFor = map[string]bool{"Poison": true}

	first := f.driver.Run(t.Context(), "pack-a")

	// The failure is reported but not fatal, and the sibling unit
	// was translated and packaged.
	require.Len(t, first.Failures, 1)
	assert.Equal(t, KindTranslation, first.Failures[0].Kind)
	assert.False(t, first.Fatal())
	assert.Equal(t, 1, first.Translated)

	content := readArchiveFile(t, first.ResourcePackPath, "assets/example-mod/lang/zh_cn.json")
	assert.Contains(t, content, "你好")
	// The failed unit falls back to its extracted entries.
	fallback := readArchiveFile(t, first.ResourcePackPath, "assets/bad-mod/lang/zh_cn.json")
	assert.Contains(t, fallback, "Poison")

	// No failure marker is persisted: the unit retries next run and,
	// once the poison clears, succeeds without the sibling re-running.
	f.translator.failFor = nil
	second := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, second.Failures)
	assert.Equal(t, 3, f.translator.calls)
}

func TestExtractionFailureSkipsCategoryButContinues(t *testing.T) {
	f := newFixture(t)
	f.quests.err = errors.New("corrupt quest data")
	f.quests.units = map[string]lang.Entries{}

	summary := f.driver.Run(t.Context(), "pack-a")

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, KindExtraction, summary.Failures[0].Kind)
	assert.False(t, summary.Fatal())

	// Mods were still extracted, translated and packaged.
	assert.NotEmpty(t, summary.ResourcePackPath)
	content := readArchiveFile(t, summary.ResourcePackPath, "assets/example-mod/lang/zh_cn.json")
	assert.Contains(t, content, "你好")

	// The failed category is retried next run; the healthy one is not.
	f.quests.err = nil
	f.quests.units = nil
	second := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, second.Failures)
	assert.Equal(t, 2, f.quests.calls)
	assert.Equal(t, 1, f.mods.calls)
}

func TestDownloadFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.downloader.err = errors.New("api unavailable")

	summary := f.driver.Run(t.Context(), "pack-a")

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, KindDownload, summary.Failures[0].Kind)
	assert.True(t, summary.Fatal())
	assert.Zero(t, f.mods.calls, "no extraction after a failed download")
	assert.Empty(t, summary.ResourcePackPath)
}

func TestInstallFailureRetriesWholeDownloadStage(t *testing.T) {
	f := newFixture(t)
	f.downloader.installErr = errors.New("mod file gone upstream")

	first := f.driver.Run(t.Context(), "pack-a")

	require.Len(t, first.Failures, 1)
	assert.Equal(t, KindDownload, first.Failures[0].Kind)
	assert.True(t, first.Fatal())
	assert.Empty(t, first.ResourcePackPath)

	// The archive landed on disk, but without a completed install it
	// must not count as a finished stage.
	f.downloader.installErr = nil
	second := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, second.Failures)

	assert.Equal(t, 2, f.downloader.downloads, "download redone after failed install")
	assert.Equal(t, 2, f.downloader.installs, "install retried")
	assert.Equal(t, 1, second.Translated)
	content := readArchiveFile(t, second.ResourcePackPath, "assets/example-mod/lang/zh_cn.json")
	assert.Contains(t, content, "你好")
}

func TestUnitResolutionFailureReportedAsExtraction(t *testing.T) {
	f := newFixture(t)
	f.mods.units = nil

	// A regular file where the mods category directory belongs makes
	// unit listing fail after the extractors have run.
	modsDir := f.store.CategoryDir("pack-a", store.StageExtracted, store.CategoryMod)
	require.NoError(t, os.MkdirAll(filepath.Dir(modsDir), 0o755))
	require.NoError(t, os.WriteFile(modsDir, []byte("not a directory"), 0o644))

	summary := f.driver.Run(t.Context(), "pack-a")

	require.NotEmpty(t, summary.Failures)
	for _, fail := range summary.Failures {
		assert.Equal(t, KindExtraction, fail.Kind)
	}
	assert.Empty(t, summary.ResourcePackPath)
}

func TestEmptyUnitCountsAsPresent(t *testing.T) {
	f := newFixture(t)
	f.mods.units["lib-mod"] = lang.Entries{}

	first := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, first.Failures)
	assert.Len(t, first.Units, 2)

	second := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, second.Failures)
	// The empty unit is cached like any other, not re-extracted.
	assert.Equal(t, 1, f.mods.calls)
}

func TestNewerUpstreamFileInvalidatesDownload(t *testing.T) {
	f := newFixture(t)

	first := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, first.Failures)

	f.downloader.latest = 200
	second := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, second.Failures)

	assert.Equal(t, 2, f.downloader.downloads)
	assert.Equal(t, 2, f.mods.calls, "work tree rebuilt after upstream update")
}

func TestQuestRoutingEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.quests.units = map[string]lang.Entries{
		string(store.CategoryFTBQuests): {"chapter.intro.title": "Hello"},
	}

	summary := f.driver.Run(t.Context(), "pack-a")
	require.Empty(t, summary.Failures)

	snbt := readArchiveFile(t, summary.OverridesPath, "config/ftbquests/quests/lang/zh_cn.snbt")
	assert.Contains(t, snbt, "你好")

	// Quest text must not leak into the resource pack.
	zr, err := zip.OpenReader(summary.ResourcePackPath)
	require.NoError(t, err)
	defer zr.Close()
	for _, file := range zr.File {
		assert.NotContains(t, file.Name, "ftbquests")
	}
}

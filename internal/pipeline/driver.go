// Package pipeline orchestrates the localization stages for one
// modpack: Download, Extract, Translate, Package. Each stage checks
// the artifact store before doing work, so re-running a completed
// pipeline touches nothing. Stage failures are classified by Kind;
// only Download and Package failures abort a modpack.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zack-zzq/modpack-localizer/internal/curseforge"
	"github.com/zack-zzq/modpack-localizer/internal/extract"
	"github.com/zack-zzq/modpack-localizer/internal/history"
	"github.com/zack-zzq/modpack-localizer/internal/lang"
	"github.com/zack-zzq/modpack-localizer/internal/packager"
	"github.com/zack-zzq/modpack-localizer/internal/store"
	"github.com/zack-zzq/modpack-localizer/internal/translator"
	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// Downloader resolves a modpack slug, fetches its archive and installs
// it into an instance directory.
type Downloader interface {
	DownloadModpack(ctx context.Context, slug, destPath string) (*curseforge.ModpackInfo, error)
	Install(ctx context.Context, archivePath, instanceDir string) (*curseforge.Manifest, error)
	CheckLatest(ctx context.Context, slug string) (int, error)
}

// Translator translates one unit's entry set.
type Translator interface {
	TranslateUnit(ctx context.Context, entries lang.Entries) (*translator.Result, error)
}

// Summary aggregates the outcome of one modpack run.
type Summary struct {
	Slug string
	// Units resolved from the extracted stage, in stable order.
	Units []store.UnitKey
	// Translated counts units with a translated artifact after this
	// run (fresh or cached).
	Translated int
	// Failures collects every stage error. Fatal kinds stop the run;
	// the rest are advisory.
	Failures []*Error
	// ResourcePackPath and OverridesPath locate the built archives.
	// Empty when the run aborted before packaging.
	ResourcePackPath string
	OverridesPath    string
}

// Fatal reports whether the run ended without a usable package.
func (s *Summary) Fatal() bool {
	for _, f := range s.Failures {
		if f.Kind.Fatal() {
			return true
		}
	}
	return false
}

func (s *Summary) addFailure(e *Error) {
	s.Failures = append(s.Failures, e)
}

// Driver runs the staged pipeline for modpack slugs.
type Driver struct {
	store      *store.Store
	downloader Downloader
	extractors []extract.Extractor
	translator Translator
	builder    *packager.Builder
	history    *history.Store
	outputDir  string
	targetLang string
	workers    int
}

// DriverConfig wires the driver's collaborators. History is optional.
type DriverConfig struct {
	Store      *store.Store
	Downloader Downloader
	Extractors []extract.Extractor
	Translator Translator
	Builder    *packager.Builder
	History    *history.Store
	OutputDir  string
	TargetLang string
	Workers    int
}

// NewDriver creates a pipeline driver.
func NewDriver(cfg DriverConfig) *Driver {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	extractors := cfg.Extractors
	if extractors == nil {
		extractors = extract.All()
	}
	return &Driver{
		store:      cfg.Store,
		downloader: cfg.Downloader,
		extractors: extractors,
		translator: cfg.Translator,
		builder:    cfg.Builder,
		history:    cfg.History,
		outputDir:  cfg.OutputDir,
		targetLang: cfg.TargetLang,
		workers:    workers,
	}
}

// Run executes the full pipeline for one modpack. The returned Summary
// is non-nil even on fatal failure.
func (d *Driver) Run(ctx context.Context, slug string) *Summary {
	summary := &Summary{Slug: slug}

	runID := d.startHistory(ctx, slug)

	if err := d.runDownload(ctx, slug); err != nil {
		summary.addFailure(err)
		d.finishHistory(ctx, runID, false)
		return summary
	}

	for _, fail := range d.runExtract(ctx, slug) {
		summary.addFailure(fail)
	}

	units, err := d.store.ListUnits(slug, store.StageExtracted)
	if err != nil {
		summary.addFailure(WrapError(KindExtraction, slug, fmt.Errorf("failed to resolve units: %w", err)))
		d.finishHistory(ctx, runID, false)
		return summary
	}
	summary.Units = units

	d.runTranslate(ctx, slug, runID, units, summary)

	if err := d.runPackage(ctx, slug, units, summary); err != nil {
		summary.addFailure(err)
		d.finishHistory(ctx, runID, false)
		return summary
	}

	d.finishHistory(ctx, runID, !summary.Fatal())
	return summary
}

// runDownload ensures the modpack archive is downloaded and its
// instance tree installed. The version record is written only after
// the install completes, making it the stage's presence marker: a run
// that fails mid-stage leaves no marker, so the whole stage is redone
// on the next run instead of a half-installed tree passing for done.
func (d *Driver) runDownload(ctx context.Context, slug string) *Error {
	archivePath := d.store.ArchivePath(slug)
	versionPath := d.store.VersionPath(slug)

	if current := curseforge.LoadModpackInfo(versionPath); current != nil && d.store.ArchiveExists(slug) {
		if stale, latest := d.archiveStale(ctx, slug, current); stale {
			log.Info("modpack %s has a newer file (id %d), re-downloading", slug, latest)
			if err := os.RemoveAll(d.store.SlugDir(slug)); err != nil {
				return WrapError(KindDownload, slug, fmt.Errorf("failed to clear stale work tree: %w", err))
			}
		} else {
			log.Debug("modpack %s already downloaded and installed, skipping", slug)
			return nil
		}
	}

	info, err := d.downloader.DownloadModpack(ctx, slug, archivePath)
	if err != nil {
		return WrapError(KindDownload, slug, err)
	}
	log.Info("downloaded %s (%s, file %d)", info.Name, info.Version, info.FileID)

	manifest, err := d.downloader.Install(ctx, archivePath, d.store.InstanceDir(slug))
	if err != nil {
		return WrapError(KindDownload, slug, err)
	}
	if info.Version == "" {
		info.Version = manifest.Version
	}
	if info.MCVersion == "" {
		info.MCVersion = manifest.Minecraft.Version
	}

	if err := info.Save(versionPath); err != nil {
		return WrapError(KindDownload, slug, fmt.Errorf("failed to record modpack version: %w", err))
	}
	return nil
}

// archiveStale checks upstream for a newer modpack file. Lookup
// failures keep the cached archive: an offline run must stay usable.
func (d *Driver) archiveStale(ctx context.Context, slug string, current *curseforge.ModpackInfo) (bool, int) {
	latest, err := d.downloader.CheckLatest(ctx, slug)
	if err != nil {
		log.Warn("update check for %s failed, keeping cached archive: %v", slug, err)
		return false, 0
	}
	return latest > current.FileID, latest
}

// runExtract runs every category extractor whose output is missing.
// Each category fails independently; siblings continue.
func (d *Driver) runExtract(ctx context.Context, slug string) []*Error {
	instanceDir := d.store.InstanceDir(slug)
	var failures []*Error
	for _, ex := range d.extractors {
		if ctx.Err() != nil {
			failures = append(failures, WrapError(KindExtraction, slug, ctx.Err()))
			return failures
		}
		category := ex.Category()
		if d.store.CategoryExists(slug, store.StageExtracted, category) {
			log.Debug("category %s for %s already extracted, skipping", category, slug)
			continue
		}
		units, err := ex.Extract(instanceDir)
		if err != nil {
			failures = append(failures, WrapError(KindExtraction, slug, fmt.Errorf("category %s: %w", category, err)))
			continue
		}
		if units == nil {
			log.Debug("category %s absent in %s", category, slug)
			continue
		}
		for name, entries := range units {
			unit := store.UnitKey{Category: category, Name: name}
			if err := d.store.WriteEntries(slug, store.StageExtracted, unit, entries); err != nil {
				failures = append(failures, WrapUnitError(KindExtraction, slug, unit, err))
				continue
			}
		}
		log.Info("extracted %d %s unit(s) from %s", len(units), category, slug)
	}
	return failures
}

// runTranslate translates every unit missing a translated artifact.
// Unit failures are collected, never persisted, and never abort
// sibling units; the failed unit retries on the next run.
func (d *Driver) runTranslate(ctx context.Context, slug string, runID int64, units []store.UnitKey, summary *Summary) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, unit := range units {
		g.Go(func() error {
			if d.store.Exists(slug, store.StageTranslated, unit) {
				mu.Lock()
				summary.Translated++
				mu.Unlock()
				d.recordUnit(ctx, runID, unit, history.StatusDone, "cached")
				return nil
			}
			if err := d.translateUnit(gctx, slug, unit); err != nil {
				log.Warn("translation of %s/%s failed, will retry next run: %v", slug, unit, err)
				mu.Lock()
				summary.addFailure(WrapUnitError(KindTranslation, slug, unit, err))
				mu.Unlock()
				d.recordUnit(ctx, runID, unit, history.StatusFailed, err.Error())
				return nil
			}
			mu.Lock()
			summary.Translated++
			mu.Unlock()
			d.recordUnit(ctx, runID, unit, history.StatusDone, "")
			return nil
		})
	}
	// Workers only ever return nil; the group exists for the limit and
	// context plumbing.
	_ = g.Wait()
}

func (d *Driver) translateUnit(ctx context.Context, slug string, unit store.UnitKey) error {
	entries, err := d.store.ReadEntries(slug, store.StageExtracted, unit)
	if err != nil {
		return err
	}
	result, err := d.translator.TranslateUnit(ctx, entries)
	if err != nil {
		return err
	}
	if err := d.store.WriteEntries(slug, store.StageTranslated, unit, result.Entries); err != nil {
		return err
	}
	log.Info("translated %s/%s: %d dict, %d llm, %d localized, %d passed through",
		slug, unit, result.DictHits, result.LLMTranslated, result.AlreadyLocalized, len(result.PassedThrough))
	return nil
}

// runPackage always builds both archives once units exist, using the
// translated artifact where present and falling back to the extracted
// entries for units that failed translation this run.
func (d *Driver) runPackage(ctx context.Context, slug string, units []store.UnitKey, summary *Summary) *Error {
	if ctx.Err() != nil {
		return WrapError(KindPackage, slug, ctx.Err())
	}

	unitEntries := make([]packager.UnitEntries, 0, len(units))
	for _, unit := range units {
		entries, err := d.store.ReadEntries(slug, store.StageTranslated, unit)
		if errors.Is(err, store.ErrNotFound) {
			entries, err = d.store.ReadEntries(slug, store.StageExtracted, unit)
		}
		if err != nil {
			return WrapUnitError(KindPackage, slug, unit, err)
		}
		unitEntries = append(unitEntries, packager.UnitEntries{Unit: unit, Entries: entries})
	}

	outDir := filepath.Join(d.outputDir, slug)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return WrapError(KindPackage, slug, err)
	}

	rpPath := filepath.Join(outDir, slug+"-localization-resourcepack.zip")
	rpCount, err := d.builder.BuildResourcePack(slug, unitEntries, rpPath)
	if err != nil {
		return WrapError(KindPackage, slug, err)
	}

	ovPath := filepath.Join(outDir, slug+"-localization-overrides.zip")
	ovCount, err := d.builder.BuildOverrides(unitEntries, ovPath)
	if err != nil {
		return WrapError(KindPackage, slug, err)
	}

	summary.ResourcePackPath = rpPath
	summary.OverridesPath = ovPath
	log.Info("packaged %s: %d resourcepack file(s), %d overrides file(s)", slug, rpCount, ovCount)
	return nil
}

func (d *Driver) startHistory(ctx context.Context, slug string) int64 {
	if d.history == nil {
		return 0
	}
	runID, err := d.history.StartRun(ctx, slug)
	if err != nil {
		log.Warn("failed to record run start for %s: %v", slug, err)
		return 0
	}
	return runID
}

func (d *Driver) recordUnit(ctx context.Context, runID int64, unit store.UnitKey, status history.UnitStatus, reason string) {
	if d.history == nil || runID == 0 {
		return
	}
	if err := d.history.RecordUnit(ctx, runID, unit, status, reason); err != nil {
		log.Warn("failed to record unit %s: %v", unit, err)
	}
}

func (d *Driver) finishHistory(ctx context.Context, runID int64, success bool) {
	if d.history == nil || runID == 0 {
		return
	}
	if err := d.history.FinishRun(ctx, runID, success); err != nil {
		log.Warn("failed to record run finish: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/zack-zzq/modpack-localizer/internal/config"
	"github.com/zack-zzq/modpack-localizer/internal/curseforge"
	"github.com/zack-zzq/modpack-localizer/internal/dictionary"
	"github.com/zack-zzq/modpack-localizer/internal/extract"
	"github.com/zack-zzq/modpack-localizer/internal/history"
	"github.com/zack-zzq/modpack-localizer/internal/llm"
	"github.com/zack-zzq/modpack-localizer/internal/packager"
	"github.com/zack-zzq/modpack-localizer/internal/pipeline"
	"github.com/zack-zzq/modpack-localizer/internal/schedule"
	"github.com/zack-zzq/modpack-localizer/internal/store"
	"github.com/zack-zzq/modpack-localizer/internal/translator"
	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the localization pipeline once for every configured modpack",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		svc, cleanup, err := buildService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		summaries := svc.RunAll(cmd.Context())
		for _, summary := range summaries {
			if fatalSummary(summary) {
				return fmt.Errorf("localization of %s failed", summary.Slug)
			}
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on a cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, cleanup, err := buildService(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		cronEngine := cron.New()
		if err := svc.Schedule(ctx, cronEngine); err != nil {
			return fmt.Errorf("failed to schedule pipeline: %w", err)
		}
		cronEngine.Start()
		log.Info("serve mode started, schedule %q", cfg.Schedule.CronExpr)

		<-ctx.Done()
		log.Info("shutting down")
		<-cronEngine.Stop().Done()
		return nil
	},
}

// buildService wires the pipeline from configuration. The returned
// cleanup closes the history ledger.
func buildService(ctx context.Context, cfg *config.Config) (*schedule.Service, func(), error) {
	st := store.New(cfg.Paths.WorkDir, cfg.Translation.TargetLang)

	cfClient, err := curseforge.NewClient(cfg.CurseForge.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create CurseForge client: %w", err)
	}

	dictURL := cfg.Dictionary.URL
	if dictURL == "" {
		dictURL = dictionary.DefaultURL
	}
	if err := os.MkdirAll(cfg.Paths.WorkDir, 0o755); err != nil {
		return nil, nil, err
	}
	dict := dictionary.Fetch(ctx, dictURL, st.DictCachePath(), cfg.Translation.Terminology)
	log.Info("dictionary loaded with %d entries", dict.Len())

	var llmClient translator.LLMClient
	if cfg.Translation.LLMEnabled {
		client, err := llm.NewClient(&llm.Config{
			APIKey:      cfg.LLM.APIKey,
			APIURL:      cfg.LLM.APIURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.Translation.Temperature,
			Timeout:     cfg.Translation.TimeoutSec,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		llmClient = client
	}

	unitTranslator := translator.New(dict, llmClient, translator.Config{
		TargetLang: cfg.Translation.TargetLang,
		LLMEnabled: cfg.Translation.LLMEnabled,
		BatchSize:  cfg.Translation.BatchSize,
		MaxRetries: cfg.Translation.MaxRetries,
		Timeout:    time.Duration(cfg.Translation.TimeoutSec) * time.Second,
		RetryDelay: 2 * time.Second,
	})

	hist, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		log.Warn("run history disabled: %v", err)
		hist = nil
	}

	driver := pipeline.NewDriver(pipeline.DriverConfig{
		Store:      st,
		Downloader: cfClient,
		Extractors: extract.All(),
		Translator: unitTranslator,
		Builder:    packager.NewBuilder(cfg.Translation.TargetLang, cfg.Translation.PackFormat),
		History:    hist,
		OutputDir:  cfg.Paths.OutputDir,
		TargetLang: cfg.Translation.TargetLang,
		Workers:    cfg.Translation.Workers,
	})

	svc := schedule.NewService(driver, cfg.Modpack.Slugs, cfg.Schedule.CronExpr)
	cleanup := func() {
		if hist != nil {
			if err := hist.Close(); err != nil {
				log.Warn("failed to close history ledger: %v", err)
			}
		}
	}
	return svc, cleanup, nil
}

// fatalSummary reports whether a run should make the process exit
// non-zero. Translation failures do not: they retry on the next run
// and a usable package was still produced.
func fatalSummary(s *pipeline.Summary) bool {
	for _, f := range s.Failures {
		if !pipeline.IsKind(f, pipeline.KindTranslation) {
			return true
		}
	}
	return false
}

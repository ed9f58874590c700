// Package schedule runs the pipeline on a cron schedule for serve
// mode. Overlapping triggers collapse into one run via singleflight,
// so a slow pipeline never stacks concurrent executions.
package schedule

import (
	"context"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/zack-zzq/modpack-localizer/internal/pipeline"
	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// Service periodically runs the pipeline for a fixed set of slugs.
type Service struct {
	driver   *pipeline.Driver
	slugs    []string
	cronExpr string
}

// NewService creates a scheduled pipeline service.
func NewService(driver *pipeline.Driver, slugs []string, cronExpr string) *Service {
	return &Service{
		driver:   driver,
		slugs:    slugs,
		cronExpr: cronExpr,
	}
}

var singleflightGroup singleflight.Group

// Schedule registers the pipeline run on the cron engine. The caller
// owns starting and stopping the engine.
func (s *Service) Schedule(ctx context.Context, c *cron.Cron) error {
	log.Info("Scheduling localization runs (%s) for %d modpack(s)", s.cronExpr, len(s.slugs))

	runFunc := func() {
		_, _, _ = singleflightGroup.Do("run", func() (any, error) {
			s.RunAll(ctx)
			return nil, nil
		})
	}
	_, err := c.AddFunc(s.cronExpr, runFunc)
	return err
}

// RunAll runs the pipeline for every configured slug and reports the
// aggregate. A fatal failure in one modpack does not stop the others.
func (s *Service) RunAll(ctx context.Context) []*pipeline.Summary {
	summaries := make([]*pipeline.Summary, 0, len(s.slugs))
	for _, slug := range s.slugs {
		log.Info("Running localization pipeline for %s", slug)
		summary := s.driver.Run(ctx, slug)
		for _, fail := range summary.Failures {
			log.Error("%v", fail)
		}
		if summary.Fatal() {
			log.Error("Pipeline for %s failed without a usable package", slug)
		} else {
			log.Info("Pipeline for %s finished: %d unit(s), %d translated", slug, len(summary.Units), summary.Translated)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"oos-analytics/models"
	"oos-analytics/utils"
)

// runScheduled pulls yesterday's events once a day at the given HH:MM local
// time until ctx is cancelled.
func runScheduled(ctx context.Context, at string, r *runner, logger *utils.Logger) error {
	s := gocron.NewScheduler(time.Local)
	s.SingletonModeAll()

	job, err := s.Every(1).Day().At(at).Do(func() {
		dates := models.Yesterday(time.Now())
		logger.Info("[schedule] Pulling %s", dates.Start.Format(models.DateLayout))
		if err := r.run(ctx, dates); err != nil {
			logger.Warn("[schedule] Run failed, next attempt at the next tick")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule daily pull at %q: %w", at, err)
	}

	s.StartAsync()
	logger.Info("[schedule] Daily pull scheduled at %s (next run %s)", at, job.NextRun().Format(time.RFC3339))

	<-ctx.Done()
	logger.Info("[schedule] Shutting down")
	s.Stop()
	return nil
}

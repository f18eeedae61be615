package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"oos-analytics/analytics"
	"oos-analytics/auth"
	"oos-analytics/config"
	"oos-analytics/metrics"
	"oos-analytics/models"
	"oos-analytics/services"
	"oos-analytics/storage"
	"oos-analytics/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetDebug(cfg.LogDebug)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration:\n%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Out-of-stock analytics pull starting ===")
	logger.Info("Config — view: %s | category: %s | sampling: %s | page size: %d | output: %s",
		cfg.ViewID, cfg.EventCategory, cfg.SamplingLevel, cfg.PageSize, cfg.OutputDir)

	r, err := newRunner(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed: %v", err)
		os.Exit(1)
	}

	if cfg.ScheduleAt != "" {
		if err := runScheduled(ctx, cfg.ScheduleAt, r, logger); err != nil {
			logger.Error("Scheduler failed: %v", err)
			os.Exit(1)
		}
		return
	}

	dates, err := startRange(cfg.StartDate, time.Now())
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if err := r.run(ctx, dates); err != nil {
		os.Exit(1)
	}
}

// runner owns the long-lived pieces (authorized fetcher, metrics) and builds
// the per-run sinks and pipeline.
type runner struct {
	cfg      *config.Config
	logger   *utils.Logger
	source   services.PageSource
	recorder *metrics.Recorder
}

func newRunner(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*runner, error) {
	client, err := auth.New(cfg, logger).Authorize(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("[auth] Authorized for %s", auth.Scope)

	fetcher, err := analytics.NewGAFetcher(ctx, client, analytics.QueryFromConfig(cfg), cfg.MaxRetries, logger)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder(cfg.MetricsTextfile)
	limiter := utils.NewRateLimiter(cfg.RateLimit())

	return &runner{
		cfg:      cfg,
		logger:   logger,
		source:   analytics.NewPaginator(fetcher, limiter, logger, recorder),
		recorder: recorder,
	}, nil
}

// run pulls every date of dates and prints the run summary.
func (r *runner) run(ctx context.Context, dates models.DateRange) error {
	runID := uuid.NewString()

	sinks, closeSinks, err := r.sinks(runID)
	if err != nil {
		r.logger.Error("%v", err)
		return err
	}
	defer closeSinks()

	summary := services.NewSummaryService(r.logger)
	pipeline := services.NewPipeline(services.PipelineDeps{
		Source:          r.source,
		Flattener:       services.NewFlattener(r.logger, r.recorder),
		Aggregator:      services.NewAggregator(r.logger),
		Summary:         summary,
		Sinks:           sinks,
		Observer:        r.recorder,
		Logger:          r.logger,
		ContinueOnError: r.cfg.ContinueOnError,
	})

	sum, err := pipeline.Run(ctx, dates, runID)
	summary.Print(os.Stdout, sum)

	if err != nil {
		r.logger.Error("Run %s finished with errors: %v", runID, err)
		if errors.Is(err, models.ErrAuth) {
			r.logger.Error("Delete %s and run again to re-authorize", r.cfg.TokenCachePath)
		}
		return err
	}

	fmt.Printf("  Done. Reports → %s\n\n", r.cfg.OutputDir)
	return nil
}

func (r *runner) sinks(runID string) ([]services.Sink, func(), error) {
	csvWriter, err := storage.NewCSVWriter(r.cfg.OutputDir, r.cfg.DayEventsTemplate, r.cfg.HourlyEventsTemplate)
	if err != nil {
		return nil, nil, err
	}
	sinks := []services.Sink{{Name: "csv", Writer: csvWriter}}

	if r.cfg.PostgresEnabled {
		pgWriter, err := storage.NewPostgresWriter(r.cfg.DSN(), runID)
		if err != nil {
			_ = csvWriter.Close()
			return nil, nil, fmt.Errorf("%w (is the database running? docker compose up -d)", err)
		}
		sinks = append(sinks, services.Sink{Name: "postgres", Writer: pgWriter})
	}

	closeAll := func() {
		for _, s := range sinks {
			if err := s.Writer.Close(); err != nil {
				r.logger.Warn("Closing %s sink: %v", s.Name, err)
			}
		}
	}
	return sinks, closeAll, nil
}

// startRange uses START_DATE when set and asks the operator otherwise.
func startRange(preset string, now time.Time) (models.DateRange, error) {
	input := preset
	if input == "" {
		fmt.Print("Select start date (yyyy-mm-dd): ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && strings.TrimSpace(line) == "" {
			return models.DateRange{}, fmt.Errorf("read start date: %w", err)
		}
		input = line
	}
	return models.ParseStartDate(input, now)
}

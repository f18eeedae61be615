package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oos-analytics/models"
	"oos-analytics/storage"
	"oos-analytics/utils"
)

// PageSource returns every raw page for a date range.
type PageSource interface {
	FetchAll(ctx context.Context, start, end string) ([]*models.RawPage, error)
}

// RunObserver receives pipeline progress. metrics.Recorder implements it.
type RunObserver interface {
	ObserveFlattened(n int)
	ObserveWritten(view, sink string)
	ObserveDate(err error, at time.Time)
	Flush() error
}

// Sink is a named report destination.
type Sink struct {
	Name   string
	Writer storage.ReportWriter
}

// PipelineDeps wires a Pipeline.
type PipelineDeps struct {
	Source          PageSource
	Flattener       *Flattener
	Aggregator      *Aggregator
	Summary         *SummaryService
	Sinks           []Sink
	Observer        RunObserver
	Logger          *utils.Logger
	ContinueOnError bool
}

// Pipeline runs fetch → flatten → aggregate → write for each date in turn.
type Pipeline struct {
	deps PipelineDeps
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Pipeline{deps: deps}
}

// Run processes every date of r sequentially. Without ContinueOnError the
// first failing date stops the run; with it, failures are collected and
// returned together after the last date.
func (p *Pipeline) Run(ctx context.Context, r models.DateRange, runID string) (*models.RunSummary, error) {
	log := p.deps.Logger
	dates := r.Dates()
	sum := p.deps.Summary.Begin(runID)

	log.Info("[pipeline] Run %s: %d dates (%s → %s)", runID, len(dates),
		r.Start.Format(models.DateLayout), r.End.AddDate(0, 0, -1).Format(models.DateLayout))

	var failures []error
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		res, daily, err := p.runDate(ctx, date)
		p.deps.Summary.Record(sum, res, daily)
		p.deps.Observer.ObserveDate(err, time.Now())
		if ferr := p.deps.Observer.Flush(); ferr != nil {
			log.Warn("[pipeline] %v", ferr)
		}

		if err != nil {
			log.Error("[pipeline] %s failed: %v", date, err)
			if !p.deps.ContinueOnError {
				return sum, fmt.Errorf("pipeline: %s: %w", date, err)
			}
			failures = append(failures, fmt.Errorf("%s: %w", date, err))
			continue
		}
		log.Info("[pipeline] %s done in %v: %d records, %d daily rows",
			date, res.Duration.Round(time.Millisecond), res.FlatRows, res.DailyRows)
	}

	if len(failures) > 0 {
		return sum, fmt.Errorf("pipeline: %d of %d dates failed: %w",
			len(failures), len(dates), errors.Join(failures...))
	}
	return sum, nil
}

// runDate processes a single date and returns its daily rows for the summary.
func (p *Pipeline) runDate(ctx context.Context, date string) (*models.DateResult, []models.DailyEvent, error) {
	began := time.Now()
	res := &models.DateResult{Date: date}
	fail := func(err error) (*models.DateResult, []models.DailyEvent, error) {
		res.Err = err
		res.Duration = time.Since(began)
		return res, nil, err
	}

	pages, err := p.deps.Source.FetchAll(ctx, date, date)
	if err != nil {
		return fail(err)
	}
	res.Pages = len(pages)
	for _, pg := range pages {
		res.RawRows += len(pg.Rows)
	}

	records, err := p.deps.Flattener.Flatten(pages)
	if err != nil {
		return fail(err)
	}
	res.FlatRows = len(records)
	res.DroppedRows = res.RawRows - res.FlatRows
	p.deps.Observer.ObserveFlattened(len(records))

	if len(records) == 0 {
		p.deps.Logger.Warn("[pipeline] %s: no events, nothing written", date)
		res.Duration = time.Since(began)
		return res, nil, nil
	}

	daily := p.deps.Aggregator.Daily(records)
	hourly := p.deps.Aggregator.Hourly(records)
	res.DailyRows = len(daily)
	for _, d := range daily {
		res.TotalEvents += d.TotalEvents
	}

	for _, sink := range p.deps.Sinks {
		dest, err := sink.Writer.WriteDaily(daily)
		if err != nil {
			return fail(fmt.Errorf("%s daily: %w", sink.Name, err))
		}
		p.deps.Observer.ObserveWritten("daily", sink.Name)
		res.Destinations = append(res.Destinations, dest)

		dest, err = sink.Writer.WriteHourly(hourly)
		if err != nil {
			return fail(fmt.Errorf("%s hourly: %w", sink.Name, err))
		}
		p.deps.Observer.ObserveWritten("hourly", sink.Name)
		res.Destinations = append(res.Destinations, dest)

		p.deps.Logger.Debug("[pipeline] %s: saved %s views", date, sink.Name)
	}

	res.Duration = time.Since(began)
	return res, daily, nil
}

type nopObserver struct{}

func (nopObserver) ObserveFlattened(int)          {}
func (nopObserver) ObserveWritten(string, string) {}
func (nopObserver) ObserveDate(error, time.Time)  {}
func (nopObserver) Flush() error                  { return nil }

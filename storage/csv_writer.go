package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"oos-analytics/config"
	"oos-analytics/models"
)

var (
	dailyHeader  = []string{"page", "date", "event_label", "event_action", "total_events"}
	hourlyHeader = []string{"event_action", "event_label", "date", "hour", "page", "total_events"}
)

// CSVWriter writes each report view to a dated CSV file in one directory.
type CSVWriter struct {
	dir            string
	dailyTemplate  string
	hourlyTemplate string
}

// NewCSVWriter creates the output directory if needed. Templates must
// contain config.DatePlaceholder.
func NewCSVWriter(dir, dailyTemplate, hourlyTemplate string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w: %w", models.ErrFileWrite, err)
	}
	return &CSVWriter{dir: dir, dailyTemplate: dailyTemplate, hourlyTemplate: hourlyTemplate}, nil
}

// WriteDaily writes the daily aggregate, overwriting any file for the same date.
func (c *CSVWriter) WriteDaily(rows []models.DailyEvent) (string, error) {
	dates := make([]string, len(rows))
	records := make([][]string, len(rows))
	for i, r := range rows {
		dates[i] = r.Date
		records[i] = []string{r.Page, r.Date, r.EventLabel, r.EventAction, strconv.FormatInt(r.TotalEvents, 10)}
	}
	return c.write(c.dailyTemplate, dates, dailyHeader, records)
}

// WriteHourly writes the hourly detail, overwriting any file for the same date.
func (c *CSVWriter) WriteHourly(rows []models.FlatRecord) (string, error) {
	dates := make([]string, len(rows))
	records := make([][]string, len(rows))
	for i, r := range rows {
		dates[i] = r.Date
		records[i] = []string{r.EventAction, r.EventLabel, r.Date, r.Hour, r.Page, strconv.FormatInt(r.TotalEvents, 10)}
	}
	return c.write(c.hourlyTemplate, dates, hourlyHeader, records)
}

func (c *CSVWriter) write(template string, dates []string, header []string, records [][]string) (string, error) {
	if len(records) == 0 {
		return "", ErrEmptyReport
	}

	path := c.Path(template, MaxDate(dates))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("csv: create file %q: %w: %w", path, models.ErrFileWrite, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("csv: write header: %w: %w", models.ErrFileWrite, err)
	}
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("csv: write rows to %q: %w: %w", path, models.ErrFileWrite, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("csv: close %q: %w: %w", path, models.ErrFileWrite, err)
	}
	return path, nil
}

// Path returns the file for a template and an ISO date, e.g.
// "{date}_day_events.csv" and "2023-06-01" → <dir>/20230601_day_events.csv.
func (c *CSVWriter) Path(template, date string) string {
	compact := strings.ReplaceAll(date, "-", "")
	return filepath.Join(c.dir, strings.ReplaceAll(template, config.DatePlaceholder, compact))
}

// Close is a no-op; every write opens and closes its own file.
func (c *CSVWriter) Close() error {
	return nil
}

// MaxDate returns the lexicographically largest ISO date.
func MaxDate(dates []string) string {
	max := ""
	for _, d := range dates {
		if d > max {
			max = d
		}
	}
	return max
}

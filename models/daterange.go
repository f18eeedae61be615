package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the form the operator and the Reporting API use for dates.
const DateLayout = "2006-01-02"

// DateRange covers Start (inclusive) up to End (exclusive), both at midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseStartDate builds the range from the operator's start date up to,
// but not including, the day of now.
func ParseStartDate(input string, now time.Time) (DateRange, error) {
	start, err := time.ParseInLocation(DateLayout, strings.TrimSpace(input), now.Location())
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q (want yyyy-mm-dd): %w", input, err)
	}

	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !start.Before(end) {
		return DateRange{}, fmt.Errorf("start date %s must be before today (%s)",
			start.Format(DateLayout), end.Format(DateLayout))
	}
	return DateRange{Start: start, End: end}, nil
}

// Yesterday returns the one-day range ending at the day of now.
func Yesterday(now time.Time) DateRange {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return DateRange{Start: end.AddDate(0, 0, -1), End: end}
}

// Dates expands the range into one YYYY-MM-DD string per calendar day.
func (r DateRange) Dates() []string {
	var dates []string
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

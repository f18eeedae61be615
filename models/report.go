package models

import "time"

// RawRow is one row of a Reporting API page, untouched.
// Metrics holds the value list of the first date range.
type RawRow struct {
	Dimensions []string
	Metrics    []string
}

// RawPage holds the reply of a single batchGet call.
// RowCount is only reported by the API on the first page.
type RawPage struct {
	Rows          []RawRow
	NextPageToken string
	RowCount      int64
}

// FlatRecord is one event occurrence after flattening.
type FlatRecord struct {
	EventAction string
	EventLabel  string
	Date        string // YYYY-MM-DD
	Hour        string // 00-23
	Page        string // two-character site section
	TotalEvents int64
}

// DailyEvent is one row of the daily aggregate, unique per
// (page, date, event label, event action).
type DailyEvent struct {
	Page        string
	Date        string
	EventLabel  string
	EventAction string
	TotalEvents int64
}

// DateResult records what happened while processing one date.
type DateResult struct {
	Date         string
	Pages        int
	RawRows      int
	FlatRows     int
	DroppedRows  int
	DailyRows    int
	TotalEvents  int64
	Destinations []string
	Err          error
	Duration     time.Duration
}

// RunSummary holds the computed results of a whole multi-date run.
type RunSummary struct {
	RunID          string
	Dates          []*DateResult
	TotalPages     int
	TotalEvents    int64
	EventsByPage   map[string]int64
	EventsByAction map[string]int64
}

// Failed returns the results whose date could not be processed.
func (s *RunSummary) Failed() []*DateResult {
	var failed []*DateResult
	for _, d := range s.Dates {
		if d.Err != nil {
			failed = append(failed, d)
		}
	}
	return failed
}

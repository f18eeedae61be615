package services

import (
	"strconv"
	"strings"

	"oos-analytics/models"
	"oos-analytics/utils"
)

// noiseAction is the event action reported by a tracking blocker; it is not
// a real stock event.
const noiseAction = "ghostery"

// Positions of the requested dimensions inside a raw row.
const (
	dimAction = iota
	dimLabel
	dimDateHour
	dimPath
	dimCount
)

// DropObserver is told how many flattened rows were discarded and why.
type DropObserver interface {
	ObserveDropped(reason string, n int)
}

// Flattener turns raw report pages into FlatRecords.
type Flattener struct {
	logger   *utils.Logger
	observer DropObserver
}

// NewFlattener creates a Flattener. observer may be nil.
func NewFlattener(logger *utils.Logger, observer DropObserver) *Flattener {
	return &Flattener{logger: logger, observer: observer}
}

// Flatten parses every row of every page and cleans the result. Noise rows
// are discarded before they are checked. If any remaining row cannot be
// read, nothing is returned except a *models.MalformedResponseError
// naming all bad rows.
func (f *Flattener) Flatten(pages []*models.RawPage) ([]models.FlatRecord, error) {
	var (
		badRows []models.RowError
		dropped int
	)
	result := make([]models.FlatRecord, 0)

	for pi, page := range pages {
		if page == nil {
			badRows = append(badRows, models.RowError{Page: pi + 1, Row: 0, Msg: "missing page"})
			continue
		}
		for ri, row := range page.Rows {
			if noisy(row) {
				dropped++
				continue
			}
			rec, msg := parseRow(row)
			if msg != "" {
				badRows = append(badRows, models.RowError{Page: pi + 1, Row: ri + 1, Msg: msg})
				continue
			}
			result = append(result, rec)
		}
	}

	if len(badRows) > 0 {
		return nil, &models.MalformedResponseError{Rows: badRows}
	}

	if dropped > 0 {
		f.logger.Debug("[flattener] Dropped %d %q rows", dropped, noiseAction)
		if f.observer != nil {
			f.observer.ObserveDropped(noiseAction, dropped)
		}
	}
	f.logger.Info("[flattener] Flattened %d pages → %d records (dropped %d)",
		len(pages), len(result), dropped)
	return result, nil
}

// noisy reports whether a row belongs to the tracking blocker, whatever
// state its other fields are in.
func noisy(row models.RawRow) bool {
	return len(row.Dimensions) > dimAction && decodeAction(row.Dimensions[dimAction]) == noiseAction
}

func decodeAction(s string) string {
	return strings.ReplaceAll(s, "+", " ")
}

// parseRow maps the positional dimensions of a raw row onto a FlatRecord,
// decoding the action. A non-empty message means the row is malformed.
func parseRow(row models.RawRow) (models.FlatRecord, string) {
	if len(row.Dimensions) < dimCount {
		return models.FlatRecord{}, "expected " + strconv.Itoa(dimCount) +
			" dimensions, got " + strconv.Itoa(len(row.Dimensions))
	}
	if len(row.Metrics) < 1 {
		return models.FlatRecord{}, "missing total events metric"
	}

	date, hour, ok := splitDateHour(row.Dimensions[dimDateHour])
	if !ok {
		return models.FlatRecord{}, "date-hour " + strconv.Quote(row.Dimensions[dimDateHour]) +
			" is not YYYYMMDDHH"
	}

	total, err := strconv.ParseInt(strings.TrimSpace(row.Metrics[0]), 10, 64)
	if err != nil || total < 0 {
		return models.FlatRecord{}, "total events " + strconv.Quote(row.Metrics[0]) +
			" is not a non-negative integer"
	}

	return models.FlatRecord{
		EventAction: decodeAction(row.Dimensions[dimAction]),
		EventLabel:  row.Dimensions[dimLabel],
		Date:        date,
		Hour:        hour,
		Page:        pageSection(row.Dimensions[dimPath]),
		TotalEvents: total,
	}, ""
}

// splitDateHour turns "2023060114" into "2023-06-01" and "14".
func splitDateHour(s string) (date, hour string, ok bool) {
	if len(s) != 10 {
		return "", "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	if h, _ := strconv.Atoi(s[8:]); h > 23 {
		return "", "", false
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:8], s[8:], true
}

// rootPage stands in for paths with nothing after the leading character,
// such as the home page "/".
const rootPage = "/"

// pageSection returns the characters at offsets 1 and 2 of a first-level
// page path: "/us/shop" → "us", "/a/b" → "a/", "/x" → "x", "/" → "/".
func pageSection(path string) string {
	if len(path) < 2 {
		return rootPage
	}
	return path[1:min(3, len(path))]
}

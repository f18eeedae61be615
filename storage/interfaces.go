package storage

import (
	"errors"

	"oos-analytics/models"
)

// ErrEmptyReport is returned when there are no rows to derive a report date from.
var ErrEmptyReport = errors.New("storage: report has no rows")

// ReportWriter is the interface any report sink must satisfy. Each write
// returns a description of where the rows went.
type ReportWriter interface {
	WriteDaily(rows []models.DailyEvent) (string, error)
	WriteHourly(rows []models.FlatRecord) (string, error)
	Close() error
}

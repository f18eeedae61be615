package models

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes of a run. Callers wrap the underlying error with one of
// these so main and tests can tell them apart with errors.Is.
var (
	ErrAuth              = errors.New("authorization failed")
	ErrTransport         = errors.New("reporting api call failed")
	ErrMalformedResponse = errors.New("malformed reporting api response")
	ErrFileWrite         = errors.New("report write failed")
)

// RowError describes a single raw row that could not be parsed.
type RowError struct {
	Page int
	Row  int
	Msg  string
}

func (e RowError) Error() string {
	return fmt.Sprintf("page %d row %d: %s", e.Page, e.Row, e.Msg)
}

// MalformedResponseError collects every unparseable row of a fetch so the
// whole batch is reported at once.
type MalformedResponseError struct {
	Rows []RowError
}

func (e *MalformedResponseError) Error() string {
	const maxShown = 5
	parts := make([]string, 0, maxShown)
	for i, r := range e.Rows {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Rows)-maxShown))
			break
		}
		parts = append(parts, r.Error())
	}
	return fmt.Sprintf("%v: %d bad rows: %s", ErrMalformedResponse, len(e.Rows), strings.Join(parts, "; "))
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

package services

import (
	"sort"

	"oos-analytics/models"
	"oos-analytics/utils"
)

type Aggregator struct {
	logger *utils.Logger
}

func NewAggregator(logger *utils.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Daily sums total events per (page, date, label, action) and sorts the
// result by date, page, label, action.
func (a *Aggregator) Daily(records []models.FlatRecord) []models.DailyEvent {
	type key struct {
		Page, Date, Label, Action string
	}

	sums := make(map[key]int64)
	for _, r := range records {
		sums[key{r.Page, r.Date, r.EventLabel, r.EventAction}] += r.TotalEvents
	}

	daily := make([]models.DailyEvent, 0, len(sums))
	for k, total := range sums {
		daily = append(daily, models.DailyEvent{
			Page:        k.Page,
			Date:        k.Date,
			EventLabel:  k.Label,
			EventAction: k.Action,
			TotalEvents: total,
		})
	}

	sort.Slice(daily, func(i, j int) bool {
		x, y := daily[i], daily[j]
		if x.Date != y.Date {
			return x.Date < y.Date
		}
		if x.Page != y.Page {
			return x.Page < y.Page
		}
		if x.EventLabel != y.EventLabel {
			return x.EventLabel < y.EventLabel
		}
		return x.EventAction < y.EventAction
	})

	a.logger.Debug("[aggregator] %d records → %d daily rows", len(records), len(daily))
	return daily
}

// Hourly returns a copy of records sorted by date, hour, page, label.
// Rows equal under that order keep their arrival order; nothing is merged.
func (a *Aggregator) Hourly(records []models.FlatRecord) []models.FlatRecord {
	hourly := make([]models.FlatRecord, len(records))
	copy(hourly, records)

	sort.SliceStable(hourly, func(i, j int) bool {
		x, y := hourly[i], hourly[j]
		if x.Date != y.Date {
			return x.Date < y.Date
		}
		if x.Hour != y.Hour {
			return x.Hour < y.Hour
		}
		if x.Page != y.Page {
			return x.Page < y.Page
		}
		return x.EventLabel < y.EventLabel
	})
	return hourly
}

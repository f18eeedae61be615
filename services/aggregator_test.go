package services

import (
	"bytes"
	"strings"
	"testing"

	"oos-analytics/models"
)

func rec(action, label, date, hour, page string, total int64) models.FlatRecord {
	return models.FlatRecord{
		EventAction: action, EventLabel: label, Date: date, Hour: hour, Page: page, TotalEvents: total,
	}
}

func sampleRecords() []models.FlatRecord {
	return []models.FlatRecord{
		rec("out_of_stock", "sku2", "2023-06-01", "14", "us", 3),
		rec("out_of_stock", "sku2", "2023-06-01", "09", "us", 5),
		rec("back_in_stock", "sku1", "2023-06-01", "09", "uk", 1),
		rec("out_of_stock", "sku1", "2023-06-01", "23", "de", 2),
		rec("out_of_stock", "sku1", "2023-06-01", "00", "us", 4),
		rec("add to cart", "sku1", "2023-06-01", "00", "us", 6),
	}
}

func TestDailySumsByKey(t *testing.T) {
	a := NewAggregator(newTestLogger())
	daily := a.Daily(sampleRecords())

	if len(daily) != 5 {
		t.Fatalf("daily rows: got %d, want 5", len(daily))
	}

	var found bool
	for _, d := range daily {
		if d.Page == "us" && d.EventLabel == "sku2" && d.EventAction == "out_of_stock" {
			found = true
			if d.TotalEvents != 8 {
				t.Errorf("sku2 total: got %d, want 8", d.TotalEvents)
			}
		}
	}
	if !found {
		t.Error("aggregated sku2 row missing")
	}
}

func TestDailySortOrder(t *testing.T) {
	a := NewAggregator(newTestLogger())
	records := append(sampleRecords(), rec("out_of_stock", "sku0", "2023-05-31", "10", "zz", 1))
	daily := a.Daily(records)

	key := func(d models.DailyEvent) string {
		return d.Date + "\x00" + d.Page + "\x00" + d.EventLabel + "\x00" + d.EventAction
	}
	for i := 1; i < len(daily); i++ {
		if key(daily[i-1]) > key(daily[i]) {
			t.Errorf("daily rows %d and %d out of order: %+v > %+v", i-1, i, daily[i-1], daily[i])
		}
	}
	if daily[0].Date != "2023-05-31" {
		t.Errorf("first row date: got %q, want 2023-05-31", daily[0].Date)
	}
	if daily[1].Page != "de" {
		t.Errorf("second row page: got %q, want de", daily[1].Page)
	}
}

func TestHourlySortOrderKeepsDuplicates(t *testing.T) {
	a := NewAggregator(newTestLogger())
	records := append(sampleRecords(), rec("out_of_stock", "sku2", "2023-06-01", "14", "us", 3))
	hourly := a.Hourly(records)

	if len(hourly) != len(records) {
		t.Fatalf("hourly rows: got %d, want %d", len(hourly), len(records))
	}

	key := func(r models.FlatRecord) string {
		return r.Date + "\x00" + r.Hour + "\x00" + r.Page + "\x00" + r.EventLabel
	}
	for i := 1; i < len(hourly); i++ {
		if key(hourly[i-1]) > key(hourly[i]) {
			t.Errorf("hourly rows %d and %d out of order", i-1, i)
		}
	}

	// Equal keys keep arrival order: "out_of_stock" sku1 00 came before "add to cart".
	if hourly[0].EventAction != "out_of_stock" || hourly[1].EventAction != "add to cart" {
		t.Errorf("stable order broken: %q, %q", hourly[0].EventAction, hourly[1].EventAction)
	}
}

func TestHourlyDoesNotMutateInput(t *testing.T) {
	a := NewAggregator(newTestLogger())
	records := sampleRecords()
	first := records[0]

	a.Hourly(records)
	if records[0] != first {
		t.Error("Hourly reordered its input slice")
	}
}

func TestAggregateEmpty(t *testing.T) {
	a := NewAggregator(newTestLogger())
	if got := a.Daily(nil); len(got) != 0 {
		t.Errorf("Daily(nil): got %d rows", len(got))
	}
	if got := a.Hourly(nil); len(got) != 0 {
		t.Errorf("Hourly(nil): got %d rows", len(got))
	}
}

func TestSummaryRecordAndPrint(t *testing.T) {
	s := NewSummaryService(newTestLogger())
	a := NewAggregator(newTestLogger())
	sum := s.Begin("run-1")

	daily := a.Daily(sampleRecords())
	s.Record(sum, &models.DateResult{Date: "2023-06-01", Pages: 2, DailyRows: len(daily)}, daily)
	s.Record(sum, &models.DateResult{Date: "2023-06-02", Err: models.ErrTransport}, nil)

	if sum.TotalEvents != 21 {
		t.Errorf("TotalEvents: got %d, want 21", sum.TotalEvents)
	}
	if sum.EventsByPage["us"] != 18 {
		t.Errorf("EventsByPage[us]: got %d, want 18", sum.EventsByPage["us"])
	}
	if len(sum.Failed()) != 1 {
		t.Errorf("Failed: got %d, want 1", len(sum.Failed()))
	}

	var buf bytes.Buffer
	s.Print(&buf, sum)
	out := buf.String()
	for _, want := range []string{"run-1", "2023-06-01", "FAILED", "out_of_stock"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q", want)
		}
	}
}

func TestTopCounts(t *testing.T) {
	got := topCounts(map[string]int64{"a": 1, "b": 5, "c": 5, "d": 2}, 3)
	want := []string{"b", "c", "d"}
	for i, k := range want {
		if got[i].key != k {
			t.Errorf("topCounts[%d] = %q; want %q", i, got[i].key, k)
		}
	}
}

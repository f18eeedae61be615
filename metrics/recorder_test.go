package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder("")

	r.ObservePage(100, 2*time.Second)
	r.ObservePage(50, time.Second)
	r.ObserveDropped("ghostery", 3)
	r.ObserveFlattened(147)
	r.ObserveWritten("daily", "csv")
	r.ObserveDate(nil, time.Unix(1685577600, 0))
	r.ObserveDate(errors.New("boom"), time.Now())

	if got := testutil.ToFloat64(r.pagesFetched); got != 2 {
		t.Errorf("pages_fetched_total: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.rowsFetched); got != 150 {
		t.Errorf("rows_fetched_total: got %v, want 150", got)
	}
	if got := testutil.ToFloat64(r.rowsDropped.WithLabelValues("ghostery")); got != 3 {
		t.Errorf("rows_dropped_total{ghostery}: got %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.datesProcessed.WithLabelValues("failed")); got != 1 {
		t.Errorf("dates_processed_total{failed}: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess); got != 1685577600 {
		t.Errorf("last_success_timestamp_seconds: got %v", got)
	}
}

func TestRecorderFlushTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oos.prom")
	r := NewRecorder(path)
	r.ObservePage(10, time.Second)

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "oos_pages_fetched_total 1") {
		t.Errorf("textfile missing pages counter:\n%s", data)
	}
}

func TestRecorderFlushDisabled(t *testing.T) {
	if err := NewRecorder("").Flush(); err != nil {
		t.Errorf("Flush without textfile: %v", err)
	}
}

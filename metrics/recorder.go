// Package metrics records pipeline counters in a private Prometheus registry
// and exports them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oos"

// Recorder implements the page and drop observers used by the pipeline.
type Recorder struct {
	registry *prometheus.Registry
	textfile string

	pagesFetched   prometheus.Counter
	rowsFetched    prometheus.Counter
	rowsFlattened  prometheus.Counter
	rowsDropped    *prometheus.CounterVec
	reportsWritten *prometheus.CounterVec
	datesProcessed *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	lastSuccess    prometheus.Gauge
}

// NewRecorder registers the pipeline metrics. When textfile is empty Flush
// does nothing.
func NewRecorder(textfile string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		textfile: textfile,
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Reporting API pages fetched.",
		}),
		rowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Raw rows received from the Reporting API.",
		}),
		rowsFlattened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_flattened_total",
			Help:      "Flat records kept after cleaning.",
		}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Flat records discarded during cleaning.",
		}, []string{"reason"}),
		reportsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_written_total",
			Help:      "Report views written, by view and sink.",
		}, []string{"view", "sink"}),
		datesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dates_processed_total",
			Help:      "Dates run through the pipeline, by outcome.",
		}, []string{"status"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of successful Reporting API calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last date processed without error.",
		}),
	}

	r.registry.MustRegister(
		r.pagesFetched, r.rowsFetched, r.rowsFlattened, r.rowsDropped,
		r.reportsWritten, r.datesProcessed, r.fetchDuration, r.lastSuccess,
	)
	return r
}

func (r *Recorder) ObservePage(rows int, took time.Duration) {
	r.pagesFetched.Inc()
	r.rowsFetched.Add(float64(rows))
	r.fetchDuration.Observe(took.Seconds())
}

func (r *Recorder) ObserveDropped(reason string, n int) {
	r.rowsDropped.WithLabelValues(reason).Add(float64(n))
}

func (r *Recorder) ObserveFlattened(n int) {
	r.rowsFlattened.Add(float64(n))
}

func (r *Recorder) ObserveWritten(view, sink string) {
	r.reportsWritten.WithLabelValues(view, sink).Inc()
}

// ObserveDate counts a finished date; a nil err also bumps the last
// success timestamp.
func (r *Recorder) ObserveDate(err error, at time.Time) {
	if err != nil {
		r.datesProcessed.WithLabelValues("failed").Inc()
		return
	}
	r.datesProcessed.WithLabelValues("ok").Inc()
	r.lastSuccess.Set(float64(at.Unix()))
}

// Flush writes the current values to the textfile, if one is configured.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return fmt.Errorf("metrics: write textfile %q: %w", r.textfile, err)
	}
	return nil
}

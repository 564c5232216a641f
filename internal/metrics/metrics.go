// Package metrics holds the per-run Prometheus collectors for the pipeline
// and the CDO fetcher. A batch run has no scrape endpoint, so collectors are
// registered on a private registry and exported in the node-exporter
// textfile format when the run finishes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/derickschaefer/dailywx/internal/merge"
)

const namespace = "dailywx"

// Metrics holds the counters and histograms for one run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	RecordsRead    prometheus.Counter
	RecordsDropped prometheus.Counter
	DaysMerged     prometheus.Counter
	RowsWritten    prometheus.Counter
	AnomalyDays    prometheus.Counter

	// CDO fetcher.
	Requests *prometheus.CounterVec // labels: outcome={ok,retry,error}
	Pages    prometheus.Counter

	StageDuration *prometheus.HistogramVec // labels: stage
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_records_read_total",
			Help:      "Raw records read from all input sets.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_records_dropped_total",
			Help:      "Raw records dropped for a missing or unparsable date.",
		}),
		DaysMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_merged_total",
			Help:      "Distinct days in the merged daily table.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to output tables.",
		}),
		AnomalyDays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomaly_days_total",
			Help:      "Days at or above the anomaly cutoff.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cdo_requests_total",
			Help:      "CDO API requests by outcome.",
		}, []string{"outcome"}),
		Pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cdo_pages_total",
			Help:      "CDO result pages fetched.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),
	}

	m.Registry.MustRegister(
		m.RecordsRead,
		m.RecordsDropped,
		m.DaysMerged,
		m.RowsWritten,
		m.AnomalyDays,
		m.Requests,
		m.Pages,
		m.StageDuration,
	)
	return m
}

// ObserveMerge records the merger's counts.
func (m *Metrics) ObserveMerge(st merge.Stats) {
	if m == nil {
		return
	}
	m.RecordsRead.Add(float64(st.Records))
	m.RecordsDropped.Add(float64(st.Dropped))
	m.DaysMerged.Add(float64(st.Days))
}

// AddRows counts rows written to an output table.
func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.RowsWritten.Add(float64(n))
}

// AddAnomalies counts anomalous days found by a report.
func (m *Metrics) AddAnomalies(n int) {
	if m == nil {
		return
	}
	m.AnomalyDays.Add(float64(n))
}

// Request counts one CDO request attempt with outcome ok, retry or error.
func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
}

// Page counts one CDO result page.
func (m *Metrics) Page() {
	if m == nil {
		return
	}
	m.Pages.Inc()
}

// Stage returns a function that records the elapsed time of stage when
// called, for use with defer.
func (m *Metrics) Stage(stage string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// WriteTextfile writes every collector to path in the textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
